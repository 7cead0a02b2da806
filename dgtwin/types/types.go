package types

import (
	"time"

	"github.com/jwzl/devtwin/common"
)

const (
	MODULE_NAME = common.TwinModuleName
	//module name
	DGTWINS_MODULE_COMM      = "comm"
	DGTWINS_MODULE_PROPERTY  = "property"
	DGTWINS_MODULE_TELEMETRY = "telemetry"

	// heartbeat content
	HEARTBEAT_PING = "ping"
	HEARTBEAT_STOP = "stop"

	// a module not answering ping for this long is unhealthy.
	HEALTH_TIMEOUT = 80 * time.Second
)
