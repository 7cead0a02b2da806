package common

import (
	"time"

	"github.com/jwzl/wssocket/model"
)

const (
	//RequestSuccessCode sucess
	RequestSuccessCode = 200
	//InternalErrorCode the desired value was rejected.
	InternalErrorCode = 500

	//twin's verb
	DGTWINS_OPS_UPDATE   = "Update"
	DGTWINS_OPS_RESPONSE = "Response"
	DGTWINS_OPS_REPORT   = "Report"
	DGTWINS_OPS_PUBLISH  = "Publish"
	DGTWINS_OPS_DETECT   = "Detect"

	//State
	DGTWINS_STATE_ONLINE  = "online"
	DGTWINS_STATE_OFFLINE = "offline"

	// Resource
	DGTWINS_RESOURCE_PROPERTY  = "property"
	DGTWINS_RESOURCE_TELEMETRY = "telemetry"
	DGTWINS_RESOURCE_DEVICE    = "device"

	CloudName      = "cloud"
	TwinModuleName = "edge/dgtwin"
	BusModuleName  = "edge/eventbus"
)

// process exit codes.
const (
	ExitCodeSuccess            = 0
	ExitCodeTerminationHandler = 1
	ExitCodeMainLoopFail       = 2
	ExitCodeConfigFail         = 3
	ExitCodePeripheralFail     = 4
)

// Property is a key/value pair attached to an outbound event,
// it is used for message routing on the hub side.
type Property struct {
	Key   string
	Value string
}

// EventMessage is an out-of-band message published to the hub
// beside the reported properties.
type EventMessage struct {
	Payload []byte
	// application properties, e.g. type=SensorError
	Properties []Property
	// content type and encoding of the payload.
	ContentType     string
	ContentEncoding string
}

// BuildModelMessage build the message exchanged between modules,
// the content is carried as is.
func BuildModelMessage(source string, target string, operation string, resource string, content interface{}) *model.Message {
	now := time.Now().UnixNano() / 1e6

	//Header
	msg := model.NewMessage("")
	msg.BuildHeader("", now)

	//Router
	msg.BuildRouter(source, "", target, resource, operation)

	//content
	msg.Content = content

	return msg
}
