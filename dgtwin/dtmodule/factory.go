package dtmodule

import (
	"k8s.io/klog"

	"github.com/jwzl/devtwin/dgtwin/dtcontext"
	"github.com/jwzl/devtwin/dgtwin/types"
)

func NewDTModule(moduleName string) dtcontext.DTModule {

	switch moduleName {
	case types.DGTWINS_MODULE_COMM:
		return NewCommModule()
	case types.DGTWINS_MODULE_PROPERTY:
		return NewPropertyModule()
	case types.DGTWINS_MODULE_TELEMETRY:
		return NewTelemetryModule()
	default:
		klog.Errorf("moduleName is invaild.")
		return nil
	}
}
