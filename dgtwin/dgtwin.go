package dgtwin

import (
	"os"
	"sync"
	"time"

	"github.com/jwzl/beehive/pkg/core"
	"github.com/jwzl/beehive/pkg/core/context"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/dgtwin/config"
	"github.com/jwzl/devtwin/dgtwin/dtcontext"
	"github.com/jwzl/devtwin/dgtwin/dtcontroller"
	"github.com/jwzl/devtwin/dgtwin/twin"
	"github.com/jwzl/devtwin/peripheral/gpio"
)

type DGTwinModule struct {
	lock       sync.Mutex
	context    *context.Context
	devices    *dtcontext.Devices
	controller *dtcontroller.DGTwinController
}

// Register this module.
func Register() {
	dgtwin := &DGTwinModule{}
	core.Register(dgtwin)
}

//Name
func (dm *DGTwinModule) Name() string {
	return common.TwinModuleName
}

//Group
func (dm *DGTwinModule) Group() string {
	return common.TwinModuleName
}

//Start this module.
func (dm *DGTwinModule) Start(c *context.Context) {
	conf := config.GetDGTwinConfig()
	klog.Infof("Start the module, device %s", conf.DeviceID)

	devs, err := openDevices(conf)
	if err != nil {
		klog.Errorf("open peripheral failed: %v", err)
		klog.Flush()
		os.Exit(common.ExitCodePeripheralFail)
	}

	controller := dtcontroller.NewDGTwinController(c, conf, devs)
	if controller == nil {
		klog.Errorf("create twin controller failed")
		closeDevices(devs)
		return
	}

	dm.lock.Lock()
	dm.context = c
	dm.devices = devs
	dm.controller = controller
	dm.lock.Unlock()

	if err := controller.Start(); err != nil {
		klog.Errorf("twin controller stopped: %v", err)
	}
}

//Cleanup stop the sub-modules, the lines are closed once they exited.
func (dm *DGTwinModule) Cleanup() {
	dm.lock.Lock()
	defer dm.lock.Unlock()

	if dm.controller != nil {
		dm.controller.CleanUp()
	}
	if dm.context != nil {
		dm.context.Cleanup(dm.Name())
	}
	closeDevices(dm.devices)
	dm.devices = nil
}

func openDevices(conf *config.DGTwinConfig) (*dtcontext.Devices, error) {
	led, err := gpio.Open(conf.Led)
	if err != nil {
		return nil, err
	}

	networkLed, err := gpio.Open(conf.NetworkLed)
	if err != nil {
		if led != nil {
			led.Close()
		}
		return nil, err
	}

	seed := conf.SensorSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &dtcontext.Devices{
		Led:        led,
		NetworkLed: networkLed,
		Sensor:     twin.NewSyntheticSensor(seed),
	}, nil
}

func closeDevices(devs *dtcontext.Devices) {
	if devs == nil {
		return
	}
	for _, line := range []gpio.Line{devs.Led, devs.NetworkLed} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			klog.Warningf("close %s: %v", line.Name(), err)
		}
	}
}
