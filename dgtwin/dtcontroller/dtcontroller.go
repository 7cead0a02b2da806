package dtcontroller

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwzl/beehive/pkg/core/context"
	"github.com/jwzl/wssocket/model"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/dgtwin/config"
	"github.com/jwzl/devtwin/dgtwin/dtcontext"
	"github.com/jwzl/devtwin/dgtwin/dtmodule"
	"github.com/jwzl/devtwin/dgtwin/types"
)

// StopTimeout bounds how long CleanUp waits for the sub-modules.
var StopTimeout = 10 * time.Second

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

var ErrNotIdle = errors.New("controller already started or stopped")

type DGTwinController struct {
	ID      string
	Stop    chan bool
	context *dtcontext.DTContext

	state int32
	// closed when Start returned, all sub-modules have exited.
	done chan struct{}
}

// NewDGTwinController: Create digital twin controller.
func NewDGTwinController(c *context.Context, conf *config.DGTwinConfig, devs *dtcontext.Devices) *DGTwinController {
	ctx := dtcontext.NewDTContext(c, conf, devs)
	if ctx == nil {
		return nil
	}
	stop := make(chan bool, 1)

	// create and register all modules.
	modules := []string{types.DGTWINS_MODULE_COMM, types.DGTWINS_MODULE_PROPERTY, types.DGTWINS_MODULE_TELEMETRY}
	for _, name := range modules {
		dtm := dtmodule.NewDTModule(name)
		ctx.RegisterDTModule(dtm)
	}

	dtc := &DGTwinController{
		ID:      conf.DeviceID,
		Stop:    stop,
		context: ctx,
		done:    make(chan struct{}),
	}
	return dtc
}

func (dtc *DGTwinController) Start() error {
	if !atomic.CompareAndSwapInt32(&dtc.state, stateIdle, stateRunning) {
		return ErrNotIdle
	}
	defer close(dtc.done)

	//Start all sub-modules.
	var wg sync.WaitGroup
	for _, module := range dtc.context.Modules {
		wg.Add(1)
		go func(m dtcontext.DTModule) {
			defer wg.Done()
			m.Start()
		}(module)
	}

	//Start a goroutine to recieve message.
	go dtc.RecvModuleMsg()

	period := dtc.context.Conf.HealthCheckPeriod
	if period <= 0 {
		period = 60 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	//loop for sub-module's health check and stop modules.
	for {
		select {
		case <-ticker.C:
			dtc.healthCheck()
		case <-dtc.Stop:
			// Stop all sub-modules.
			for name := range dtc.context.Modules {
				dtc.context.StopModule(name)
			}
			wg.Wait()
			klog.Infof("all twin sub-modules stopped")

			return nil
		}
	}
}

// healthCheck report the modules which did not answer the last
// pings and ping every module again.
func (dtc *DGTwinController) healthCheck() {
	now := time.Now().Unix()
	for name := range dtc.context.Modules {
		v, exist := dtc.context.ModuleHealth.Load(name)
		if exist && now-v.(int64) > int64(types.HEALTH_TIMEOUT/time.Second) {
			klog.Warningf("%s module is not healthy, last seen %ds ago", name, now-v.(int64))
		}

		//ping the module.
		if ch, exist := dtc.context.HeartBeatChan[name]; exist {
			ch <- types.HEARTBEAT_PING
		}
	}
}

// CleanUp make Start stop the sub-modules and wait until they exited,
// a controller not started yet will not start.
func (dtc *DGTwinController) CleanUp() {
	if atomic.CompareAndSwapInt32(&dtc.state, stateIdle, stateStopped) {
		return
	}

	select {
	case dtc.Stop <- true:
	default:
	}
	select {
	case <-dtc.done:
	case <-time.After(StopTimeout):
		klog.Warningf("twin sub-modules not stopped after %v", StopTimeout)
	}
}

func (dtc *DGTwinController) RecvModuleMsg() {
	for {
		// Recieve the message from other modules.
		msg, err := dtc.context.Receive()
		if errors.Is(err, dtcontext.ErrNotMessage) {
			klog.Warningf("ignore twin message: %v", err)
			continue
		}
		if err != nil {
			klog.Infof("stop receiving twin message: %v", err)
			return
		}

		klog.V(4).Infof("digital twin message arrived!")
		err = dtc.dispatch(msg)
		if err != nil {
			klog.Infof("dispatch err (%v), Ignored!", err)
		}
	}
}

// message dispatch.
func (dtc *DGTwinController) dispatch(msg *model.Message) error {
	if msg == nil {
		return errors.New("message is nil")
	}

	target := msg.GetTarget()
	resource := msg.GetResource()

	if strings.Compare(types.MODULE_NAME, target) != 0 {
		return errors.New("message is not to this module ")
	}

	switch resource {
	case common.DGTWINS_RESOURCE_PROPERTY, common.DGTWINS_RESOURCE_DEVICE:
		return dtc.context.SendToModule(types.DGTWINS_MODULE_PROPERTY, msg)
	case common.DGTWINS_RESOURCE_TELEMETRY:
		return dtc.context.SendToModule(types.DGTWINS_MODULE_TELEMETRY, msg)
	default:
		return errors.New("unknown resource " + resource)
	}
}
