package dtcontext

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog"

	"github.com/jwzl/beehive/pkg/core/context"
	"github.com/jwzl/wssocket/model"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/dgtwin/config"
	"github.com/jwzl/devtwin/dgtwin/twin"
	"github.com/jwzl/devtwin/dgtwin/types"
	"github.com/jwzl/devtwin/peripheral/gpio"
)

// Devices are the peripherals of the twin module.
type Devices struct {
	// Led is bound to the DesiredLed property, nil if not connected.
	Led gpio.Line
	// NetworkLed shows the hub connection state, nil if not connected.
	NetworkLed gpio.Line
	Sensor     twin.Sensor
}

// ErrNotMessage is returned by Receive for anything but a message,
// a closed module channel yields nil.
var ErrNotMessage = errors.New("not a message")

type DTContext struct {
	DeviceID      string
	Conf          *config.DGTwinConfig
	Context       *context.Context
	Modules       map[string]DTModule
	CommChan      map[string]chan interface{}
	HeartBeatChan map[string]chan interface{}
	ModuleHealth  *sync.Map
	// new telemetry period, consumed by the telemetry module.
	PeriodChan chan time.Duration
	Devices    *Devices

	connected int32
}

func NewDTContext(c *context.Context, conf *config.DGTwinConfig, devs *Devices) *DTContext {
	if c == nil || conf == nil {
		return nil
	}
	if devs == nil {
		devs = &Devices{}
	}
	if devs.Sensor == nil {
		devs.Sensor = twin.NewSyntheticSensor(time.Now().UnixNano())
	}

	var modulesHealth sync.Map

	return &DTContext{
		DeviceID:      conf.DeviceID,
		Conf:          conf,
		Context:       c,
		Modules:       make(map[string]DTModule),
		CommChan:      make(map[string]chan interface{}),
		HeartBeatChan: make(map[string]chan interface{}),
		ModuleHealth:  &modulesHealth,
		PeriodChan:    make(chan time.Duration, 1),
		Devices:       devs,
	}
}

func (dtc *DTContext) RegisterDTModule(dtm DTModule) {
	moduleName := dtm.Name()
	dtc.CommChan[moduleName] = make(chan interface{}, 128)
	dtc.HeartBeatChan[moduleName] = make(chan interface{}, 128)
	//Pass dtcontext to dtmodule.
	dtm.InitModule(dtc, dtc.CommChan[moduleName], dtc.HeartBeatChan[moduleName])
	dtc.Modules[moduleName] = dtm
}

//Receive recieve the message from other modules.
func (dtc *DTContext) Receive() (*model.Message, error) {
	v, err := dtc.Context.Receive(types.MODULE_NAME)
	if err != nil {
		return nil, err
	}

	msg, isMsgType := v.(*model.Message)
	if !isMsgType || msg == nil {
		return nil, fmt.Errorf("%w: %T", ErrNotMessage, v)
	}

	return msg, nil
}

// send msg  to sub-module
func (dtc *DTContext) SendToModule(dtmName string, content interface{}) error {
	if ch, exist := dtc.CommChan[dtmName]; exist {
		ch <- content
		return nil
	}

	return errors.New("Channel not found")
}

//StopModule: stop this module
func (dtc *DTContext) StopModule(name string) {
	if ch, exist := dtc.HeartBeatChan[name]; exist {
		ch <- types.HEARTBEAT_STOP
	}
}

//handle heartbeat.
func (dtc *DTContext) HandleHeartBeat(dtmName string, content string) error {
	if strings.Compare(content, types.HEARTBEAT_PING) == 0 {
		dtc.ModuleHealth.Store(dtmName, time.Now().Unix())
		klog.V(4).Infof("%s is healthy %v", dtmName, time.Now().Unix())
	} else if strings.Compare(content, types.HEARTBEAT_STOP) == 0 {
		klog.Infof("%s stop", dtmName)
		return errors.New("stop")
	}

	return nil
}

// SetConnected record the hub connection state.
func (dtc *DTContext) SetConnected(connected bool) {
	var v int32
	if connected {
		v = 1
	}
	atomic.StoreInt32(&dtc.connected, v)
}

func (dtc *DTContext) IsConnected() bool {
	return atomic.LoadInt32(&dtc.connected) == 1
}

// SetReportPeriod hand the new period to the telemetry module,
// only the latest period is kept.
func (dtc *DTContext) SetReportPeriod(period time.Duration) {
	for {
		select {
		case dtc.PeriodChan <- period:
			return
		default:
		}
		select {
		case old := <-dtc.PeriodChan:
			klog.V(4).Infof("period %v replaced by %v", old, period)
		default:
		}
	}
}

//send message to module.
func (dtc *DTContext) Send(module string, msg *model.Message) {
	dtc.Context.Send(module, msg)
}

//SendResponseMessage Send the ack of a desired update to the cloud.
func (dtc *DTContext) SendResponseMessage(requestMsg *model.Message, content []byte) {
	modelMsg := common.BuildModelMessage(types.MODULE_NAME, common.CloudName,
		common.DGTWINS_OPS_RESPONSE, common.DGTWINS_RESOURCE_PROPERTY, content)
	modelMsg.SetTag(requestMsg.GetID())
	klog.V(4).Infof("Send response message (%s)", string(content))

	dtc.SendToModule(types.DGTWINS_MODULE_COMM, modelMsg)
}

//SendReportMessage Send a reported patch to the cloud.
func (dtc *DTContext) SendReportMessage(content []byte) {
	modelMsg := common.BuildModelMessage(types.MODULE_NAME, common.CloudName,
		common.DGTWINS_OPS_REPORT, common.DGTWINS_RESOURCE_TELEMETRY, content)
	klog.V(4).Infof("Send report message (%s)", string(content))

	dtc.SendToModule(types.DGTWINS_MODULE_COMM, modelMsg)
}

//SendEventMessage Send an event to the cloud.
func (dtc *DTContext) SendEventMessage(event *common.EventMessage) {
	modelMsg := common.BuildModelMessage(types.MODULE_NAME, common.CloudName,
		common.DGTWINS_OPS_PUBLISH, common.DGTWINS_RESOURCE_TELEMETRY, event)
	klog.V(4).Infof("Send event message (%s)", string(event.Payload))

	dtc.SendToModule(types.DGTWINS_MODULE_COMM, modelMsg)
}
