package dtmodule

import (
	"errors"
	"fmt"

	"github.com/jwzl/wssocket/model"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/dgtwin/dtcontext"
	"github.com/jwzl/devtwin/dgtwin/twin"
	"github.com/jwzl/devtwin/dgtwin/types"
	"github.com/jwzl/devtwin/metrics"
	"github.com/jwzl/devtwin/peripheral/gpio"
)

type PropertyCmdFunc func(msg *model.Message) error

type PropertyModule struct {
	// module name
	name    string
	context *dtcontext.DTContext
	//for msg communication
	recieveChan chan interface{}
	// for module's health check.
	heartBeatChan  chan interface{}
	propertyCmdTbl map[string]PropertyCmdFunc

	validator *twin.Validator
	bindings  []*twin.Binding
}

func NewPropertyModule() *PropertyModule {
	return &PropertyModule{name: types.DGTWINS_MODULE_PROPERTY}
}

func (pm *PropertyModule) Name() string {
	return pm.name
}

func (pm *PropertyModule) initPropertyCmdTbl() {
	pm.propertyCmdTbl = make(map[string]PropertyCmdFunc)

	pm.propertyCmdTbl[common.DGTWINS_OPS_UPDATE] = pm.propUpdateHandle
	pm.propertyCmdTbl[common.DGTWINS_OPS_DETECT] = pm.propDetectHandle
}

func (pm *PropertyModule) InitModule(dtc *dtcontext.DTContext, comm, heartBeat chan interface{}) {
	pm.context = dtc
	pm.recieveChan = comm
	pm.heartBeatChan = heartBeat
	pm.initPropertyCmdTbl()

	pm.validator = twin.NewValidator(dtc.Conf.StringCapacity, dtc)
	pm.bindings = pm.validator.Bindings(dtc.Devices.Led)
}

func (pm *PropertyModule) Start() {
	//Start loop.
	for {
		select {
		case msg, ok := <-pm.recieveChan:
			if !ok {
				//channel closed.
				return
			}

			message, isMsgType := msg.(*model.Message)
			if isMsgType {
				klog.V(4).Infof("property message arrived {Header:%v Router:%v}",
					message.Header, message.Router)
				if fn, exist := pm.propertyCmdTbl[message.GetOperation()]; exist {
					err := fn(message)
					if err != nil {
						klog.Errorf("Handle failed, ignored (%v)", err)
					}
				} else {
					klog.Errorf("No this handle for %s, ignored", message.GetOperation())
				}
			}
		case v, ok := <-pm.heartBeatChan:
			if !ok {
				return
			}

			err := pm.context.HandleHeartBeat(pm.Name(), v.(string))
			if err != nil {
				klog.Infof("%s module stopped", pm.Name())
				return
			}
		}
	}
}

//propUpdateHandle: run the handler of every bound property in the
//desired patch, each of them answers exactly one ack.
func (pm *PropertyModule) propUpdateHandle(msg *model.Message) error {
	doc, ok := msg.GetContent().([]byte)
	if !ok {
		return errors.New("desired patch is not bytes")
	}

	desired, version, err := twin.ParseDesired(doc)
	if err != nil {
		return err
	}

	for _, b := range pm.bindings {
		raw, exist := desired[b.Name]
		if !exist {
			continue
		}

		update := twin.Decode(b, raw, version)
		ack := b.Handler(update)
		klog.Infof("desired %s (%s) version %d: %s", ack.Name, update.Kind, version, ack.Verdict)

		content, err := ack.Patch()
		if err != nil {
			// the update is still answered, with no value.
			klog.Errorf("build ack of %s failed: %v", ack.Name, err)
			ack = twin.Ack{Name: b.Name, Verdict: twin.Error, Version: version}
			if content, err = ack.Patch(); err != nil {
				klog.Errorf("build error ack of %s failed: %v", ack.Name, err)
				continue
			}
		}
		metrics.ObserveAck(ack.Name, ack.Verdict.String())
		pm.context.SendResponseMessage(msg, content)
	}

	for name := range desired {
		if !pm.isBound(name) {
			klog.V(4).Infof("desired %s is not bound, ignored", name)
		}
	}

	return nil
}

func (pm *PropertyModule) isBound(name string) bool {
	for _, b := range pm.bindings {
		if b.Name == name {
			return true
		}
	}
	return false
}

//propDetectHandle: the hub connection state changed.
func (pm *PropertyModule) propDetectHandle(msg *model.Message) error {
	state, ok := msg.GetContent().(string)
	if !ok {
		return errors.New("device state is not string")
	}

	var online bool
	switch state {
	case common.DGTWINS_STATE_ONLINE:
		online = true
	case common.DGTWINS_STATE_OFFLINE:
	default:
		return fmt.Errorf("unknown device state %s", state)
	}

	klog.Infof("device %s is %s", pm.context.DeviceID, state)
	pm.context.SetConnected(online)

	if led := pm.context.Devices.NetworkLed; led != nil {
		if err := gpio.Set(led, online); err != nil {
			return fmt.Errorf("set %s: %v", led.Name(), err)
		}
	}

	return nil
}
