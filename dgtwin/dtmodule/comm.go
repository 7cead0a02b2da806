package dtmodule

import (
	"strings"

	"github.com/jwzl/wssocket/model"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/dgtwin/dtcontext"
	"github.com/jwzl/devtwin/dgtwin/types"
)

type CommModule struct {
	name    string
	context *dtcontext.DTContext
	//for msg communication
	recieveChan chan interface{}
	// for module's health check.
	heartBeatChan chan interface{}
}

func NewCommModule() *CommModule {
	return &CommModule{name: types.DGTWINS_MODULE_COMM}
}

func (cm *CommModule) Name() string {
	return cm.name
}

//Init the comm module.
func (cm *CommModule) InitModule(dtc *dtcontext.DTContext, comm, heartBeat chan interface{}) {
	cm.context = dtc
	cm.recieveChan = comm
	cm.heartBeatChan = heartBeat
}

//Start comm module
func (cm *CommModule) Start() {
	//Start loop.
	for {
		select {
		case msg, ok := <-cm.recieveChan:
			if !ok {
				//channel closed.
				return
			}

			message, isMsgType := msg.(*model.Message)
			if isMsgType {
				target := message.GetTarget()
				if strings.Contains(target, common.CloudName) {
					cm.sendMessageToHub(message)
				} else {
					klog.Warningf("error message format, Ignore (%v)", message.Router)
				}
			}
		case v, ok := <-cm.heartBeatChan:
			if !ok {
				return
			}

			err := cm.context.HandleHeartBeat(cm.Name(), v.(string))
			if err != nil {
				klog.Infof("%s module stopped", cm.Name())
				return
			}
		}
	}
}

//sendMessageToHub hand the message to the eventbus.
func (cm *CommModule) sendMessageToHub(msg *model.Message) {
	cm.context.Send(common.BusModuleName, msg)
}
