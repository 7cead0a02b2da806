package eventbus

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jwzl/beehive/pkg/core"
	"github.com/jwzl/beehive/pkg/core/context"
	"github.com/jwzl/wssocket/model"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/eventbus/config"
	mqttBus "github.com/jwzl/devtwin/eventbus/mqtt"
)

// Publisher send the twin module output to the hub.
type Publisher interface {
	PublishReported(patch []byte) error
	PublishEvent(event *common.EventMessage) error
}

type EventBus struct {
	lock       sync.Mutex
	conf       *config.EventBusConfig
	MqttClient *mqttBus.Client
	hub        Publisher
	context    *context.Context
}

// Register this module.
func Register() {
	eb := &EventBus{}
	core.Register(eb)
}

//Name
func (eb *EventBus) Name() string {
	return common.BusModuleName
}

//Group
func (eb *EventBus) Group() string {
	return common.BusModuleName
}

//Start this module.
func (eb *EventBus) Start(c *context.Context) {
	klog.Infof("Start the module!")

	conf := config.GetEventBusConfig()
	client := mqttBus.NewMqttClient(conf, c)

	eb.lock.Lock()
	eb.conf = conf
	eb.context = c
	eb.MqttClient = client
	eb.hub = client
	eb.lock.Unlock()

	if err := client.Connect(); err != nil {
		klog.Errorf("connect to hub %s failed: %v", conf.MqttServer, err)
		klog.Flush()
		os.Exit(common.ExitCodeMainLoopFail)
	}
	klog.Infof("connected to hub %s as %s", conf.MqttServer, conf.DeviceID)

	eb.pubEdgeToCloud(c)
}

//Cleanup
func (eb *EventBus) Cleanup() {
	eb.lock.Lock()
	defer eb.lock.Unlock()

	if eb.MqttClient != nil {
		eb.MqttClient.Disconnect()
	}
	if eb.context != nil {
		eb.context.Cleanup(eb.Name())
	}
}

func (eb *EventBus) pubEdgeToCloud(c *context.Context) {
	for {
		v, err := c.Receive(eb.Name())
		if err != nil {
			klog.Infof("stop receiving message from edge: %v", err)
			break
		}

		msg, isMsgType := v.(*model.Message)
		if !isMsgType || msg == nil {
			klog.Warningf("not a message (%T), ignored", v)
			continue
		}

		klog.V(4).Infof("[EVENTBUS] message arrived")
		if err := eb.publish(msg); err != nil {
			klog.Errorf("publish message %s failed: %v", msg.GetID(), err)
		}
	}
}

// publish send a twin module message to the hub, the acks and the
// telemetry are reported patches, the events go to the event topic.
func (eb *EventBus) publish(msg *model.Message) error {
	if msg == nil {
		return errors.New("message is nil")
	}
	if msg.GetTarget() != common.CloudName {
		return fmt.Errorf("message to %s, ignored", msg.GetTarget())
	}

	switch msg.GetOperation() {
	case common.DGTWINS_OPS_RESPONSE, common.DGTWINS_OPS_REPORT:
		patch, ok := msg.GetContent().([]byte)
		if !ok {
			return errors.New("reported patch is not bytes")
		}
		return eb.hub.PublishReported(patch)
	case common.DGTWINS_OPS_PUBLISH:
		event, ok := msg.GetContent().(*common.EventMessage)
		if !ok || event == nil {
			return errors.New("event is not an event message")
		}
		return eb.hub.PublishEvent(event)
	default:
		return fmt.Errorf("unknown operation %s", msg.GetOperation())
	}
}
