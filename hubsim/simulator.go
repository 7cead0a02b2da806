// Package hubsim is the cloud side of the twin protocol, it runs
// against a plain mqtt broker to drive devtwin without a real hub.
package hubsim

import (
	"fmt"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/dgtwin/twin"
	mqttBus "github.com/jwzl/devtwin/eventbus/mqtt"
)

// TokenWaitTime to wait
var TokenWaitTime = 10 * time.Second

// Event is a device-to-cloud event received by the simulator.
type Event struct {
	Topic   string
	Payload []byte
}

// Simulator keep the twin of one device.
type Simulator struct {
	DeviceID string
	Cli      MQTT.Client
	qos      byte

	lock     sync.Mutex
	version  int64
	desired  map[string]interface{}
	reported map[string]interface{}
	// reported patches and events, in arrival order.
	patches chan map[string]interface{}
	events  chan Event
}

func NewSimulator(deviceID string, cli MQTT.Client, qos byte) *Simulator {
	return &Simulator{
		DeviceID: deviceID,
		Cli:      cli,
		qos:      qos,
		desired:  make(map[string]interface{}),
		reported: make(map[string]interface{}),
		patches:  make(chan map[string]interface{}, 128),
		events:   make(chan Event, 128),
	}
}

// Subscribe subscribe the device requests and events.
func (s *Simulator) Subscribe() error {
	topics := []string{
		mqttBus.TopicTwinGet + "#",
		mqttBus.TopicReportedPatch + "#",
		mqttBus.EventsTopicPrefix(s.DeviceID) + "#",
	}
	for _, t := range topics {
		token := s.Cli.Subscribe(t, s.qos, s.messageArrived)
		if rs, err := mqttBus.CheckClientToken(token); !rs {
			return fmt.Errorf("subscribe %s: %v", t, err)
		}
		klog.Infof("subscribe topic to %s", t)
	}
	return nil
}

func (s *Simulator) messageArrived(client MQTT.Client, message MQTT.Message) {
	if err := s.Handle(message.Topic(), message.Payload()); err != nil {
		klog.Errorf("handle %s: %v", message.Topic(), err)
	}
}

// Handle answer a device request.
func (s *Simulator) Handle(topic string, payload []byte) error {
	switch {
	case strings.HasPrefix(topic, mqttBus.TopicTwinGet):
		return s.handleGet(mqttBus.RequestID(topic))
	case strings.HasPrefix(topic, mqttBus.TopicReportedPatch):
		return s.handleReported(mqttBus.RequestID(topic), payload)
	case strings.HasPrefix(topic, mqttBus.EventsTopicPrefix(s.DeviceID)):
		klog.Infof("event %s: %s", topic, payload)
		select {
		case s.events <- Event{Topic: topic, Payload: payload}:
		default:
			klog.Warningf("event not recorded, buffer full")
		}
		return nil
	default:
		return fmt.Errorf("unexpected topic %s", topic)
	}
}

func (s *Simulator) handleGet(rid string) error {
	s.lock.Lock()
	desired := copyMap(s.desired)
	desired[twin.VersionKey] = s.version
	doc, err := json.Marshal(map[string]interface{}{
		"desired":  desired,
		"reported": copyMap(s.reported),
	})
	s.lock.Unlock()
	if err != nil {
		return err
	}

	return s.publish(mqttBus.ResponseTopic(200, rid, 0), doc)
}

func (s *Simulator) handleReported(rid string, payload []byte) error {
	patch := make(map[string]interface{})
	if err := json.Unmarshal(payload, &patch); err != nil {
		if perr := s.publish(mqttBus.ResponseTopic(400, rid, 0), nil); perr != nil {
			klog.Errorf("answer %s: %v", rid, perr)
		}
		return err
	}

	s.lock.Lock()
	for k, v := range patch {
		s.reported[k] = v
	}
	version := int64(len(s.reported))
	s.lock.Unlock()

	klog.Infof("reported %s", payload)
	select {
	case s.patches <- patch:
	default:
		klog.Warningf("reported patch not recorded, buffer full")
	}
	return s.publish(mqttBus.ResponseTopic(204, rid, version), nil)
}

// SetDesired merge patch into the desired properties and send it
// to the device with the next version.
func (s *Simulator) SetDesired(patch map[string]interface{}) error {
	s.lock.Lock()
	for k, v := range patch {
		s.desired[k] = v
	}
	s.version++
	version := s.version
	doc := copyMap(patch)
	doc[twin.VersionKey] = version
	s.lock.Unlock()

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.publish(mqttBus.DesiredPatchTopic(version), payload)
}

// Reported return the reported properties received so far.
func (s *Simulator) Reported() map[string]interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	return copyMap(s.reported)
}

// Patches deliver the reported patches as they arrive.
func (s *Simulator) Patches() <-chan map[string]interface{} {
	return s.patches
}

// Events deliver the device events as they arrive.
func (s *Simulator) Events() <-chan Event {
	return s.events
}

func (s *Simulator) publish(topic string, payload []byte) error {
	if payload == nil {
		payload = []byte{}
	}
	token := s.Cli.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(TokenWaitTime) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	return token.Error()
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
