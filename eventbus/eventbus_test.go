package eventbus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jwzl/beehive/pkg/core/context"
	"github.com/jwzl/wssocket/model"
	"github.com/stretchr/testify/assert"

	"github.com/jwzl/devtwin/common"
)

type fakeHub struct {
	lock     sync.Mutex
	reported [][]byte
	events   []*common.EventMessage
	err      error
}

func (h *fakeHub) PublishReported(patch []byte) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.reported = append(h.reported, patch)
	return h.err
}

func (h *fakeHub) PublishEvent(event *common.EventMessage) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *fakeHub) reportedCount() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.reported)
}

func TestPublish(t *testing.T) {
	event := &common.EventMessage{Payload: []byte(`{}`)}

	tests := []struct {
		name     string
		msg      *model.Message
		reported int
		events   int
		hasError bool
	}{
		{
			name: "ack",
			msg: common.BuildModelMessage(common.TwinModuleName, common.CloudName,
				common.DGTWINS_OPS_RESPONSE, common.DGTWINS_RESOURCE_PROPERTY, []byte(`{"DesiredLed":{}}`)),
			reported: 1,
		},
		{
			name: "telemetry",
			msg: common.BuildModelMessage(common.TwinModuleName, common.CloudName,
				common.DGTWINS_OPS_REPORT, common.DGTWINS_RESOURCE_TELEMETRY, []byte(`{"ReportedHumidity":60}`)),
			reported: 1,
		},
		{
			name: "event",
			msg: common.BuildModelMessage(common.TwinModuleName, common.CloudName,
				common.DGTWINS_OPS_PUBLISH, common.DGTWINS_RESOURCE_TELEMETRY, event),
			events: 1,
		},
		{
			name: "not to cloud",
			msg: common.BuildModelMessage(common.TwinModuleName, common.TwinModuleName,
				common.DGTWINS_OPS_REPORT, common.DGTWINS_RESOURCE_TELEMETRY, []byte(`{}`)),
			hasError: true,
		},
		{
			name: "wrong content",
			msg: common.BuildModelMessage(common.TwinModuleName, common.CloudName,
				common.DGTWINS_OPS_PUBLISH, common.DGTWINS_RESOURCE_TELEMETRY, []byte(`{}`)),
			hasError: true,
		},
		{
			name: "unknown operation",
			msg: common.BuildModelMessage(common.TwinModuleName, common.CloudName,
				common.DGTWINS_OPS_DETECT, common.DGTWINS_RESOURCE_DEVICE, "online"),
			hasError: true,
		},
		{
			name:     "nil",
			hasError: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			hub := &fakeHub{}
			eb := &EventBus{hub: hub}

			err := eb.publish(test.msg)
			if test.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, hub.reported, test.reported)
			assert.Len(t, hub.events, test.events)
		})
	}
}

func TestPubEdgeToCloud(t *testing.T) {
	c := context.GetContext(context.MsgCtxTypeChannel)
	c.AddModule(common.BusModuleName)
	hub := &fakeHub{err: errors.New("offline")}
	eb := &EventBus{hub: hub, context: c}

	done := make(chan struct{})
	go func() {
		eb.pubEdgeToCloud(c)
		close(done)
	}()

	msg := common.BuildModelMessage(common.TwinModuleName, common.CloudName,
		common.DGTWINS_OPS_REPORT, common.DGTWINS_RESOURCE_TELEMETRY, []byte(`{"ReportedHumidity":60}`))
	c.Send(common.BusModuleName, "not a message")
	c.Send(common.BusModuleName, msg)
	assert.Eventually(t, func() bool { return hub.reportedCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// the loop ends when the module is cleaned up.
	eb.Cleanup()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop not stopped")
	}
	assert.Equal(t, 1, hub.reportedCount())
}

func TestModuleName(t *testing.T) {
	eb := &EventBus{}
	assert.Equal(t, common.BusModuleName, eb.Name())
	assert.Equal(t, common.BusModuleName, eb.Group())
}
