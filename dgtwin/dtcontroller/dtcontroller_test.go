package dtcontroller

import (
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jwzl/beehive/pkg/core/context"
	"github.com/jwzl/wssocket/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/dgtwin/config"
	"github.com/jwzl/devtwin/dgtwin/dtcontext"
	"github.com/jwzl/devtwin/dgtwin/twin"
	"github.com/jwzl/devtwin/dgtwin/types"
	"github.com/jwzl/devtwin/peripheral/gpio"
)

func TestNewDGTwinController(t *testing.T) {
	c := context.GetContext(context.MsgCtxTypeChannel)
	conf := &config.DGTwinConfig{DeviceID: "dev"}

	tests := []struct {
		name string
		want *DGTwinController
		list []string
	}{
		{
			name: "NewDGTwinController",
			want: &DGTwinController{
				ID:   "dev",
				Stop: make(chan bool, 1),
			},
			list: []string{types.DGTWINS_MODULE_COMM, types.DGTWINS_MODULE_PROPERTY, types.DGTWINS_MODULE_TELEMETRY},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := NewDGTwinController(c, conf, nil)
			require.NotNil(t, got)

			assert.Equal(t, reflect.TypeOf(test.want), reflect.TypeOf(got))
			assert.Equal(t, test.want.ID, got.ID)
			require.NotNil(t, got.context)

			for _, module := range test.list {
				_, exist := got.context.Modules[module]
				assert.True(t, exist, "module %s is missing", module)
			}
			assert.Equal(t, cap(test.want.Stop), cap(got.Stop))
		})
	}

	assert.Nil(t, NewDGTwinController(nil, conf, nil))
}

func TestDispatch(t *testing.T) {
	c := context.GetContext(context.MsgCtxTypeChannel)
	dtc := NewDGTwinController(c, &config.DGTwinConfig{DeviceID: "dev"}, nil)
	require.NotNil(t, dtc)

	tests := []struct {
		name     string
		msg      *model.Message
		module   string
		hasError bool
	}{
		{
			name: "desired patch",
			msg: common.BuildModelMessage(common.BusModuleName, types.MODULE_NAME,
				common.DGTWINS_OPS_UPDATE, common.DGTWINS_RESOURCE_PROPERTY, []byte(`{}`)),
			module: types.DGTWINS_MODULE_PROPERTY,
		},
		{
			name: "connection state",
			msg: common.BuildModelMessage(common.BusModuleName, types.MODULE_NAME,
				common.DGTWINS_OPS_DETECT, common.DGTWINS_RESOURCE_DEVICE, common.DGTWINS_STATE_ONLINE),
			module: types.DGTWINS_MODULE_PROPERTY,
		},
		{
			name: "telemetry",
			msg: common.BuildModelMessage(common.BusModuleName, types.MODULE_NAME,
				common.DGTWINS_OPS_UPDATE, common.DGTWINS_RESOURCE_TELEMETRY, nil),
			module: types.DGTWINS_MODULE_TELEMETRY,
		},
		{
			name: "other target",
			msg: common.BuildModelMessage(common.BusModuleName, common.CloudName,
				common.DGTWINS_OPS_UPDATE, common.DGTWINS_RESOURCE_PROPERTY, nil),
			hasError: true,
		},
		{
			name: "unknown resource",
			msg: common.BuildModelMessage(common.BusModuleName, types.MODULE_NAME,
				common.DGTWINS_OPS_UPDATE, "twins", nil),
			hasError: true,
		},
		{
			name:     "nil message",
			hasError: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := dtc.dispatch(test.msg)
			if test.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := <-dtc.context.CommChan[test.module]
			assert.Equal(t, test.msg, got)
		})
	}
}

func TestControllerEndToEnd(t *testing.T) {
	c := context.GetContext(context.MsgCtxTypeChannel)
	c.AddModule(types.MODULE_NAME)
	c.AddModule(common.BusModuleName)

	led := gpio.NewMemoryLine("led")
	conf := &config.DGTwinConfig{DeviceID: "dev", StringCapacity: 100, HealthCheckPeriod: 10 * time.Millisecond}
	dtc := NewDGTwinController(c, conf, &dtcontext.Devices{Led: led})
	require.NotNil(t, dtc)

	done := make(chan error)
	go func() {
		done <- dtc.Start()
	}()

	update := common.BuildModelMessage(common.BusModuleName, types.MODULE_NAME,
		common.DGTWINS_OPS_UPDATE, common.DGTWINS_RESOURCE_PROPERTY, []byte(`{"DesiredLed":true,"$version":4}`))
	c.Send(types.MODULE_NAME, update)

	v, err := c.Receive(common.BusModuleName)
	require.NoError(t, err)
	resp, ok := v.(*model.Message)
	require.True(t, ok)
	assert.Equal(t, common.DGTWINS_OPS_RESPONSE, resp.GetOperation())
	assert.Equal(t, update.GetID(), resp.GetTag())

	acks := map[string]map[string]interface{}{}
	require.NoError(t, json.Unmarshal(resp.GetContent().([]byte), &acks))
	assert.Equal(t, map[string]interface{}{"value": true, "ac": float64(200), "av": float64(4), "ad": "completed"},
		acks[twin.PropLed])
	assert.True(t, led.Level())

	// the health check pings every module.
	assert.Eventually(t, func() bool {
		for _, name := range []string{types.DGTWINS_MODULE_COMM, types.DGTWINS_MODULE_PROPERTY, types.DGTWINS_MODULE_TELEMETRY} {
			if _, ok := dtc.context.ModuleHealth.Load(name); !ok {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	dtc.CleanUp()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("controller not stopped")
	}
	c.Cleanup(types.MODULE_NAME)
	c.Cleanup(common.BusModuleName)
}

// slowModule takes a while to exit once stopped.
type slowModule struct {
	heartBeat chan interface{}
	exited    int32
}

func (m *slowModule) Name() string { return "slow" }

func (m *slowModule) InitModule(dtc *dtcontext.DTContext, comm, heartBeat chan interface{}) {
	m.heartBeat = heartBeat
}

func (m *slowModule) Start() {
	for v := range m.heartBeat {
		if v == types.HEARTBEAT_STOP {
			time.Sleep(100 * time.Millisecond)
			atomic.StoreInt32(&m.exited, 1)
			return
		}
	}
}

func TestCleanUpWaitsForModules(t *testing.T) {
	c := context.GetContext(context.MsgCtxTypeChannel)
	c.AddModule(types.MODULE_NAME)
	defer c.Cleanup(types.MODULE_NAME)

	dtc := NewDGTwinController(c, &config.DGTwinConfig{DeviceID: "dev"}, nil)
	require.NotNil(t, dtc)
	slow := &slowModule{}
	dtc.context.RegisterDTModule(slow)

	go dtc.Start()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&dtc.state) == stateRunning
	}, 2*time.Second, 5*time.Millisecond)

	dtc.CleanUp()
	assert.Equal(t, int32(1), atomic.LoadInt32(&slow.exited))
	select {
	case <-dtc.done:
	default:
		t.Fatal("controller still running after CleanUp")
	}

	assert.Equal(t, ErrNotIdle, dtc.Start())
}

func TestCleanUpNotStarted(t *testing.T) {
	dtc := NewDGTwinController(context.GetContext(context.MsgCtxTypeChannel), &config.DGTwinConfig{DeviceID: "dev"}, nil)
	require.NotNil(t, dtc)

	finished := make(chan struct{})
	go func() {
		dtc.CleanUp()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("CleanUp blocked on a controller never started")
	}
	assert.Equal(t, ErrNotIdle, dtc.Start())
}
