package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwzl/beehive/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/config"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "devtwin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewAppCommandFlags(t *testing.T) {
	cmd := NewAppCommand()
	assert.Equal(t, "devtwin", cmd.Use)

	for _, name := range []string{"config", "device-id", "broker", "v", "logtostderr"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, DefaultConfigFile, cmd.Flags().Lookup("config").DefValue)
}

func TestOptionsLoad(t *testing.T) {
	config.CONFIG.Reset()
	defer config.CONFIG.Reset()

	path := writeConfig(t, `
dgtwin:
  id: from-file
eventbus:
  mqtt:
    broker: tcp://10.0.0.1:1883
`)

	opts := &Options{ConfigFile: path}
	require.NoError(t, opts.Load())
	id, err := config.CONFIG.GetValue("dgtwin.id").ToString()
	require.NoError(t, err)
	assert.Equal(t, "from-file", id)

	opts = &Options{ConfigFile: path, DeviceID: "from-flag", Broker: "ssl://hub.example.net:8883"}
	require.NoError(t, opts.Load())
	id, _ = config.CONFIG.GetValue("dgtwin.id").ToString()
	broker, _ := config.CONFIG.GetValue("eventbus.mqtt.broker").ToString()
	assert.Equal(t, "from-flag", id)
	assert.Equal(t, "ssl://hub.example.net:8883", broker)
}

func TestOptionsLoadErrors(t *testing.T) {
	opts := &Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}
	assert.Error(t, opts.Load())

	opts = &Options{ConfigFile: writeConfig(t, "dgtwin: [")}
	assert.Error(t, opts.Load())

	opts = &Options{ConfigFile: writeConfig(t, "{}"), Broker: "127.0.0.1"}
	assert.Error(t, opts.Load())
	config.CONFIG.Reset()
}

func TestRegisterModules(t *testing.T) {
	opts := &Options{ConfigFile: writeConfig(t, `
modules:
  enabled: [edge/dgtwin, edge/eventbus]
`)}
	require.NoError(t, opts.Load())
	require.NoError(t, registerModules())

	modules := core.GetModules()
	for _, name := range []string{common.TwinModuleName, common.BusModuleName} {
		m, exist := modules[name]
		require.True(t, exist, "module %s is not registered", name)
		assert.Equal(t, name, m.Name())
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, common.ExitCodeSuccess, ExitCode(nil))
	assert.Equal(t, common.ExitCodeTerminationHandler, ExitCode(errors.New("unknown flag")))
	assert.Equal(t, common.ExitCodeConfigFail,
		ExitCode(&ExitError{Code: common.ExitCodeConfigFail, Err: errors.New("bad config")}))
}

func TestRunConfigFailure(t *testing.T) {
	cmd := NewAppCommand()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, common.ExitCodeConfigFail, ExitCode(err))
}
