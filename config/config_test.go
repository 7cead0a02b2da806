package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = `
modules:
  enabled: [edge/dgtwin, edge/eventbus]
configtest:
  id: sphere-001
  telemetry:
    period: 5
  mqtt:
    broker: tcp://127.0.0.1:1883
    qos: "1"
    retain: false
`

func TestLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "devtwin")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "devtwin.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(testDoc), 0644))
	require.NoError(t, Load(path))

	id, err := CONFIG.GetValue("configtest.id").ToString()
	require.NoError(t, err)
	assert.Equal(t, "sphere-001", id)

	period, err := CONFIG.GetValue("configtest.telemetry.period").ToInt()
	require.NoError(t, err)
	assert.Equal(t, 5, period)

	qos, err := CONFIG.GetValue("configtest.mqtt.qos").ToInt()
	require.NoError(t, err)
	assert.Equal(t, 1, qos)

	retain, err := CONFIG.GetValue("configtest.mqtt.retain").ToBool()
	require.NoError(t, err)
	assert.False(t, retain)

	enabled, err := CONFIG.GetValue("modules.enabled").ToStringSlice()
	require.NoError(t, err)
	assert.Equal(t, []string{"edge/dgtwin", "edge/eventbus"}, enabled)
}

func TestLoadErrors(t *testing.T) {
	dir, err := ioutil.TempDir("", "devtwin")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.Error(t, Load(filepath.Join(dir, "missing.yaml")))

	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("configtest: [\n  passwd: secret"), 0644))
	err = Load(path)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestGetValueMissing(t *testing.T) {
	for _, key := range []string{"configtest.name", "nothing", "configtest.id.deeper"} {
		t.Run(key, func(t *testing.T) {
			_, err := CONFIG.GetValue(key).ToString()
			assert.Error(t, err)
		})
	}
}

func TestSet(t *testing.T) {
	c := New()
	c.Set("configtest.override.broker", "tcp://hub:8883")
	c.Set("configtest.override.period", 7)

	broker, err := c.GetValue("configtest.override.broker").ToString()
	require.NoError(t, err)
	assert.Equal(t, "tcp://hub:8883", broker)

	period, err := c.GetValue("configtest.override.period").ToInt()
	require.NoError(t, err)
	assert.Equal(t, 7, period)

	c.Unset("configtest.override.broker")
	_, err = c.GetValue("configtest.override.broker").ToString()
	assert.Error(t, err)

	c.Reset()
	_, err = c.GetValue("configtest.override.period").ToInt()
	assert.Error(t, err)
}
