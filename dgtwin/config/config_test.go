package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jwzl/devtwin/config"
	"github.com/jwzl/devtwin/peripheral/gpio"
)

func TestGetDGTwinConfigDefaults(t *testing.T) {
	config.CONFIG.Reset()

	conf := GetDGTwinConfig()
	assert.Equal(t, "devtwin", conf.DeviceID)
	assert.Equal(t, 5*time.Second, conf.ReportPeriod)
	assert.Equal(t, 100, conf.StringCapacity)
	assert.Equal(t, 60*time.Second, conf.HealthCheckPeriod)
	assert.Equal(t, gpio.Config{Name: "led", Driver: gpio.DriverMemory, Chip: "gpiochip0", Offset: 8}, conf.Led)
	assert.Equal(t, 9, conf.NetworkLed.Offset)
}

func TestGetDGTwinConfig(t *testing.T) {
	defer config.CONFIG.Reset()
	config.CONFIG.Set("dgtwin.id", "sphere-007")
	config.CONFIG.Set("dgtwin.telemetry.period", 0)
	config.CONFIG.Set("dgtwin.telemetry.seed", 42)
	config.CONFIG.Set("dgtwin.string.capacity", "32")
	config.CONFIG.Set("peripheral.gpio.driver", "chardev")
	config.CONFIG.Set("peripheral.gpio.chip", "gpiochip1")
	config.CONFIG.Set("peripheral.gpio.led-line", -1)
	config.CONFIG.Set("peripheral.gpio.network-led-line", 4)

	conf := GetDGTwinConfig()
	assert.Equal(t, "sphere-007", conf.DeviceID)
	assert.Equal(t, time.Duration(0), conf.ReportPeriod)
	assert.Equal(t, 32, conf.StringCapacity)
	assert.Equal(t, int64(42), conf.SensorSeed)
	assert.Equal(t, -1, conf.Led.Offset)
	assert.Equal(t, gpio.Config{Name: "network-led", Driver: gpio.DriverChardev, Chip: "gpiochip1", Offset: 4}, conf.NetworkLed)
}

func TestGetDGTwinConfigInvalidPeriod(t *testing.T) {
	defer config.CONFIG.Reset()
	config.CONFIG.Set("dgtwin.telemetry.period", 500)
	assert.Equal(t, 5*time.Second, GetDGTwinConfig().ReportPeriod)
}
