package config

import (
	"time"

	"k8s.io/klog"

	"github.com/jwzl/devtwin/config"
	"github.com/jwzl/devtwin/dgtwin/twin"
	"github.com/jwzl/devtwin/peripheral/gpio"
)

// DGTwinConfig indicates the twin module config
type DGTwinConfig struct {
	// DeviceID indicates the device identity on the hub
	// default devtwin
	DeviceID string
	// ReportPeriod indicates the telemetry period, 0 stops the telemetry.
	// default 5s
	ReportPeriod time.Duration
	// StringCapacity indicates the capacity of the copied string
	// default 100
	StringCapacity int
	// HealthCheckPeriod indicates how often sub-modules are pinged
	// default 60s
	HealthCheckPeriod time.Duration
	// Led is the line driven by the DesiredLed property
	Led gpio.Config
	// NetworkLed shows the hub connection state
	NetworkLed gpio.Config
	// Seed of the synthetic sensor, 0 means the start time.
	SensorSeed int64
}

func GetDGTwinConfig() *DGTwinConfig {
	conf := &DGTwinConfig{}

	id, err := config.CONFIG.GetValue("dgtwin.id").ToString()
	if err != nil {
		klog.Infof("dgtwin.id is empty")
		id = "devtwin"
	}
	conf.DeviceID = id

	period, err := config.CONFIG.GetValue("dgtwin.telemetry.period").ToInt()
	if err != nil || period < twin.MinSampleRate || period > twin.MaxSampleRate {
		klog.Infof("dgtwin.telemetry.period is empty or invalid")
		period = 5
	}
	conf.ReportPeriod = time.Duration(period) * time.Second

	capacity, err := config.CONFIG.GetValue("dgtwin.string.capacity").ToInt()
	if err != nil || capacity <= 0 {
		klog.Infof("dgtwin.string.capacity is empty or invalid")
		capacity = twin.StringCapacityDefault
	}
	conf.StringCapacity = capacity

	health, err := config.CONFIG.GetValue("dgtwin.health-check-period").ToInt()
	if err != nil || health <= 0 {
		klog.Infof("dgtwin.health-check-period is empty or invalid")
		health = 60
	}
	conf.HealthCheckPeriod = time.Duration(health) * time.Second

	seed, err := config.CONFIG.GetValue("dgtwin.telemetry.seed").ToInt()
	if err != nil {
		seed = 0
	}
	conf.SensorSeed = int64(seed)

	driver, err := config.CONFIG.GetValue("peripheral.gpio.driver").ToString()
	if err != nil {
		klog.Infof("peripheral.gpio.driver is empty")
		driver = gpio.DriverMemory
	}

	chip, err := config.CONFIG.GetValue("peripheral.gpio.chip").ToString()
	if err != nil {
		klog.Infof("peripheral.gpio.chip is empty")
		chip = "gpiochip0"
	}

	ledLine, err := config.CONFIG.GetValue("peripheral.gpio.led-line").ToInt()
	if err != nil {
		klog.Infof("peripheral.gpio.led-line is empty")
		ledLine = 8
	}
	conf.Led = gpio.Config{Name: "led", Driver: driver, Chip: chip, Offset: ledLine}

	networkLine, err := config.CONFIG.GetValue("peripheral.gpio.network-led-line").ToInt()
	if err != nil {
		klog.Infof("peripheral.gpio.network-led-line is empty")
		networkLine = 9
	}
	conf.NetworkLed = gpio.Config{Name: "network-led", Driver: driver, Chip: chip, Offset: networkLine}

	return conf
}
