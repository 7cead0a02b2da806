package config

import (
	"time"

	"k8s.io/klog"

	"github.com/jwzl/devtwin/config"
)

// EventBusConfig indicates the event bus module config
type EventBusConfig struct {
	// DeviceID indicates the device identity, it is the mqtt client id
	// default devtwin
	DeviceID string
	// MqttServer indicates the hub mqtt broker url
	// default tcp://127.0.0.1:1883
	MqttServer string
	// MqttUser and MqttPassword are the hub credentials, empty means none.
	MqttUser     string
	MqttPassword string
	// MqttQOS indicates mqtt qos
	// 0: QOSAtMostOnce, 1: QOSAtLeastOnce, 2: QOSExactlyOnce
	// default 1
	MqttQOS int
	// KeepAlive indicates the mqtt keep alive interval
	// default 30s
	KeepAlive time.Duration
	// ConnectTimeout indicates how long the first connection may take
	// default 30s
	ConnectTimeout time.Duration
	// TLS of the broker connection.
	TLS TLSConfig
}

// TLSConfig indicates the certificates of the broker connection
type TLSConfig struct {
	// Enable verify the broker against CAFile, otherwise the
	// broker certificate is not verified.
	// default false
	Enable bool
	CAFile string
	// client certificate, optional.
	CertFile string
	KeyFile  string
}

func GetEventBusConfig() *EventBusConfig {
	eBConfig := &EventBusConfig{}

	id, err := config.CONFIG.GetValue("dgtwin.id").ToString()
	if err != nil {
		klog.Infof("dgtwin.id is empty")
		id = "devtwin"
	}
	eBConfig.DeviceID = id

	server, err := config.CONFIG.GetValue("eventbus.mqtt.broker").ToString()
	if err != nil {
		klog.Infof("eventbus.mqtt.broker is empty")
		server = "tcp://127.0.0.1:1883"
	}
	eBConfig.MqttServer = server

	user, err := config.CONFIG.GetValue("eventbus.mqtt.user").ToString()
	if err != nil {
		user = ""
	}
	eBConfig.MqttUser = user

	passwd, err := config.CONFIG.GetValue("eventbus.mqtt.passwd").ToString()
	if err != nil {
		passwd = ""
	}
	eBConfig.MqttPassword = passwd

	qos, err := config.CONFIG.GetValue("eventbus.mqtt.qos").ToInt()
	if err != nil || qos < 0 || qos > 2 {
		klog.Infof("eventbus.mqtt.qos is empty or invalid")
		qos = 1
	}
	eBConfig.MqttQOS = qos

	keepAlive, err := config.CONFIG.GetValue("eventbus.mqtt.keep-alive-interval").ToInt()
	if err != nil || keepAlive <= 0 {
		klog.Infof("eventbus.mqtt.keep-alive-interval is empty")
		keepAlive = 30
	}
	eBConfig.KeepAlive = time.Duration(keepAlive) * time.Second

	timeout, err := config.CONFIG.GetValue("eventbus.mqtt.connect-timeout").ToInt()
	if err != nil || timeout <= 0 {
		klog.Infof("eventbus.mqtt.connect-timeout is empty")
		timeout = 30
	}
	eBConfig.ConnectTimeout = time.Duration(timeout) * time.Second

	enable, err := config.CONFIG.GetValue("eventbus.mqtt.tls.enable").ToBool()
	if err != nil {
		enable = false
	}
	eBConfig.TLS.Enable = enable
	eBConfig.TLS.CAFile, _ = config.CONFIG.GetValue("eventbus.mqtt.tls.ca-file").ToString()
	eBConfig.TLS.CertFile, _ = config.CONFIG.GetValue("eventbus.mqtt.tls.cert-file").ToString()
	eBConfig.TLS.KeyFile, _ = config.CONFIG.GetValue("eventbus.mqtt.tls.key-file").ToString()

	return eBConfig
}
