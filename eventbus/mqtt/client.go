package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"
	"github.com/jwzl/beehive/pkg/core/context"
	uuid "github.com/satori/go.uuid"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/eventbus/config"
)

var (
	// TokenWaitTime to wait
	TokenWaitTime = 120 * time.Second
	// RetryInterval between two connection attempts.
	RetryInterval = 5 * time.Second
	// PendingTimeout drop the requests without response after it.
	PendingTimeout = 2 * time.Minute

	ErrNotConnected = errors.New("mqtt client not connected")
)

const (
	requestGet      = "get"
	requestReported = "reported"
)

type pendingRequest struct {
	kind string
	at   time.Time
}

// Client is the link to the hub.
type Client struct {
	conf    *config.EventBusConfig
	context *context.Context
	Cli     MQTT.Client
	// twin requests waiting for their response, by request id.
	pending   sync.Map
	newClient func(o *MQTT.ClientOptions) MQTT.Client
}

func NewMqttClient(conf *config.EventBusConfig, c *context.Context) *Client {
	return &Client{
		conf:      conf,
		context:   c,
		newClient: MQTT.NewClient,
	}
}

// CheckClientToken checks token is right
func CheckClientToken(token MQTT.Token) (bool, error) {
	if token.Wait() && token.Error() != nil {
		return false, token.Error()
	}
	return true, nil
}

// HubClientInit create mqtt client config
func (mq *Client) HubClientInit() (*MQTT.ClientOptions, error) {
	opts := MQTT.NewClientOptions().AddBroker(mq.conf.MqttServer).
		SetClientID(mq.conf.DeviceID).SetCleanSession(true)
	if mq.conf.MqttUser != "" {
		opts.SetUsername(mq.conf.MqttUser)
		if mq.conf.MqttPassword != "" {
			opts.SetPassword(mq.conf.MqttPassword)
		}
	}
	opts.SetKeepAlive(mq.conf.KeepAlive)
	opts.SetConnectTimeout(mq.conf.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(mq.onConnect)
	opts.SetConnectionLostHandler(mq.onConnectionLost)

	tlsConfig, err := newTLSConfig(mq.conf.TLS)
	if err != nil {
		return nil, err
	}
	opts.SetTLSConfig(tlsConfig)

	return opts, nil
}

func newTLSConfig(conf config.TLSConfig) (*tls.Config, error) {
	if !conf.Enable {
		return &tls.Config{InsecureSkipVerify: true, ClientAuth: tls.NoClientCert}, nil
	}

	tlsConfig := &tls.Config{}
	if conf.CAFile != "" {
		caCert, err := os.ReadFile(conf.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %v", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caCert); !ok {
			return nil, errors.New("cannot parse the ca certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if conf.CertFile != "" && conf.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(conf.CertFile, conf.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load x509 key pair: %v", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect create the client and connect it to the hub, it fails
// when the hub can not be reached within the connect timeout.
func (mq *Client) Connect() error {
	opts, err := mq.HubClientInit()
	if err != nil {
		return err
	}

	mq.Cli = mq.newClient(opts)
	return mq.LoopConnect(mq.conf.ConnectTimeout)
}

// LoopConnect connect to mqtt server
func (mq *Client) LoopConnect(timeout time.Duration) error {
	start := time.Now()
	for {
		klog.Infof("start connect to mqtt server %s with client id: %s", mq.conf.MqttServer, mq.conf.DeviceID)
		token := mq.Cli.Connect()
		rs, err := CheckClientToken(token)
		if rs {
			klog.Infof("client %s isconnected: %v", mq.conf.DeviceID, mq.Cli.IsConnected())
			return nil
		}
		klog.Errorf("connect error: %v", err)

		if time.Since(start)+RetryInterval > timeout {
			return fmt.Errorf("connect to %s timeout: %v", mq.conf.MqttServer, err)
		}
		time.Sleep(RetryInterval)
	}
}

// Disconnect close the link.
func (mq *Client) Disconnect() {
	if mq.Cli != nil && mq.Cli.IsConnected() {
		mq.Cli.Disconnect(250)
	}
}

func (mq *Client) onConnect(client MQTT.Client) {
	for _, t := range SubTopics {
		token := client.Subscribe(t, byte(mq.conf.MqttQOS), mq.messageArrived)
		if rs, err := CheckClientToken(token); !rs {
			klog.Errorf("subscribe topic: %s, %v", t, err)
			return
		}
		klog.Infof("subscribe topic to %s", t)
	}

	if err := mq.requestTwin(); err != nil {
		klog.Errorf("request twin failed: %v", err)
	}
	mq.reportState(common.DGTWINS_STATE_ONLINE)
}

func (mq *Client) onConnectionLost(client MQTT.Client, err error) {
	klog.Errorf("onConnectionLost with error: %v", err)
	mq.reportState(common.DGTWINS_STATE_OFFLINE)
}

func (mq *Client) messageArrived(client MQTT.Client, message MQTT.Message) {
	mq.handleMessage(message.Topic(), message.Payload())
}

func (mq *Client) handleMessage(topic string, payload []byte) {
	klog.V(4).Infof("message arrived on %s: %s", topic, payload)

	if IsDesiredPatch(topic) {
		mq.handleDesired(payload)
		return
	}

	resp, err := ParseResponseTopic(topic)
	if err != nil {
		klog.Warningf("unexpected message on %s, ignored: %v", topic, err)
		return
	}

	v, exist := mq.pending.LoadAndDelete(resp.RequestID)
	if !exist {
		klog.V(4).Infof("no request %s, response ignored", resp.RequestID)
		return
	}

	switch v.(*pendingRequest).kind {
	case requestGet:
		if resp.Status != 200 {
			klog.Warningf("get twin failed with status %d", resp.Status)
			return
		}
		mq.handleTwin(payload)
	case requestReported:
		if resp.Status/100 != 2 {
			klog.Warningf("reported patch %s failed with status %d", resp.RequestID, resp.Status)
			return
		}
		klog.V(4).Infof("reported patch %s accepted, version %d", resp.RequestID, resp.Version)
	}
}

// handleTwin process the desired section of the full twin.
func (mq *Client) handleTwin(doc []byte) {
	if err := ValidateTwin(doc); err != nil {
		klog.Warningf("twin dropped: %v", err)
		return
	}

	var twinDoc map[string]json.RawMessage
	if err := json.Unmarshal(doc, &twinDoc); err != nil {
		klog.Warningf("twin dropped: %v", err)
		return
	}
	mq.handleDesired(twinDoc["desired"])
}

// handleDesired send a desired patch to the twin module.
func (mq *Client) handleDesired(doc []byte) {
	if err := ValidateDesired(doc); err != nil {
		klog.Warningf("desired patch dropped: %v", err)
		return
	}

	msg := common.BuildModelMessage(common.BusModuleName, common.TwinModuleName,
		common.DGTWINS_OPS_UPDATE, common.DGTWINS_RESOURCE_PROPERTY, doc)
	mq.context.Send(common.TwinModuleName, msg)
}

// reportState tell the twin module the hub connection state.
func (mq *Client) reportState(state string) {
	msg := common.BuildModelMessage(common.BusModuleName, common.TwinModuleName,
		common.DGTWINS_OPS_DETECT, common.DGTWINS_RESOURCE_DEVICE, state)
	klog.V(4).Infof("hub connection %s", state)
	mq.context.Send(common.TwinModuleName, msg)
}

func (mq *Client) track(kind string) string {
	now := time.Now()
	mq.pending.Range(func(key, value interface{}) bool {
		if now.Sub(value.(*pendingRequest).at) > PendingTimeout {
			klog.Warningf("request %v got no response", key)
			mq.pending.Delete(key)
		}
		return true
	})

	rid := uuid.NewV4().String()
	mq.pending.Store(rid, &pendingRequest{kind: kind, at: now})
	return rid
}

// requestTwin ask the hub for the full twin.
func (mq *Client) requestTwin() error {
	rid := mq.track(requestGet)
	if err := mq.publish(TwinGetTopic(rid), []byte{}); err != nil {
		mq.pending.Delete(rid)
		return err
	}
	return nil
}

// PublishReported send a reported patch.
func (mq *Client) PublishReported(patch []byte) error {
	rid := mq.track(requestReported)
	if err := mq.publish(ReportedTopic(rid), patch); err != nil {
		mq.pending.Delete(rid)
		return err
	}
	return nil
}

// PublishEvent send a device-to-cloud event.
func (mq *Client) PublishEvent(event *common.EventMessage) error {
	return mq.publish(EventTopic(mq.conf.DeviceID, event), event.Payload)
}

func (mq *Client) publish(topic string, payload []byte) error {
	if mq.Cli == nil {
		return ErrNotConnected
	}

	token := mq.Cli.Publish(topic, byte(mq.conf.MqttQOS), false, payload)
	if !token.WaitTimeout(TokenWaitTime) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %v", topic, err)
	}
	klog.V(4).Infof("Success in pubMQTT with topic: %s", topic)
	return nil
}
