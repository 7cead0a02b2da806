package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"
	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cobra"
	"k8s.io/component-base/logs"
	"k8s.io/klog"

	mqttBus "github.com/jwzl/devtwin/eventbus/mqtt"
	"github.com/jwzl/devtwin/hubsim"
)

type options struct {
	broker   string
	deviceID string
	desired  string
	qos      int
}

func newCommand() *cobra.Command {
	o := &options{broker: "tcp://127.0.0.1:1883", deviceID: "devtwin", qos: 1}

	cmd := &cobra.Command{
		Use:   "hubsim",
		Short: "hubsim plays the hub side of the device twin on a plain mqtt broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&o.broker, "broker", o.broker, "mqtt broker url")
	fs.StringVar(&o.deviceID, "device-id", o.deviceID, "device identity")
	fs.StringVar(&o.desired, "desired", o.desired, "desired patch sent once connected, e.g. '{\"DesiredLed\":true}'")
	fs.IntVar(&o.qos, "qos", o.qos, "mqtt qos")
	goflags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goflags)
	fs.AddGoFlagSet(goflags)

	return cmd
}

func run(o *options) error {
	var patch map[string]interface{}
	if o.desired != "" {
		if err := json.Unmarshal([]byte(o.desired), &patch); err != nil {
			return fmt.Errorf("invalid desired patch: %v", err)
		}
	}

	opts := MQTT.NewClientOptions().AddBroker(o.broker).
		SetClientID("hubsim-" + uuid.NewV4().String()[:8]).SetCleanSession(true)
	cli := MQTT.NewClient(opts)
	if rs, err := mqttBus.CheckClientToken(cli.Connect()); !rs {
		return fmt.Errorf("connect %s: %v", o.broker, err)
	}
	defer cli.Disconnect(250)

	sim := hubsim.NewSimulator(o.deviceID, cli, byte(o.qos))
	if err := sim.Subscribe(); err != nil {
		return err
	}
	if patch != nil {
		if err := sim.SetDesired(patch); err != nil {
			return err
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	return nil
}

func main() {
	command := newCommand()
	logs.InitLogs()

	err := command.Execute()
	logs.FlushLogs()
	if err != nil {
		os.Exit(1)
	}
}
