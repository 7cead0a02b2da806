package cmd

import (
	"errors"
	"flag"
	"fmt"
	"net/url"

	"github.com/jwzl/beehive/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/config"
	"github.com/jwzl/devtwin/dgtwin"
	"github.com/jwzl/devtwin/eventbus"
	"github.com/jwzl/devtwin/metrics"
)

const DefaultConfigFile = "/etc/devtwin/devtwin.yaml"

// Options are the command line options, they override the config file.
type Options struct {
	ConfigFile string
	DeviceID   string
	Broker     string
}

// ExitError carry the process exit code of a failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

// ExitCode return the process exit code of err.
func ExitCode(err error) int {
	if err == nil {
		return common.ExitCodeSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return common.ExitCodeTerminationHandler
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", o.ConfigFile, "path of the configuration file")
	fs.StringVar(&o.DeviceID, "device-id", o.DeviceID, "device identity on the hub, overrides dgtwin.id")
	fs.StringVar(&o.Broker, "broker", o.Broker, "hub mqtt broker url, overrides eventbus.mqtt.broker")
}

/*
* new app command
 */
func NewAppCommand() *cobra.Command {
	opts := &Options{ConfigFile: DefaultConfigFile}

	cmd := &cobra.Command{
		Use: "devtwin",
		Long: `devtwin is the device side agent of a device twin. It connects to
the hub over mqtt, applies the desired properties it is bound to, answers
each of them with an acknowledgment and reports the environment telemetry
periodically.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			klog.Infof("###########  Start the devtwin agent...! ###########")
			if err := opts.Load(); err != nil {
				return &ExitError{Code: common.ExitCodeConfigFail, Err: err}
			}

			if addr, err := config.CONFIG.GetValue("metrics.listen").ToString(); err == nil && addr != "" {
				go func() {
					if err := metrics.Serve(addr); err != nil {
						klog.Errorf("metrics server stopped: %v", err)
					}
				}()
			}

			if err := registerModules(); err != nil {
				return &ExitError{Code: common.ExitCodeConfigFail, Err: err}
			}
			// start all modules
			core.Run()
			return nil
		},
	}

	opts.AddFlags(cmd.Flags())
	goflags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goflags)
	cmd.Flags().AddGoFlagSet(goflags)

	return cmd
}

// Load read the config file and apply the command line overrides.
func (o *Options) Load() error {
	if err := config.Load(o.ConfigFile); err != nil {
		return err
	}

	if o.DeviceID != "" {
		config.CONFIG.Set("dgtwin.id", o.DeviceID)
	}
	if o.Broker != "" {
		config.CONFIG.Set("eventbus.mqtt.broker", o.Broker)
	}

	if broker, err := config.CONFIG.GetValue("eventbus.mqtt.broker").ToString(); err == nil {
		u, err := url.Parse(broker)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid broker url %q", broker)
		}
	}

	return nil
}

// register all modules, only the ones listed in modules.enabled are kept.
func registerModules() error {
	dgtwin.Register()
	eventbus.Register()

	if len(core.GetModules()) == 0 {
		return errors.New("no module enabled, check modules.enabled")
	}
	return nil
}
