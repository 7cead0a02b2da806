package gpio

import (
	"fmt"

	"k8s.io/klog"
)

const (
	DriverMemory  = "memory"
	DriverChardev = "chardev"
)

// Line is an output GPIO line.
type Line interface {
	Name() string
	// On drive the line high.
	On() error
	// Off drive the line low.
	Off() error
	Close() error
}

// Config describe one output line.
type Config struct {
	Name   string
	Driver string
	// gpiochip device, e.g. gpiochip0
	Chip string
	// line offset on the chip, negative means not connected.
	Offset int
}

// Open open the line, a line with a negative offset is not
// connected and Open returns nil.
func Open(conf Config) (Line, error) {
	if conf.Offset < 0 {
		klog.Infof("gpio %s is not connected", conf.Name)
		return nil, nil
	}

	switch conf.Driver {
	case DriverMemory:
		return NewMemoryLine(conf.Name), nil
	case DriverChardev, "":
		return openChardev(conf)
	default:
		return nil, fmt.Errorf("gpio %s: unknown driver %s", conf.Name, conf.Driver)
	}
}

// Set drive the line to level.
func Set(line Line, level bool) error {
	if level {
		return line.On()
	}
	return line.Off()
}
