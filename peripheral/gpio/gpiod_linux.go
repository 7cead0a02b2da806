//go:build linux
// +build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/gpiod"
	"k8s.io/klog"
)

// chardevLine is a line of the gpio character device.
type chardevLine struct {
	name string
	line *gpiod.Line
}

func openChardev(conf Config) (Line, error) {
	chip := conf.Chip
	if chip == "" {
		chip = "gpiochip0"
	}

	l, err := gpiod.RequestLine(chip, conf.Offset, gpiod.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request gpio %s (%s:%d): %v", conf.Name, chip, conf.Offset, err)
	}
	klog.Infof("gpio %s opened on %s:%d", conf.Name, chip, conf.Offset)

	return &chardevLine{name: conf.Name, line: l}, nil
}

func (l *chardevLine) Name() string {
	return l.name
}

func (l *chardevLine) On() error {
	return l.line.SetValue(1)
}

func (l *chardevLine) Off() error {
	return l.line.SetValue(0)
}

func (l *chardevLine) Close() error {
	return l.line.Close()
}
