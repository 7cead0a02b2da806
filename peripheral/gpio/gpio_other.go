//go:build !linux
// +build !linux

package gpio

import "fmt"

func openChardev(conf Config) (Line, error) {
	return nil, fmt.Errorf("gpio %s: chardev driver is only supported on linux", conf.Name)
}
