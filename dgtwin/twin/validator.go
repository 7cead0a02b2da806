package twin

import (
	"time"

	"k8s.io/klog"

	"github.com/jwzl/devtwin/peripheral/gpio"
)

const (
	PropSampleRate = "DesiredSampleRate"
	PropCopyString = "DesiredCopyString"
	PropLed        = "DesiredLed"
	PropJSONObject = "SampleJsonObject"

	// sample rate bounds in seconds.
	MinSampleRate = 0
	MaxSampleRate = 120

	// StringCapacityDefault is the capacity of the string copy,
	// an accepted string is strictly shorter.
	StringCapacityDefault = 100
)

// Validator owns the state of the desired property handlers.
// All methods must be called from the same goroutine.
type Validator struct {
	capacity int
	rate     RateSetter
	// last accepted value of PropCopyString
	copied string
}

func NewValidator(capacity int, rate RateSetter) *Validator {
	if capacity <= 0 {
		capacity = StringCapacityDefault
	}
	return &Validator{capacity: capacity, rate: rate}
}

// Bindings return the desired properties handled by v, led
// may be nil when no led is connected.
func (v *Validator) Bindings(led gpio.Line) []*Binding {
	var ledCtx Peripheral
	if led != nil {
		ledCtx = led
	}

	return []*Binding{
		{Name: PropSampleRate, Kind: KindInt, Handler: v.SampleRate},
		{Name: PropCopyString, Kind: KindString, Handler: v.CopyString},
		{Name: PropLed, Kind: KindBool, Context: ledCtx, Handler: v.Gpio},
		{Name: PropJSONObject, Kind: KindObject, Handler: v.JSONObject},
	}
}

// SampleRate accept an int in [0, 120] seconds as the telemetry period.
func (v *Validator) SampleRate(u *Update) Ack {
	n, ok := u.Value.(int)
	if u.Kind != KindInt || !ok || n < MinSampleRate || n > MaxSampleRate {
		klog.Warningf("%s: invalid sample rate %v (%s)", u.Name, u.Value, u.Kind)
		return reject(u, u.Value)
	}

	if v.rate != nil {
		v.rate.SetReportPeriod(time.Duration(n) * time.Second)
	}
	klog.Infof("%s: sample rate set to %ds", u.Name, n)

	return complete(u, n)
}

// Gpio drive the line of the update's context.
func (v *Validator) Gpio(u *Update) Ack {
	line, ok := u.Context.(gpio.Line)
	if !ok || line == nil {
		klog.Warningf("%s: no gpio line bound", u.Name)
		return reject(u, u.Value)
	}

	level, ok := u.Value.(bool)
	if u.Kind != KindBool || !ok {
		klog.Warningf("%s: invalid gpio level %v (%s)", u.Name, u.Value, u.Kind)
		return reject(u, u.Value)
	}

	if err := gpio.Set(line, level); err != nil {
		klog.Errorf("%s: set gpio %s failed: %v", u.Name, line.Name(), err)
		return reject(u, level)
	}

	return complete(u, level)
}

// CopyString keep a local copy of a printable string
// shorter than the capacity.
func (v *Validator) CopyString(u *Update) Ack {
	s, ok := u.Value.(string)
	if u.Kind != KindString || !ok || len(s) >= v.capacity || !IsPrintable(s) {
		klog.Warningf("%s: local copy failed, string too long or invalid data", u.Name)
		return reject(u, u.Value)
	}

	v.copied = s
	klog.Infof("Rx device twin update for twin: %s, local value: %s", u.Name, v.copied)

	return complete(u, s)
}

// CopiedString return the last accepted string.
func (v *Validator) CopiedString() string {
	return v.copied
}

// IsPrintable report whether every byte of s is printable ascii.
func IsPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
