package twin

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/jwzl/devtwin/common"
)

// Kind is the value type of a twin property.
type Kind int

const (
	// KindNone is a value that is none of the others, e.g. null or an array.
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDouble
	KindString
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	default:
		return "none"
	}
}

// Verdict of a desired property update.
type Verdict int

const (
	Completed Verdict = iota
	Error
)

func (v Verdict) String() string {
	if v == Completed {
		return "completed"
	}
	return "error"
}

// Code is the ack code reported to the hub.
func (v Verdict) Code() int {
	if v == Completed {
		return common.RequestSuccessCode
	}
	return common.InternalErrorCode
}

// Peripheral is the handle a binding carries to its handler.
type Peripheral interface {
	Name() string
}

// Update is one desired property value.
type Update struct {
	Name  string
	Kind  Kind
	Value interface{}
	// Context is the peripheral of the binding, nil if none.
	Context Peripheral
	// desired document version
	Version int64
}

// Ack is the answer to an Update.
type Ack struct {
	Name    string
	Verdict Verdict
	Value   interface{}
	Version int64
}

// Handler validate and apply an update, it returns the one
// and only ack of the update.
type Handler func(u *Update) Ack

// Binding bind a desired property to its handler.
type Binding struct {
	Name    string
	Kind    Kind
	Context Peripheral
	Handler Handler
}

// RateSetter change the telemetry report period.
type RateSetter interface {
	SetReportPeriod(period time.Duration)
}

func complete(u *Update, value interface{}) Ack {
	return Ack{Name: u.Name, Verdict: Completed, Value: value, Version: u.Version}
}

func reject(u *Update, value interface{}) Ack {
	return Ack{Name: u.Name, Verdict: Error, Value: value, Version: u.Version}
}

// ErrInvalidValue is returned by Patch when a raw ack value is not valid json.
var ErrInvalidValue = errors.New("ack value is not valid json")

// Patch build the reported patch of the ack:
// {"<name>":{"value":v,"ac":200,"av":3,"ad":"completed"}}
// A json.RawMessage value is written as is, it keeps its own layout.
func (a Ack) Patch() ([]byte, error) {
	name, err := json.Marshal(a.Name)
	if err != nil {
		return nil, err
	}

	var value []byte
	switch v := a.Value.(type) {
	case json.RawMessage:
		if len(v) == 0 {
			value = []byte("null")
		} else if !json.Valid(v) {
			return nil, ErrInvalidValue
		} else {
			value = v
		}
	default:
		value, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.Write(name)
	buf.WriteString(`:{"value":`)
	buf.Write(value)
	buf.WriteString(`,"ac":`)
	buf.WriteString(strconv.Itoa(a.Verdict.Code()))
	buf.WriteString(`,"av":`)
	buf.WriteString(strconv.FormatInt(a.Version, 10))
	buf.WriteString(`,"ad":"`)
	buf.WriteString(a.Verdict.String())
	buf.WriteString(`"}}`)

	return buf.Bytes(), nil
}

// ReportPatch build a reported patch for a single property.
func ReportPatch(name string, value interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{name: value})
}
