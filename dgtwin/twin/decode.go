package twin

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
	"k8s.io/klog"
)

const VersionKey = "$version"

// ParseDesired split a desired document into its properties
// and its version.
func ParseDesired(doc []byte) (map[string]json.RawMessage, int64, error) {
	props := make(map[string]json.RawMessage)
	if err := json.Unmarshal(doc, &props); err != nil {
		return nil, 0, err
	}

	var version int64
	if raw, exist := props[VersionKey]; exist {
		delete(props, VersionKey)
		if v, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64); err == nil {
			version = v
		} else {
			klog.Warningf("invalid desired version %s, ignored", raw)
		}
	}

	return props, version, nil
}

// Decode decode raw against the binding's kind. A value that does not
// match the kind keeps the kind of its json value.
func Decode(b *Binding, raw []byte, version int64) *Update {
	u := &Update{
		Name:    b.Name,
		Kind:    KindNone,
		Context: b.Context,
		Version: version,
	}

	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		klog.Warningf("decode %s failed: %v", b.Name, err)
		return u
	}

	switch b.Kind {
	case KindBool:
		if val, ok := v.(bool); ok {
			u.Kind, u.Value = KindBool, val
			return u
		}
	case KindInt:
		if n, ok := v.(json.Number); ok {
			if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
				u.Kind, u.Value = KindInt, int(i)
				return u
			}
		}
	case KindFloat:
		if n, ok := v.(json.Number); ok {
			if f, err := strconv.ParseFloat(string(n), 32); err == nil {
				u.Kind, u.Value = KindFloat, float32(f)
				return u
			}
		}
	case KindDouble:
		if n, ok := v.(json.Number); ok {
			if f, err := strconv.ParseFloat(string(n), 64); err == nil {
				u.Kind, u.Value = KindDouble, f
				return u
			}
		}
	case KindString:
		if val, ok := v.(string); ok {
			u.Kind, u.Value = KindString, val
			return u
		}
	case KindObject:
		if val, ok := v.(map[string]interface{}); ok {
			u.Kind, u.Value = KindObject, val
			return u
		}
	}

	u.Kind, u.Value = inferKind(v)
	return u
}

func inferKind(v interface{}) (Kind, interface{}) {
	switch val := v.(type) {
	case bool:
		return KindBool, val
	case json.Number:
		if i, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return KindInt, int(i)
		}
		if f, err := strconv.ParseFloat(string(val), 64); err == nil {
			return KindDouble, f
		}
		return KindNone, string(val)
	case string:
		return KindString, val
	case map[string]interface{}:
		return KindObject, val
	default:
		return KindNone, val
	}
}
