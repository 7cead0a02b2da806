package twin

import (
	"bytes"
	"math"
	"strconv"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"k8s.io/klog"
)

// MaxKeyStringLen bound keyString, longer values are truncated.
const MaxKeyStringLen = 63

// NestedObject is keyJsonObj.
type NestedObject struct {
	KeyInt int
}

// ObjectReport is the value acknowledged for PropJSONObject.
type ObjectReport struct {
	KeyBool    bool
	KeyInt     int
	KeyFloat   float32
	KeyDouble  float64
	KeyString  string
	KeyJSONObj NestedObject
}

// MarshalJSON keep the key order and number format of the report:
// {"keyBool": true,"keyInt": 2,"keyFloat": 32.35,"keyDouble": 4567.8910,
// "keyString": "s","keyJsonObj":{"keyInt": 12}}
func (r *ObjectReport) MarshalJSON() ([]byte, error) {
	str, err := marshalString(r.KeyString)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"keyBool": `)
	buf.WriteString(strconv.FormatBool(r.KeyBool))
	buf.WriteString(`,"keyInt": `)
	buf.WriteString(strconv.Itoa(r.KeyInt))
	buf.WriteString(`,"keyFloat": `)
	buf.WriteString(formatNumber(float64(r.KeyFloat), 2))
	buf.WriteString(`,"keyDouble": `)
	buf.WriteString(formatNumber(r.KeyDouble, 4))
	buf.WriteString(`,"keyString": `)
	buf.Write(str)
	buf.WriteString(`,"keyJsonObj":{"keyInt": `)
	buf.WriteString(strconv.Itoa(r.KeyJSONObj.KeyInt))
	buf.WriteString(`}}`)

	return buf.Bytes(), nil
}

// formatNumber write f with prec decimals, json has no NaN nor infinity.
func formatNumber(f float64, prec int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// JSONObject extract the six fields of the object. Every field is
// optional and the update is always acknowledged completed; absent or
// mistyped fields are reported as their zero value, so are the numbers
// out of the range of their field.
func (v *Validator) JSONObject(u *Update) Ack {
	obj, _ := u.Value.(map[string]interface{})
	report := &ObjectReport{}

	if val, exist := obj["keyBool"]; exist {
		report.KeyBool, _ = val.(bool)
		klog.Infof("keyBool = %v", report.KeyBool)
	} else {
		klog.Infof("keyBool not found!")
	}

	if val, exist := obj["keyInt"]; exist {
		report.KeyInt = toInt(val)
		klog.Infof("keyInt = %d", report.KeyInt)
	} else {
		klog.Infof("keyInt not found!")
	}

	if val, exist := obj["keyFloat"]; exist {
		report.KeyFloat = toFloat32(val)
		klog.Infof("keyFloat = %.2f", report.KeyFloat)
	} else {
		klog.Infof("keyFloat not found!")
	}

	if val, exist := obj["keyDouble"]; exist {
		report.KeyDouble = toFloat64(val)
		klog.Infof("keyDouble = %.4f", report.KeyDouble)
	} else {
		klog.Infof("keyDouble not found!")
	}

	if val, exist := obj["keyString"]; exist {
		s, _ := val.(string)
		s = truncate(s, MaxKeyStringLen)
		report.KeyString = s
		klog.Infof("keyString = %s", report.KeyString)
	} else {
		klog.Infof("keyString not found!")
	}

	if val, exist := obj["keyJsonObj"]; exist {
		nested, ok := val.(map[string]interface{})
		if !ok {
			klog.Infof("keyJsonObj not found")
		}
		if n, exist := nested["nestedKeyInt"]; exist {
			report.KeyJSONObj.KeyInt = toInt(n)
			klog.Infof("nestedKeyInt = %d", report.KeyJSONObj.KeyInt)
		} else {
			klog.Infof("nestedKeyInt not found!")
		}
	} else {
		klog.Infof("keyJsonObj not found!")
	}

	payload, err := report.MarshalJSON()
	if err != nil {
		// the report holds plain values only.
		klog.Errorf("%s: marshal report failed: %v", u.Name, err)
		return complete(u, nil)
	}
	klog.Infof("DT Reported: %s", payload)

	return complete(u, json.RawMessage(payload))
}

// truncate cut s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func toInt(val interface{}) int {
	f := toNumber(val)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

func toFloat32(val interface{}) float32 {
	f := toNumber(val)
	if math.Abs(f) > math.MaxFloat32 {
		return 0
	}
	return float32(f)
}

func toFloat64(val interface{}) float64 {
	f := toNumber(val)
	if math.IsInf(f, 0) {
		return 0
	}
	return f
}

// toNumber return the number of val, 0 when val is not a number.
func toNumber(val interface{}) float64 {
	switch n := val.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		return f
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
