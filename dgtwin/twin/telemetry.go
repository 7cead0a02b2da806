package twin

import (
	"math/rand"
	"sync"
	"time"
)

const (
	PropReportedUTC         = "ReportedUTC"
	PropReportedTemperature = "ReportedTemperature"
	PropReportedHumidity    = "ReportedHumidity"

	SensorErrorType    = "SensorError"
	SensorEnvironment  = "Environment"
	ErrTelemetryRange  = "Telemetry out of range"
	ContentTypeJSON    = "application/json"
	ContentEncodingUTF = "utf-8"
)

// Reading is one sample of the environment sensor.
type Reading struct {
	Temperature float32
	Humidity    float64
}

// InRange report whether temperature is in (-20, 60)
// and humidity in [0, 100].
func (r Reading) InRange() bool {
	return -20 < r.Temperature && r.Temperature < 60 &&
		0 <= r.Humidity && r.Humidity <= 100
}

// Report is a reported property value.
type Report struct {
	Name  string
	Value interface{}
}

// Reports return the reported properties of an accepted reading.
func (r Reading) Reports(now time.Time) []Report {
	return []Report{
		{Name: PropReportedUTC, Value: now.UTC().Format(time.RFC3339)},
		{Name: PropReportedTemperature, Value: r.Temperature},
		{Name: PropReportedHumidity, Value: r.Humidity},
	}
}

// ErrorRecord is published when a reading is out of range,
// the field order is the wire order.
type ErrorRecord struct {
	Sensor       string  `json:"Sensor"`
	ErrorMessage string  `json:"ErrorMessage"`
	Temperature  float32 `json:"Temperature"`
	Humidity     float64 `json:"Humidity"`
}

func NewErrorRecord(r Reading) *ErrorRecord {
	return &ErrorRecord{
		Sensor:       SensorEnvironment,
		ErrorMessage: ErrTelemetryRange,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
	}
}

// Sensor produce readings.
type Sensor interface {
	Read() Reading
}

// SyntheticSensor fake an environment sensor, humidity
// goes out of range from time to time.
type SyntheticSensor struct {
	lock sync.Mutex
	rand *rand.Rand
}

func NewSyntheticSensor(seed int64) *SyntheticSensor {
	return &SyntheticSensor{rand: rand.New(rand.NewSource(seed))}
}

func (s *SyntheticSensor) Read() Reading {
	s.lock.Lock()
	defer s.lock.Unlock()

	return Reading{
		Temperature: 25.05,
		Humidity:    50.00 + float64(s.rand.Intn(70)),
	}
}
