package dtmodule

import (
	"time"

	json "github.com/goccy/go-json"
	"k8s.io/klog"

	"github.com/jwzl/devtwin/common"
	"github.com/jwzl/devtwin/dgtwin/dtcontext"
	"github.com/jwzl/devtwin/dgtwin/twin"
	"github.com/jwzl/devtwin/dgtwin/types"
	"github.com/jwzl/devtwin/metrics"
)

// TelemetryModule report the sensor readings periodically.
type TelemetryModule struct {
	name    string
	context *dtcontext.DTContext
	//for msg communication
	recieveChan chan interface{}
	// for module's health check.
	heartBeatChan chan interface{}

	period time.Duration
	ticker *time.Ticker
	now    func() time.Time
}

func NewTelemetryModule() *TelemetryModule {
	return &TelemetryModule{name: types.DGTWINS_MODULE_TELEMETRY, now: time.Now}
}

func (tm *TelemetryModule) Name() string {
	return tm.name
}

func (tm *TelemetryModule) InitModule(dtc *dtcontext.DTContext, comm, heartBeat chan interface{}) {
	tm.context = dtc
	tm.recieveChan = comm
	tm.heartBeatChan = heartBeat
	tm.period = dtc.Conf.ReportPeriod
}

func (tm *TelemetryModule) Start() {
	tm.resetTicker(tm.period)
	defer tm.resetTicker(0)

	for {
		// a nil channel never fires, so a zero period stops the reporting.
		var tick <-chan time.Time
		if tm.ticker != nil {
			tick = tm.ticker.C
		}

		select {
		case <-tick:
			tm.report()
		case period := <-tm.context.PeriodChan:
			klog.Infof("telemetry period %v -> %v", tm.period, period)
			tm.resetTicker(period)
		case msg, ok := <-tm.recieveChan:
			if !ok {
				return
			}
			klog.Warningf("telemetry module ignore message (%v)", msg)
		case v, ok := <-tm.heartBeatChan:
			if !ok {
				return
			}

			err := tm.context.HandleHeartBeat(tm.Name(), v.(string))
			if err != nil {
				klog.Infof("%s module stopped", tm.Name())
				return
			}
		}
	}
}

func (tm *TelemetryModule) resetTicker(period time.Duration) {
	if tm.ticker != nil {
		tm.ticker.Stop()
		tm.ticker = nil
	}
	tm.period = period
	if period > 0 {
		tm.ticker = time.NewTicker(period)
	}
}

// report send one reading, or the error event when it is out of range.
func (tm *TelemetryModule) report() {
	if !tm.context.IsConnected() {
		klog.V(4).Infof("not connected, skip telemetry")
		metrics.ObserveTelemetry(metrics.TelemetrySkipped)
		return
	}

	reading := tm.context.Devices.Sensor.Read()
	if reading.InRange() {
		for _, r := range reading.Reports(tm.now()) {
			content, err := twin.ReportPatch(r.Name, r.Value)
			if err != nil {
				klog.Errorf("build report %s failed: %v", r.Name, err)
				continue
			}
			tm.context.SendReportMessage(content)
		}
		metrics.ObserveTelemetry(metrics.TelemetryReported)
		return
	}

	payload, err := json.Marshal(twin.NewErrorRecord(reading))
	if err != nil {
		klog.Errorf("error record dropped: %v", err)
		metrics.ObserveTelemetry(metrics.TelemetryDropped)
		return
	}

	klog.Warningf("telemetry out of range: temperature %v humidity %v",
		reading.Temperature, reading.Humidity)
	tm.context.SendEventMessage(&common.EventMessage{
		Payload:         payload,
		Properties:      []common.Property{{Key: "type", Value: twin.SensorErrorType}},
		ContentType:     twin.ContentTypeJSON,
		ContentEncoding: twin.ContentEncodingUTF,
	})
	metrics.ObserveTelemetry(metrics.TelemetryOutOfRange)
}
