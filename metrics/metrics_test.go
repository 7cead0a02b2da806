package metrics

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(TwinAcks.WithLabelValues("DesiredSampleRate", "completed"))
	ObserveAck("DesiredSampleRate", "completed")
	ObserveAck("DesiredSampleRate", "completed")
	after := testutil.ToFloat64(TwinAcks.WithLabelValues("DesiredSampleRate", "completed"))
	assert.Equal(t, before+2, after)

	before = testutil.ToFloat64(Telemetry.WithLabelValues(TelemetryOutOfRange))
	ObserveTelemetry(TelemetryOutOfRange)
	assert.Equal(t, before+1, testutil.ToFloat64(Telemetry.WithLabelValues(TelemetryOutOfRange)))
}

func TestHandler(t *testing.T) {
	ObserveTelemetry(TelemetryReported)

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "devtwin_telemetry_total"))
}
