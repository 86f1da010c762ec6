package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/eroom/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

func testRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eroom_scheduler_job_runs_total",
		Help: "test",
	}, []string{"job"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "eroom_scheduler_lag_seconds",
		Help: "test",
	})
	reg.MustRegister(runs, lag)
	runs.WithLabelValues("expire_contracts").Add(2)
	lag.Observe(0.5)
	return reg
}

func TestNewPusherSelectsExporter(t *testing.T) {
	log := zap.NewNop()

	assert.Nil(t, NewPusher(config.Config{}, log))
	assert.Nil(t, NewPusher(config.Config{MetricsPush: config.MetricsPushConfig{Exporter: ExporterPushgateway}}, log))
	assert.Nil(t, NewPusher(config.Config{MetricsPush: config.MetricsPushConfig{Exporter: "statsd", Endpoint: "localhost:8125"}}, log))

	p := NewPusher(config.Config{AppName: "eroom", MetricsPush: config.MetricsPushConfig{Exporter: ExporterPushgateway, Endpoint: "http://gw:9091"}}, log)
	assert.IsType(t, &PushgatewayPusher{}, p)

	p = NewPusher(config.Config{MetricsPush: config.MetricsPushConfig{Exporter: ExporterRemoteWrite, Endpoint: "http://prom/api/v1/write"}}, log)
	assert.IsType(t, &RemoteWritePusher{}, p)
}

func TestRemoteWritePusherSendsCountersOnly(t *testing.T) {
	var got prompb.WriteRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, proto.Unmarshal(raw, protoadapt.MessageV2Of(&got)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewRemoteWritePusher(srv.URL, "secret")
	require.NoError(t, p.Push(context.Background(), testRegistry(t)))

	assert.Equal(t, "Bearer secret", auth)
	require.Len(t, got.Timeseries, 1)
	series := got.Timeseries[0]
	assert.Equal(t, []prompb.Label{
		{Name: "__name__", Value: "eroom_scheduler_job_runs_total"},
		{Name: "job", Value: "expire_contracts"},
	}, series.Labels)
	require.Len(t, series.Samples, 1)
	assert.Equal(t, 2.0, series.Samples[0].Value)
}

func TestRemoteWritePusherReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), testRegistry(t))
	assert.ErrorContains(t, err, "502")
}

func TestPushgatewayPusherUsesJobAndGrouping(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPushgatewayPusher(srv.URL, "eroom", map[string]string{"environment": "test", "blank": " "})
	require.NoError(t, p.Push(context.Background(), testRegistry(t)))
	assert.Equal(t, "/metrics/job/eroom/environment/test", path)

	assert.Error(t, NewPushgatewayPusher(srv.URL, "", nil).Push(context.Background(), testRegistry(t)))
}
