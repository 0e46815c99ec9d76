package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveAPIIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ApiInflightInc()
	m.ObserveAPI("GET", "/v1/jobs/:id/state", "200", 25*time.Millisecond)
	m.ApiInflightDec()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !hasMetricFamily(families, "foldcore_api_requests_total") {
		t.Fatal("expected foldcore_api_requests_total to be registered and observed")
	}
}

func TestObserveReaperSweepRecordsBothKinds(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveReaperSweep(3, 2, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !hasMetricFamily(families, "foldcore_reaper_reaped_total") {
		t.Fatal("expected foldcore_reaper_reaped_total to be registered and observed")
	}
}

func TestNilMetricsIsSafeToUse(t *testing.T) {
	var m *Metrics
	m.ApiInflightInc()
	m.ApiInflightDec()
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveQueueDepth("job_abc", 3)
	m.ObserveReaperSweep(1, 1, time.Millisecond)
}

func hasMetricFamily(families []*dto.MetricFamily, name string) bool {
	for _, f := range families {
		if f.GetName() == name {
			return true
		}
	}
	return false
}
