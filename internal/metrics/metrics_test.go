package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/miradorstack/mirador-sop/internal/models"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	default:
		t.Fatalf("unexpected metric type")
		return 0
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveRunLabels(t *testing.T) {
	before := counterValue(t, runsTotal.WithLabelValues(OutcomeTimeout))
	ObserveRun(time.Second, OutcomeTimeout)
	if got := counterValue(t, runsTotal.WithLabelValues(OutcomeTimeout)); got != before+1 {
		t.Fatalf("expected timeout counter %v, got %v", before+1, got)
	}

	before = counterValue(t, runsTotal.WithLabelValues(OutcomeSuccess))
	ObserveRun(-time.Second, "whatever")
	if got := counterValue(t, runsTotal.WithLabelValues(OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected unknown outcomes to count as success")
	}
}

func TestObservePartition(t *testing.T) {
	before := counterValue(t, incidentsTotal.WithLabelValues("noise"))
	ObservePartition(models.Accounting{Total: 10, Clusters: 2, Emitted: 6, Withheld: 2, Noise: 2})
	if got := counterValue(t, incidentsTotal.WithLabelValues("noise")); got != before+2 {
		t.Fatalf("expected noise counter +2, got %v", got-before)
	}
	if got := counterValue(t, noiseRatio); got != 0.2 {
		t.Fatalf("expected noise ratio 0.2, got %v", got)
	}
}
