package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDroppedByReason(t *testing.T) {
	before := testutil.ToFloat64(DroppedTotal.WithLabelValues(ReasonUnknownType))

	DroppedTotal.WithLabelValues(ReasonUnknownType).Inc()
	DroppedTotal.WithLabelValues(ReasonHandlerError).Inc()

	if got := testutil.ToFloat64(DroppedTotal.WithLabelValues(ReasonUnknownType)); got != before+1 {
		t.Fatalf("unknown_type drops should be %v, not %v", before+1, got)
	}
}

func TestObserveHandler(t *testing.T) {
	ObserveHandler("echo", time.Now().Add(-time.Millisecond))

	if n := testutil.CollectAndCount(HandlerDuration); n < 1 {
		t.Fatalf("expected at least one handler series, got %d", n)
	}
}
