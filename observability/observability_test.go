package observability

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigialab/vigia/dbopen"
)

func TestMetrics_RecordFlushQuery(t *testing.T) {
	// WHAT: Recorded metrics survive a flush and come back from Query.
	// WHY: Cycle metrics are the only record of pipeline throughput.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))

	mm := NewMetricsManager(db, 100, time.Hour)
	defer mm.Close()

	mm.RecordSimple("cycle_duration_ms", 1234, "milliseconds")
	mm.Record(&Metric{
		Name:      "events_normalized",
		Timestamp: time.Now(),
		Value:     42,
		Labels:    map[string]string{"source": "GDELT"},
		Unit:      "count",
	})
	mm.Flush()

	got, err := mm.Query("cycle_duration_ms", nil, nil, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("metrics: got %d, want 1", len(got))
	}
	if got[0].Value != 1234 {
		t.Errorf("value: got %v, want 1234", got[0].Value)
	}

	got, err = mm.Query("events_normalized", nil, nil, 10)
	if err != nil {
		t.Fatalf("query labeled: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("labeled metrics: got %d, want 1", len(got))
	}
	if got[0].Labels["source"] != "GDELT" {
		t.Errorf("labels: got %v", got[0].Labels)
	}
}

func TestMetrics_BufferOverflowFlushes(t *testing.T) {
	// WHAT: Hitting bufferSize triggers an inline flush.
	// WHY: A long cycle must not hold datapoints in memory indefinitely.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))

	mm := NewMetricsManager(db, 3, time.Hour)
	defer mm.Close()

	for i := 0; i < 3; i++ {
		mm.RecordSimple("batch_size", float64(i), "count")
	}

	got, err := mm.Query("batch_size", nil, nil, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("metrics after overflow: got %d, want 3", len(got))
	}
}

func TestHeartbeat_WriteAndRead(t *testing.T) {
	// WHAT: A heartbeat write is visible via LastHeartbeat.
	// WHY: Operators distinguish a stalled daemon from an idle one by this.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	ctx := context.Background()

	h := NewHeartbeatWriter(db, "riskpipe", time.Minute)
	h.beat(ctx)

	ts, err := LastHeartbeat(ctx, db, "riskpipe")
	if err != nil {
		t.Fatalf("last heartbeat: %v", err)
	}
	if ts.IsZero() {
		t.Fatal("expected a heartbeat timestamp")
	}

	none, err := LastHeartbeat(ctx, db, "other")
	if err != nil {
		t.Fatalf("last heartbeat (missing): %v", err)
	}
	if !none.IsZero() {
		t.Errorf("expected zero time for unknown worker, got %v", none)
	}
}
