package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollector_RecordOperation(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.RecordOperation(ctx, "store", "success", 10)
	collector.RecordOperation(ctx, "store", "success", 12)
	collector.RecordOperation(ctx, "store", "error", 5)
	collector.RecordOperation(ctx, "retrieve", "success", 2)

	if got := testutil.CollectAndCount(collector.operationsTotal); got != 3 {
		t.Errorf("expected 3 metric series (store/success, store/error, retrieve/success), got %d", got)
	}

	storeSuccess := testutil.ToFloat64(collector.operationsTotal.WithLabelValues("store", "success"))
	if storeSuccess != 2 {
		t.Errorf("expected 2 store/success operations, got %f", storeSuccess)
	}

	storeError := testutil.ToFloat64(collector.operationsTotal.WithLabelValues("store", "error"))
	if storeError != 1 {
		t.Errorf("expected 1 store/error operation, got %f", storeError)
	}
}

func TestMetricsCollector_RecordStage(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.RecordStage(ctx, "reconsolidate", "verify", 100)
	collector.RecordStage(ctx, "reconsolidate", "rebuild-index", 250)
	collector.RecordStage(ctx, "reconsolidate", "rebuild-index", 300)

	if got := testutil.CollectAndCount(collector.operationDuration); got != 2 {
		t.Errorf("expected 2 histogram series, got %d", got)
	}
}

func TestMetricsCollector_RecordError(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.RecordError(ctx, "retrieve", "integrity")
	collector.RecordError(ctx, "retrieve", "integrity")
	collector.RecordError(ctx, "store", "storage")

	integrityErrors := testutil.ToFloat64(collector.errorsTotal.WithLabelValues("retrieve", "integrity"))
	if integrityErrors != 2 {
		t.Errorf("expected 2 retrieve/integrity errors, got %f", integrityErrors)
	}
}

func TestMetricsCollector_SetStorageCount(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.SetStorageCount(ctx, "fragments", 42)
	collector.SetStorageCount(ctx, "fragments", 43)
	collector.SetStorageCount(ctx, "merkle_index", 43)

	fragments := testutil.ToFloat64(collector.storageCount.WithLabelValues("fragments"))
	if fragments != 43 {
		t.Errorf("expected fragments gauge 43, got %f", fragments)
	}
}

func TestMetricsCollector_RecordVerificationFailure(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.RecordVerificationFailure(ctx, "fragments")
	collector.RecordVerificationFailure(ctx, "fragments")

	failures := testutil.ToFloat64(collector.verificationFailures.WithLabelValues("fragments"))
	if failures != 2 {
		t.Errorf("expected 2 verification failures, got %f", failures)
	}
}

func TestNoopCollectorIsSafe(t *testing.T) {
	var c Collector = NewNoopCollector()
	ctx := context.Background()

	c.RecordOperation(ctx, "store", "success", 1)
	c.RecordStage(ctx, "store", "write", 1)
	c.RecordError(ctx, "store", "storage")
	c.SetStorageCount(ctx, "fragments", 1)
	c.RecordVerificationFailure(ctx, "fragments")
}
