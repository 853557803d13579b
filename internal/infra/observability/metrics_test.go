package observability

import (
	"testing"
	"time"
)

func TestOpsSnapshotAggregatesRealLabels(t *testing.T) {
	m := NewMetrics()

	// Labels as the middleware and dashboard actually write them.
	m.IncrRequest("200")
	m.IncrRequest("200")
	m.IncrRequest("404")
	m.IncrRequest("500")
	m.IncrCacheHit("user_profile")
	m.IncrCacheHit("collector_profile")
	m.IncrCacheMiss("user_profile")
	m.IncrCacheMiss("collector_profile")

	snap := m.OpsSnapshot()
	if snap.TotalRequests != 4 {
		t.Errorf("total requests %d, want 4", snap.TotalRequests)
	}
	// Only the 5xx counts as an error; the 404 does not.
	if snap.ErrorRate != 0.25 {
		t.Errorf("error rate %v, want 0.25", snap.ErrorRate)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("cache hit rate %v, want 0.5", snap.CacheHitRate)
	}
}

func TestOpsSnapshotMutationCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrMutation("booking", "submitted")
	m.IncrMutation("booking", "reconciled")
	m.IncrMutation("withdrawal", "submitted")
	m.IncrMutation("withdrawal", "failed")

	snap := m.OpsSnapshot()
	if snap.MutationsSubmitted != 2 {
		t.Errorf("submitted %d, want 2", snap.MutationsSubmitted)
	}
	if snap.MutationsReconciled != 1 {
		t.Errorf("reconciled %d, want 1", snap.MutationsReconciled)
	}
	if snap.MutationsFailed != 1 {
		t.Errorf("failed %d, want 1", snap.MutationsFailed)
	}
}

func TestOpsSnapshotEmptyRegistry(t *testing.T) {
	m := NewMetrics()

	snap := m.OpsSnapshot()
	if snap.TotalRequests != 0 || snap.ErrorRate != 0 || snap.CacheHitRate != 0 {
		t.Errorf("fresh registry snapshot not zeroed: %+v", snap)
	}
}

func TestExternalErrorCounter(t *testing.T) {
	m := NewMetrics()

	m.IncrExternalError("postgrest")
	m.IncrExternalError("postgrest")
	m.IncrExternalError("gotrue")

	if got := m.counterTotal("cleanearth_external_errors_total", nil); got != 3 {
		t.Errorf("external errors %v, want 3", got)
	}
}

func TestRecordRequestDuration(t *testing.T) {
	m := NewMetrics()

	m.RecordRequestDuration("GET /v1/guide", 20*time.Millisecond)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == "cleanearth_request_duration_seconds" {
			return
		}
	}
	t.Error("duration histogram not registered")
}
