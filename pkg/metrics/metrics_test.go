package metrics

import "testing"

func TestNewRegistersWithoutPanicking(t *testing.T) {
	c := New("diffsync_test_metrics")
	if c.SessionsActive == nil {
		t.Fatal("SessionsActive not initialized")
	}
	c.SessionsActive.Set(3)
	c.SyncRoundsTotal.Inc()
	c.EditsAppliedTotal.Inc()
	c.DocumentVersion.Set(1)
	c.StaleClientsEvicted.Inc()
	c.SyncErrorsTotal.Inc()
}

func TestNewIsIdempotentAcrossCalls(t *testing.T) {
	// Registering the same namespace twice must not panic; the second
	// call gets back the already-registered collectors.
	a := New("diffsync_test_metrics_dup")
	b := New("diffsync_test_metrics_dup")
	a.SyncRoundsTotal.Inc()
	b.SyncRoundsTotal.Inc()
}
