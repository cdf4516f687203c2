package core

import (
	"context"
	"testing"
	"time"
)

func TestStartExpiryScheduler_InvalidSpec(t *testing.T) {
	svc := newTestService(newFakeStore())
	if _, err := svc.StartExpiryScheduler(context.Background(), SchedulerConfig{Spec: "every day"}); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestStartExpiryScheduler_RunAtStart(t *testing.T) {
	sites, _ := withTestSchemas(t)
	store := newFakeStore("g1")
	past := time.Now().Add(-48 * time.Hour)
	e, err := store.Create(context.Background(), sites, "g1", Record{"tag": "A", "status": "Active", "expires": past})
	if err != nil {
		t.Fatal(err)
	}
	svc := newTestService(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ist := time.FixedZone("IST", 5*60*60+30*60)
	c, err := svc.StartExpiryScheduler(ctx, SchedulerConfig{Location: ist, RunAtStart: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(c.Entries()))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := store.Get(ctx, sites, e.ID)
		if got.Fields["status"] == "Expired" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("record was not expired by the start-up sweep")
}
