package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepview/prepview-backend/internal/model"
	"github.com/rs/zerolog"
)

func newTestProctor() (*ProctorService, *time.Time) {
	svc := NewProctorService(nil, zerolog.Nop())
	current := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }
	return svc, &current
}

func TestIngestCooldownHigh(t *testing.T) {
	svc, clock := newTestProctor()
	id := uuid.New()

	if _, emitted := svc.Ingest(id, model.ProctorTabSwitch, model.SeverityHigh, ""); !emitted {
		t.Fatal("first signal should emit")
	}

	*clock = clock.Add(3 * time.Second)
	if _, emitted := svc.Ingest(id, model.ProctorTabSwitch, model.SeverityHigh, ""); emitted {
		t.Error("second signal within 5s should be suppressed")
	}

	*clock = clock.Add(3 * time.Second) // 6s after the first emit
	if _, emitted := svc.Ingest(id, model.ProctorTabSwitch, model.SeverityHigh, ""); !emitted {
		t.Error("signal after the 5s cooldown should emit")
	}

	if got := len(svc.Events(id)); got != 2 {
		t.Errorf("event log has %d entries, want 2", got)
	}
}

func TestIngestCooldownDefault(t *testing.T) {
	svc, clock := newTestProctor()
	id := uuid.New()

	svc.Ingest(id, model.ProctorLookingAway, model.SeverityMedium, "")

	*clock = clock.Add(6 * time.Second)
	if _, emitted := svc.Ingest(id, model.ProctorLookingAway, model.SeverityMedium, ""); emitted {
		t.Error("medium severity repeat at 6s should be suppressed (15s cooldown)")
	}

	*clock = clock.Add(10 * time.Second) // 16s after the first emit
	if _, emitted := svc.Ingest(id, model.ProctorLookingAway, model.SeverityMedium, ""); !emitted {
		t.Error("signal after the 15s cooldown should emit")
	}
}

func TestIngestCooldownsAreIndependent(t *testing.T) {
	svc, _ := newTestProctor()
	id := uuid.New()

	svc.Ingest(id, model.ProctorTabSwitch, model.SeverityHigh, "")

	// Same kind at a different severity tracks its own cooldown.
	if _, emitted := svc.Ingest(id, model.ProctorTabSwitch, model.SeverityLow, ""); !emitted {
		t.Error("same kind, different severity should emit")
	}
	// Different kind at the same severity too.
	if _, emitted := svc.Ingest(id, model.ProctorPaste, model.SeverityHigh, ""); !emitted {
		t.Error("different kind, same severity should emit")
	}
	// And cooldowns are scoped per session.
	if _, emitted := svc.Ingest(uuid.New(), model.ProctorTabSwitch, model.SeverityHigh, ""); !emitted {
		t.Error("other session should not share cooldown state")
	}
}

func TestRecentWindowBounded(t *testing.T) {
	svc, clock := newTestProctor()
	id := uuid.New()

	for i := 0; i < 14; i++ {
		if _, emitted := svc.Ingest(id, model.ProctorLookingAway, model.SeverityLow, fmt.Sprintf("signal %d", i)); !emitted {
			t.Fatalf("signal %d unexpectedly suppressed", i)
		}
		*clock = clock.Add(20 * time.Second)
	}

	recent := svc.Recent(id)
	if len(recent) != recentWindow {
		t.Fatalf("recent window has %d entries, want %d", len(recent), recentWindow)
	}
	if recent[0].Detail != "signal 4" {
		t.Errorf("oldest retained = %q, want %q", recent[0].Detail, "signal 4")
	}
	if recent[len(recent)-1].Detail != "signal 13" {
		t.Errorf("newest retained = %q, want %q", recent[len(recent)-1].Detail, "signal 13")
	}

	// The full log keeps everything for the report.
	if got := len(svc.Events(id)); got != 14 {
		t.Errorf("event log has %d entries, want 14", got)
	}
}

func TestSubscribe(t *testing.T) {
	svc, clock := newTestProctor()
	id := uuid.New()

	got := make(chan model.ProctorEvent, 4)
	cancel := svc.Subscribe(id, func(e model.ProctorEvent) { got <- e })

	svc.Ingest(id, model.ProctorNoFace, model.SeverityHigh, "away")

	select {
	case e := <-got:
		if e.Kind != model.ProctorNoFace || e.Detail != "away" {
			t.Errorf("listener got %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never received the emitted event")
	}

	cancel()
	*clock = clock.Add(time.Minute)
	svc.Ingest(id, model.ProctorNoFace, model.SeverityHigh, "")

	select {
	case e := <-got:
		t.Errorf("cancelled listener received %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEvict(t *testing.T) {
	svc, _ := newTestProctor()
	id := uuid.New()

	svc.Ingest(id, model.ProctorPaste, model.SeverityMedium, "")
	svc.Evict(id)

	if got := svc.Events(id); got != nil {
		t.Errorf("Events after evict = %v, want nil", got)
	}
	if got := svc.Recent(id); len(got) != 0 {
		t.Errorf("Recent after evict = %v, want empty", got)
	}
	// A fresh signal starts clean state, no stale cooldown.
	if _, emitted := svc.Ingest(id, model.ProctorPaste, model.SeverityMedium, ""); !emitted {
		t.Error("post-evict signal should emit")
	}
}
