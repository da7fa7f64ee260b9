package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/profiledir/internal/directory"
	"github.com/kalambet/profiledir/internal/events"
	"github.com/kalambet/profiledir/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func recordChange(t *testing.T, store *storage.Store, kind directory.ChangeKind, id string) {
	t.Helper()
	p := directory.Profile{
		ID:       id,
		Name:     "Profile " + id,
		Avatar:   "https://example.com/" + id + ".png",
		Location: directory.Location{Address: "1 Main", City: "Austin", Country: "USA"},
	}
	if err := store.ApplyChange(directory.Change{Kind: kind, Profile: p, At: time.Now().UTC()}, true); err != nil {
		t.Fatalf("ApplyChange: %v", err)
	}
}

// resetRunAfter sets run_after to now so the job is immediately claimable after FailJob backoff.
func resetRunAfter(t *testing.T, store *storage.Store) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ? WHERE status = 'pending'`, now); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store) (string, int) {
	t.Helper()
	var status string
	var attempts int
	if err := store.DB().QueryRow(`SELECT status, attempts FROM jobs LIMIT 1`).Scan(&status, &attempts); err != nil {
		t.Fatalf("query job: %v", err)
	}
	return status, attempts
}

func TestWorker_PublishesJob(t *testing.T) {
	store := openTestStore(t)
	recordChange(t, store, directory.ChangeAdded, "p1")

	pub := &recordingPublisher{}
	w := NewWorker(store, pub, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	got := pub.Events()
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	if got[0].Type != events.EventProfileCreated || got[0].ProfileID != "p1" {
		t.Errorf("event = %s/%s, want profile.created/p1", got[0].Type, got[0].ProfileID)
	}
	if got[0].Profile.Location.City != "Austin" {
		t.Errorf("profile city = %q, want Austin", got[0].Profile.Location.City)
	}

	if status, _ := jobStatus(t, store); status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestWorker_NothingToDo(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &recordingPublisher{}, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Error("RunOnce returned true on empty outbox")
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store := openTestStore(t)
	recordChange(t, store, directory.ChangeUpdated, "p2")

	pub := &recordingPublisher{}
	pub.SetErr(errors.New("connection reset"))
	w := NewWorker(store, pub, 0)
	ctx := context.Background()

	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 1 error: %v", err)
	}
	status, attempts := jobStatus(t, store)
	if status != "pending" || attempts != 1 {
		t.Errorf("after fail: status=%q attempts=%d, want pending/1", status, attempts)
	}

	pub.SetErr(nil)
	resetRunAfter(t, store)

	didWork, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce 2 error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce 2 returned false")
	}
	if status, _ := jobStatus(t, store); status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
	if len(pub.Events()) != 1 {
		t.Errorf("published %d events, want 1", len(pub.Events()))
	}
}

func TestWorker_MaxRetriesExceeded(t *testing.T) {
	store := openTestStore(t)
	recordChange(t, store, directory.ChangeRemoved, "p3")

	pub := &recordingPublisher{}
	pub.SetErr(errors.New("permanent error"))
	w := NewWorker(store, pub, 0)
	ctx := context.Background()

	// outbox jobs allow five attempts
	for i := 1; i <= 5; i++ {
		didWork, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		if !didWork {
			t.Fatalf("RunOnce %d returned false", i)
		}
		if i < 5 {
			resetRunAfter(t, store)
		}
	}

	if status, _ := jobStatus(t, store); status != "failed" {
		t.Errorf("final status = %q, want failed", status)
	}
}

func TestWorker_BadPayloadFails(t *testing.T) {
	store := openTestStore(t)
	if err := store.EnqueueJob(storage.Job{ID: "bad", Type: storage.JobTypeProfileEvent, PayloadJSON: `{`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	w := NewWorker(store, &recordingPublisher{}, 0)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if status, _ := jobStatus(t, store); status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
}

func TestWorker_PreservesOrder(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		recordChange(t, store, directory.ChangeAdded, fmt.Sprintf("p%d", i))
	}

	pub := &recordingPublisher{}
	w := NewWorker(store, pub, 0)
	for i := 0; i < 5; i++ {
		if _, err := w.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce %d: %v", i, err)
		}
	}

	got := pub.Events()
	if len(got) != 5 {
		t.Fatalf("published %d events, want 5", len(got))
	}
	for i, ev := range got {
		if want := fmt.Sprintf("p%d", i); ev.ProfileID != want {
			t.Errorf("event %d profile = %q, want %q", i, ev.ProfileID, want)
		}
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	recordChange(t, store, directory.ChangeAdded, "p-run")

	pub := &recordingPublisher{}
	w := NewWorker(store, pub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(pub.Events()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for publish")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// recordingPublisher keeps every published event in memory. Publish fails
// with err while it is set.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ProfileEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.ProfileEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []events.ProfileEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ProfileEvent(nil), p.events...)
}

func (p *recordingPublisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
