package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bimakw/nexus-orchestrator/internal/domain/entities"
	nexuserr "github.com/bimakw/nexus-orchestrator/internal/errors"
	"github.com/bimakw/nexus-orchestrator/internal/testutil"
)

func TestIntentBook_TerminalMovesToHistory(t *testing.T) {
	book := NewIntentBook()
	if err := book.TryAcquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := book.Install(testutil.CreateTestIntent(testutil.WithIntentID("a"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := book.Update("a", func(i *entities.Intent) error {
		return i.Transition(entities.IntentFailed)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if book.Current() != nil {
		t.Error("expected no current intent")
	}
	if history := book.History(); len(history) != 1 || history[0].ID != "a" {
		t.Errorf("unexpected history: %+v", history)
	}
	if err := book.TryAcquire(); err != nil {
		t.Errorf("expected slot to be free, got %v", err)
	}
}

func TestIntentBook_FailedUpdateLeavesState(t *testing.T) {
	book := NewIntentBook()
	_ = book.TryAcquire()
	_ = book.Install(testutil.CreateTestIntent(testutil.WithIntentID("a")))

	_, err := book.Update("a", func(i *entities.Intent) error {
		i.TxHash = "mutated"
		return i.Transition(entities.IntentCompleted)
	})
	if !errors.Is(err, nexuserr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	current := book.Current()
	if current.Status != entities.IntentPending || current.TxHash != "" {
		t.Errorf("expected state unchanged, got %+v", current)
	}
}

func TestIntentBook_HistoryMostRecentFirst(t *testing.T) {
	book := NewIntentBook()
	for _, id := range []string{"a", "b", "c"} {
		if err := book.TryAcquire(); err != nil {
			t.Fatalf("acquire %s: %v", id, err)
		}
		_ = book.Install(testutil.CreateTestIntent(testutil.WithIntentID(id)))
		if _, err := book.Update(id, func(i *entities.Intent) error {
			return i.Transition(entities.IntentFailed)
		}); err != nil {
			t.Fatalf("update %s: %v", id, err)
		}
	}

	history := book.History()
	if len(history) != 3 || history[0].ID != "c" || history[2].ID != "a" {
		t.Errorf("unexpected history order: %s %s %s", history[0].ID, history[1].ID, history[2].ID)
	}
}

func TestIntentBook_AcquireWakesOnClose(t *testing.T) {
	book := NewIntentBook()
	_ = book.TryAcquire()

	errCh := make(chan error, 1)
	go func() {
		errCh <- book.Acquire(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	book.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, nexuserr.ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after close")
	}
}

func TestIntentBook_AcquireHonoursContext(t *testing.T) {
	book := NewIntentBook()
	_ = book.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := book.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestIntentBook_Abandon(t *testing.T) {
	book := NewIntentBook()
	_ = book.TryAcquire()
	book.Abandon()

	if err := book.TryAcquire(); err != nil {
		t.Errorf("expected slot to be free after abandon, got %v", err)
	}
}
