package discover

import (
	"context"
	"errors"
	"testing"
)

func TestActionTracker_NewerActionCancelsOlder(t *testing.T) {
	tracker := NewActionTracker()

	first := tracker.Begin(context.Background(), "popup")
	second := tracker.Begin(context.Background(), "popup")
	defer second.Done()

	if !errors.Is(first.Context().Err(), context.Canceled) {
		t.Error("older action should be canceled")
	}
	if first.Current() {
		t.Error("older action should not be current")
	}
	if second.Context().Err() != nil || !second.Current() {
		t.Error("newer action should be live and current")
	}
	first.Done()
	if second.Context().Err() != nil {
		t.Error("finishing the older action must not cancel the newer one")
	}
}

func TestActionTracker_KindsAreIndependent(t *testing.T) {
	tracker := NewActionTracker()

	popup := tracker.Begin(context.Background(), "popup")
	defer popup.Done()
	favorites := tracker.Begin(context.Background(), "favorites")
	defer favorites.Done()

	if popup.Context().Err() != nil {
		t.Error("an action of another kind must not cancel this one")
	}
}

func TestTrack_DiscardsSupersededResult(t *testing.T) {
	tracker := NewActionTracker()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := Track(tracker, context.Background(), "popup", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		done <- err
	}()

	<-started
	fresh, err := Track(tracker, context.Background(), "popup", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil || fresh != "fresh" {
		t.Fatalf("newer action = %q, %v", fresh, err)
	}

	close(release)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("older action err = %v, want ErrSuperseded", err)
	}
}

func TestTrack_ReturnsResult(t *testing.T) {
	tracker := NewActionTracker()

	got, err := Track(tracker, context.Background(), "search", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("Track() = %d, %v", got, err)
	}
}
