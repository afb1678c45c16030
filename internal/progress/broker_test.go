package progress

import (
	"testing"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

func update(episode int) domain.ProgressUpdate {
	return domain.ProgressUpdate{SessionID: "s", Episode: episode}
}

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(update(1))

	for i, ch := range []<-chan domain.ProgressUpdate{ch1, ch2} {
		select {
		case u := <-ch:
			if u.Episode != 1 {
				t.Errorf("subscriber %d got episode %d, want 1", i, u.Episode)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the update", i)
		}
	}
}

func TestBrokerDropsOldestWhenFull(t *testing.T) {
	b := NewBroker(3)
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	// Nobody reads: only the newest three of ten survive.
	for i := 1; i <= 10; i++ {
		b.Publish(update(i))
	}

	var got []int
	for len(got) < 3 {
		select {
		case u := <-ch:
			got = append(got, u.Episode)
		case <-time.After(time.Second):
			t.Fatalf("queue drained early: %v", got)
		}
	}

	want := []int{8, 9, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("surviving updates = %v, want %v", got, want)
		}
	}
	if b.Dropped() == 0 {
		t.Error("Dropped = 0, want a shed count after overflowing the queue")
	}
}

func TestBrokerPublishNeverBlocks(t *testing.T) {
	b := NewBroker(1)
	defer b.Close()

	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10_000; i++ {
			b.Publish(update(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a saturated subscriber")
	}
}

func TestBrokerCancelStopsDelivery(t *testing.T) {
	b := NewBroker(4)
	defer b.Close()

	ch, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d, want 1", b.Subscribers())
	}

	cancel()
	if b.Subscribers() != 0 {
		t.Fatalf("Subscribers = %d after cancel, want 0", b.Subscribers())
	}

	// The channel is closed; a publish after cancel must not revive it.
	b.Publish(update(1))
	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}

	cancel() // second cancel is a no-op
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker(4)
	ch, _ := b.Subscribe()

	b.Publish(update(1))
	b.Close()

	// Buffered update still drains, then the channel reports closed.
	u, open := <-ch
	if !open || u.Episode != 1 {
		t.Fatalf("first read = (%v, %v), want buffered update", u.Episode, open)
	}
	if _, open := <-ch; open {
		t.Error("channel still open after Close")
	}

	// Subscribing after Close yields an already-closed channel.
	late, cancel := b.Subscribe()
	defer cancel()
	if _, open := <-late; open {
		t.Error("late subscriber got an open channel")
	}

	b.Publish(update(2)) // ignored, must not panic
	b.Close()            // double close is a no-op
}
