package event

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus[string](BusOptions{Name: "test"})
	defer bus.Close()

	first, cancelFirst := bus.Subscribe()
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	bus.Publish("hello")

	for i, ch := range []<-chan string{first, second} {
		select {
		case got := <-ch:
			if got != "hello" {
				t.Fatalf("subscriber %d got %q", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received", i)
		}
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewBus[int](BusOptions{Name: "test", SubscriberBufferSize: 1})
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if bus.Dropped() != 9 {
		t.Fatalf("expected 9 drops, got %d", bus.Dropped())
	}
}

func TestSubscribeFiltered(t *testing.T) {
	bus := NewBus[int](BusOptions{Name: "test"})
	defer bus.Close()

	even, cancel := bus.SubscribeFiltered(func(n int) bool { return n%2 == 0 })
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	select {
	case got := <-even:
		if got != 2 {
			t.Fatalf("filter leaked %d", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("filtered subscriber never received")
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus[int](BusOptions{Name: "test"})
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}
	cancel()
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", bus.SubscriberCount())
	}
	if _, open := <-ch; open {
		t.Fatalf("cancel must close the channel")
	}
}

func TestCloseIsIdempotentAndClosesChannels(t *testing.T) {
	bus := NewBus[int](BusOptions{Name: "test"})
	ch, _ := bus.Subscribe()

	bus.Close()
	bus.Close()

	if _, open := <-ch; open {
		t.Fatalf("close must close subscriber channels")
	}
	bus.Publish(1)
	if bus.Published() != 0 {
		t.Fatalf("publish after close must be a no-op")
	}
}

func TestPublishSurvivesConcurrentCancel(t *testing.T) {
	bus := NewBus[int](BusOptions{Name: "test", SubscriberBufferSize: 1})
	defer bus.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				bus.Publish(1)
			}
		}
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, cancel := bus.Subscribe()
		cancel()
	}
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publisher never finished")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", bus.SubscriberCount())
	}
}

func TestMaxSubscribersRejectsOverflow(t *testing.T) {
	bus := NewBus[int](BusOptions{Name: "test", MaxSubscribers: 1})
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	overflow, _ := bus.Subscribe()
	if _, open := <-overflow; open {
		t.Fatalf("overflow subscription must come back closed")
	}
	if bus.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}
}
