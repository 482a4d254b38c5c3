package broker_test

import (
	"testing"
	"time"

	"github.com/goamp/amp/broker"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	t.Parallel()
	b := broker.New(4)

	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish("hello")

	for _, ch := range []<-chan broker.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev != "hello" {
				t.Fatalf("got %v, want hello", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := broker.New(4)
	ch, unsub := b.Subscribe()
	unsub()

	b.Publish("should not arrive")

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	t.Parallel()
	b := broker.New(1)
	ch, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for range 10 {
			b.Publish("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
	<-ch
}
