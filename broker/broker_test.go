package broker_test

import (
	"testing"
	"time"

	"github.com/mickamy/sql-tap-proxy/broker"
	"github.com/mickamy/sql-tap-proxy/event"
)

func TestPublishFanOut(t *testing.T) {
	t.Parallel()

	b := broker.New(4)
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(event.Event{ID: "1", Query: "SELECT 1"})

	for _, ch := range []<-chan event.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.ID != "1" {
				t.Errorf("expected id 1, got %q", ev.ID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for published event")
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	b := broker.New(1)
	slow, unsub := b.Subscribe()
	defer unsub()

	b.Publish(event.Event{ID: "1"})
	b.Publish(event.Event{ID: "2"})

	ev := <-slow
	if ev.ID != "1" {
		t.Errorf("expected first event to survive, got %q", ev.ID)
	}

	select {
	case ev := <-slow:
		t.Fatalf("expected no second event, got %v", ev)
	default:
	}

	_, dropped := b.Stats()
	if dropped != 1 {
		t.Errorf("expected 1 dropped event, got %d", dropped)
	}
}

func TestPublishDoesNotAffectOtherSubscribers(t *testing.T) {
	t.Parallel()

	b := broker.New(1)
	slow, unsubSlow := b.Subscribe()
	defer unsubSlow()
	fast, unsubFast := b.Subscribe()
	defer unsubFast()

	b.Publish(event.Event{ID: "1"})
	<-fast // drain so the second publish has room
	b.Publish(event.Event{ID: "2"})

	select {
	case ev := <-fast:
		if ev.ID != "2" {
			t.Errorf("expected event 2, got %q", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fast subscriber's event")
	}

	// The slow subscriber still has its first event queued regardless of
	// what happened to the fast one.
	select {
	case ev := <-slow:
		if ev.ID != "1" {
			t.Errorf("expected event 1, got %q", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for slow subscriber's event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	b := broker.New(4)
	ch, unsub := b.Subscribe()
	unsub()

	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", b.SubscriberCount())
	}

	b.Publish(event.Event{ID: "1"})

	if _, open := <-ch; open {
		t.Error("expected channel to be closed after unsubscribe")
	}
}
