package events_test

import (
	"testing"
	"time"

	"github.com/dpmst/rtd2142fw/internal/events"
	"github.com/dpmst/rtd2142fw/internal/models"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := events.NewBus()

	ch := bus.Subscribe("test1")

	p := models.Progress{Status: models.StatusDeviceWrite, Done: 10, Total: 100}
	bus.Publish(p)

	select {
	case got := <-ch:
		if got.Status != models.StatusDeviceWrite || got.Done != 10 || got.Total != 100 {
			t.Errorf("got %+v, want %+v", got, p)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("test-unsub")

	bus.Unsubscribe("test-unsub")

	// Channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusDropsEventsWhenFull(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("slow-reader")

	// Publish many events without reading — should not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			bus.Publish(models.Progress{Status: models.StatusDeviceErase, Done: uint32(i), Total: 20})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked for too long (should drop events)")
	}

	bus.Unsubscribe("slow-reader")
	_ = ch
}

func TestBusSubscriberCount(t *testing.T) {
	bus := events.NewBus()
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
	bus.Subscribe("s1")
	bus.Subscribe("s2")
	if n := bus.SubscriberCount(); n != 2 {
		t.Errorf("expected 2 subscribers, got %d", n)
	}
	bus.Unsubscribe("s1")
	if n := bus.SubscriberCount(); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
}
