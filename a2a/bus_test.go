package a2a

import (
	"fmt"
	"sync"
	"testing"
)

func TestPublishEvictsOldestBeyondRetention(t *testing.T) {
	bus := NewBus()

	for i := 0; i < DefaultRetention+25; i++ {
		bus.Publish(Message{
			Sender:   fmt.Sprintf("stage-%d", i),
			Receiver: "next",
			Type:     TypeHandoff,
		})
	}

	if got := bus.Len(); got != DefaultRetention {
		t.Fatalf("expected %d retained messages, got %d", DefaultRetention, got)
	}

	all := bus.All()
	if all[0].Sender != "stage-25" {
		t.Fatalf("expected oldest surviving message from stage-25, got %s", all[0].Sender)
	}
	if all[len(all)-1].Sender != fmt.Sprintf("stage-%d", DefaultRetention+24) {
		t.Fatalf("expected newest message last, got %s", all[len(all)-1].Sender)
	}
}

func TestQueryFilters(t *testing.T) {
	bus := NewBus()
	bus.Publish(Message{Sender: "evaluation", Receiver: "refinement", Type: TypeVerdict})
	bus.Publish(Message{Sender: "refinement", Receiver: "evaluation", Type: TypeHandoff})
	bus.Publish(Message{Sender: "evaluation", Receiver: "done", Type: TypeTermination})

	if got := len(bus.Query(Filter{Sender: "evaluation"})); got != 2 {
		t.Fatalf("expected 2 messages from evaluation, got %d", got)
	}
	if got := len(bus.Query(Filter{Receiver: "evaluation"})); got != 1 {
		t.Fatalf("expected 1 message to evaluation, got %d", got)
	}
	if got := len(bus.Query(Filter{Type: TypeTermination})); got != 1 {
		t.Fatalf("expected 1 termination message, got %d", got)
	}
	if got := len(bus.Query(Filter{Sender: "evaluation", Type: TypeVerdict})); got != 1 {
		t.Fatalf("expected 1 verdict from evaluation, got %d", got)
	}
	if got := len(bus.Query(Filter{})); got != 3 {
		t.Fatalf("expected all 3 messages with empty filter, got %d", got)
	}
}

func TestQueryPreservesOrder(t *testing.T) {
	bus := NewBus()
	for i := 0; i < 5; i++ {
		bus.Publish(Message{Sender: "a", Receiver: fmt.Sprintf("r-%d", i), Type: TypeHandoff})
	}

	got := bus.Query(Filter{Sender: "a"})
	for i, msg := range got {
		if msg.Receiver != fmt.Sprintf("r-%d", i) {
			t.Fatalf("message %d out of order: %s", i, msg.Receiver)
		}
	}
}

func TestNilBusIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(Message{Sender: "a"})
	if got := bus.Query(Filter{}); got != nil {
		t.Fatalf("expected nil result from nil bus, got %v", got)
	}
	if got := bus.Len(); got != 0 {
		t.Fatalf("expected zero length for nil bus, got %d", got)
	}
}

func TestConcurrentPublishAndQuery(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				bus.Publish(Message{Sender: fmt.Sprintf("w-%d", w), Type: TypeHandoff})
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = bus.Query(Filter{Type: TypeHandoff})
			}
		}()
	}
	wg.Wait()

	if got := bus.Len(); got != DefaultRetention {
		t.Fatalf("expected bus trimmed to %d, got %d", DefaultRetention, got)
	}
}
