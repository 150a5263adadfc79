package events

import "testing"

func TestEmitterDeliversInOrder(t *testing.T) {
	e := NewEmitter()
	var got []Type
	e.Subscribe(func(ev Event) { got = append(got, ev.Type) })

	e.Emit(Event{Type: SessionStart})
	e.Emit(Event{Type: AgentStart})
	e.Emit(Event{Type: SessionComplete})

	want := []Type{SessionStart, AgentStart, SessionComplete}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEmitterUnsubscribe(t *testing.T) {
	e := NewEmitter()
	calls := 0
	unsub := e.Subscribe(func(Event) { calls++ })

	e.Emit(Event{Type: SessionStart})
	unsub()
	e.Emit(Event{Type: SessionComplete})

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestEmitterMultipleSubscribers(t *testing.T) {
	e := NewEmitter()
	a, b := 0, 0
	e.Subscribe(func(Event) { a++ })
	e.Subscribe(func(Event) { b++ })

	e.Emit(Event{Type: AgentStatsUpdate})

	if a != 1 || b != 1 {
		t.Errorf("both subscribers should see the event, got a=%d b=%d", a, b)
	}
}
