package dummy

import "github.com/chaabni/home-assistant/pubsub"

// Publisher collects emitted events, for testing.
type Publisher struct {
	Events []*pubsub.Event
}

func (pub *Publisher) ID() string {
	return "dummy"
}

func (pub *Publisher) Emit(ev *pubsub.Event) {
	pub.Events = append(pub.Events, ev)
	if ev.Published != nil {
		ev.Published.Set()
	}
}

func (pub *Publisher) Close() {
}
