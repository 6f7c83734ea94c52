package pubsub

// A Topic matches event topics for subscription.
type Topic interface {
	Match(topic string) bool
}

type Publisher interface {
	ID() string
	Emit(ev *Event)
	Close()
}

type Subscriber interface {
	ID() string
	Subscribe(topics ...Topic) <-chan *Event
	Close(<-chan *Event)
}
