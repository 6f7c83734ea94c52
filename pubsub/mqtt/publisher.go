package mqtt

import (
	"github.com/chaabni/home-assistant/pubsub"
)

// Publisher for mqtt
type Publisher struct {
	broker *Broker
}

func (pub *Publisher) ID() string {
	return pub.broker.Id()
}

// Emit publishes an event, blocking until the broker acknowledges it.
func (pub *Publisher) Emit(ev *pubsub.Event) {
	topic := Namespace + "/" + ev.Topic
	token := pub.broker.client.Publish(topic, 1, ev.Retained, ev.Bytes())
	token.Wait()
	if ev.Published != nil {
		ev.Published.Set()
	}
}

func (pub *Publisher) Close() {
	pub.broker.client.Disconnect(250)
}
