package api

import (
	"fmt"
	"log"
	"sync"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/remote"
	"github.com/chaabni/home-assistant/services"
)

// EventForwarder relays bus events to remote nodes registered over the api.
type EventForwarder struct {
	sync.Mutex
	// keyed host:port so the same node is never forwarded to twice
	targets map[string]*remote.API
	events  <-chan *pubsub.Event
}

func NewEventForwarder() *EventForwarder {
	return &EventForwarder{targets: map[string]*remote.API{}}
}

func targetKey(api *remote.API) string {
	return fmt.Sprintf("%s:%d", api.Host, api.Port)
}

// Connect adds a forwarding target, replacing any previous target at the
// same host and port.
func (f *EventForwarder) Connect(api *remote.API) {
	f.Lock()
	defer f.Unlock()
	if len(f.targets) == 0 {
		// first target, start listening for events
		f.events = services.Subscriber.Subscribe(pubsub.All())
		go f.listen(f.events)
	}
	f.targets[targetKey(api)] = api
}

// Disconnect removes a forwarding target. Returns false if it wasn't
// registered.
func (f *EventForwarder) Disconnect(api *remote.API) bool {
	f.Lock()
	defer f.Unlock()
	_, existed := f.targets[targetKey(api)]
	delete(f.targets, targetKey(api))
	if len(f.targets) == 0 && f.events != nil {
		services.Subscriber.Close(f.events)
		f.events = nil
	}
	return existed
}

func (f *EventForwarder) listen(events <-chan *pubsub.Event) {
	for ev := range events {
		// time events are never forwarded
		if ev.Topic == "time" {
			continue
		}
		f.Lock()
		targets := make([]*remote.API, 0, len(f.targets))
		for _, api := range f.targets {
			targets = append(targets, api)
		}
		f.Unlock()

		for _, api := range targets {
			if err := api.FireEvent(ev.Topic, ev.Map()); err != nil {
				log.Println("Error forwarding event:", err)
			}
		}
	}
}
