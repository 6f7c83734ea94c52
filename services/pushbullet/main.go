// Package pushbullet is a service to send alerts as pushbullet notes.
package pushbullet

import (
	"log"

	"github.com/mitsuse/pushbullet-go"
	"github.com/mitsuse/pushbullet-go/requests"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

var pb *pushbullet.Pushbullet

func sendMessage(ev *pubsub.Event) {
	if message, ok := ev.Fields["message"].(string); ok {
		log.Printf("Sending pushbullet note: %s", message)
		n := requests.NewNote()
		n.Title = "Home Assistant"
		n.Body = message

		if _, err := pb.PostPushesNote(n); err != nil {
			log.Printf("Pushbullet error: %s", err)
		}
	}
}

// Service pushbullet
type Service struct{}

func (self *Service) ID() string {
	return "pushbullet"
}

func (self *Service) Version() string {
	return "0.1.0"
}

func (self *Service) Run() error {
	if services.Config.Pushbullet.Token == "" {
		log.Fatalln("Please set:\npushbullet:\n  token: \"...\"")
	}
	pb = pushbullet.New(services.Config.Pushbullet.Token)

	events := services.Subscriber.Subscribe(pubsub.Prefix("alert"))
	for ev := range events {
		if ev.Target() == "pushbullet" {
			sendMessage(ev)
		}
	}
	return nil
}
