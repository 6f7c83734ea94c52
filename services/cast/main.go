// Package cast is a service to integrate Google Chromecast devices.
//
// Casting apps starting and stopping is translated to bus events, so for
// example an automation can switch on the hifi when a chromecast starts
// playing. An off command sent to a cast device quits the running app.
package cast

import (
	"log"
	"sync"
	"time"

	"golang.org/x/net/context"

	"github.com/barnybug/go-cast"
	"github.com/barnybug/go-cast/discovery"
	"github.com/barnybug/go-cast/events"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

// Service cast
type Service struct {
	sync.Mutex
	clients map[string]*cast.Client
}

// ID of the service
func (service *Service) ID() string {
	return "cast"
}

func (service *Service) Version() string {
	return "1.0.0"
}

func (service *Service) listener(ctx context.Context, client *cast.Client) {
LOOP:
	for {
		event := <-client.Events
		switch data := event.(type) {
		case events.Connected:
			log.Printf("%s: connected", client.Name())
		case events.Disconnected:
			log.Printf("%s: disconnected, reconnecting...", client.Name())
			client.Close()
			service.Lock()
			delete(service.clients, client.Name())
			service.Unlock()
			// Try to reconnect again
			err := client.Connect(ctx)
			if err != nil {
				log.Printf("Failed to reconnect to %s, removing: %s", client.Name(), err)
				break LOOP
			}
		case events.AppStarted:
			log.Printf("%s: app started: %s (%s)", client.Name(), data.DisplayName, data.AppID)
			fields := pubsub.Fields{
				"command": "on",
				"source":  "cast." + client.Name(),
				"app":     data.DisplayName,
			}
			ev := pubsub.NewEvent("cast", fields)
			services.Publisher.Emit(ev)
		case events.AppStopped:
			log.Printf("%s: app stopped: %s (%s)", client.Name(), data.DisplayName, data.AppID)
			fields := pubsub.Fields{
				"command": "off",
				"source":  "cast." + client.Name(),
			}
			ev := pubsub.NewEvent("cast", fields)
			services.Publisher.Emit(ev)
		default:
			// ignored
		}
	}
}

func (service *Service) discovering(discover *discovery.Service) {
	ctx := context.Background()
	for client := range discover.Found() {
		service.Lock()
		_, existing := service.clients[client.Name()]
		service.Unlock()
		if existing {
			continue
		}
		log.Printf("New client discovered: %s\n", client)

		err := client.Connect(ctx)
		if err != nil {
			log.Printf("Failed to connect to %s: %s", client.Name(), err)
			continue
		}
		service.Lock()
		service.clients[client.Name()] = client
		service.Unlock()
		go service.listener(ctx, client)
	}
}

func (service *Service) handleCommand(ev *pubsub.Event) {
	protocol, id := services.Config.LookupDeviceProtocol(ev.Device())
	if protocol != "cast" {
		return // command not for us
	}
	service.Lock()
	client := service.clients[id]
	service.Unlock()
	if client == nil {
		log.Println("Cast device not connected:", id)
		return
	}
	if ev.Command() == "off" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := client.Receiver().QuitApp(ctx); err != nil {
			log.Println("Error quitting app:", err)
		}
	}
}

func (service *Service) commands() {
	for ev := range services.Subscriber.Subscribe(pubsub.Prefix("command")) {
		service.handleCommand(ev)
	}
}

// Run the service
func (service *Service) Run() error {
	service.clients = map[string]*cast.Client{}
	ctx := context.Background()
	discover := discovery.NewService(ctx)

	go service.discovering(discover)
	go service.commands()

	discover.Run(ctx, time.Second*300)
	return nil
}
