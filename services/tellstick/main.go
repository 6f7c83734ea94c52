// Package tellstick is a service to control Tellstick radio switches.
//
// Commands are sent through the telldus command line tool. Tellstick
// switches are transmit-only, so a switch is considered on when the last
// command sent to it was on.
package tellstick

import (
	"fmt"
	"log"
	"os/exec"
	"sort"
	"sync"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

// Service tellstick
type Service struct {
	sync.Mutex
	lastCommand map[string]string
}

// ID of the service
func (self *Service) ID() string {
	return "tellstick"
}

func (self *Service) Version() string {
	return "1.0.0"
}

func (self *Service) tool() string {
	if services.Config.Tellstick.Tool != "" {
		return services.Config.Tellstick.Tool
	}
	return "tdtool"
}

var runTool = func(tool string, command string, id string) error {
	output, err := exec.Command(tool, "--"+command, id).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err, output)
	}
	return nil
}

func (self *Service) handleCommand(ev *pubsub.Event) {
	protocol, id := services.Config.LookupDeviceProtocol(ev.Device())
	if protocol != "tellstick" {
		return // command not for us
	}
	command := ev.Command()
	if command != "on" && command != "off" {
		log.Println("Command not recognised:", command)
		return
	}

	log.Printf("Setting device %s to %s\n", ev.Device(), command)
	if err := runTool(self.tool(), command, id); err != nil {
		log.Println("Error sending command:", err)
		return
	}
	self.Lock()
	self.lastCommand[id] = command
	self.Unlock()

	fields := pubsub.Fields{
		"device":  ev.Device(),
		"source":  "tellstick." + id,
		"command": command,
	}
	ack := pubsub.NewEvent("ack", fields)
	services.Publisher.Emit(ack)
}

func (self *Service) queryStatus(q services.Question) string {
	self.Lock()
	defer self.Unlock()
	devices := services.Config.DevicesByProtocol("tellstick")
	ids := []string{}
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	msg := ""
	for _, id := range ids {
		state := self.lastCommand[id]
		if state == "" {
			// nothing sent yet, so unknown
			state = "unknown"
		}
		msg += fmt.Sprintf("%s: %s\n", devices[id].Id, state)
	}
	if msg == "" {
		return "no tellstick devices configured"
	}
	return msg
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(self.queryStatus),
		"help":   services.StaticHandler("status: get device states\n"),
	}
}

// Run the service
func (self *Service) Run() error {
	self.lastCommand = map[string]string{}
	for ev := range services.Subscriber.Subscribe(pubsub.Prefix("command")) {
		self.handleCommand(ev)
	}
	return nil
}
