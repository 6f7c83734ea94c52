// Package hue is a service to control Philips Hue lights.
//
// Commands for devices with a hue. source are translated to bridge api
// calls, supporting on/off, dim levels and colour temperature.
package hue

import (
	"log"
	"strconv"
	"time"

	"github.com/amimof/huego"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

// Service hue
type Service struct {
	bridge *huego.Bridge
}

// ID of the service
func (self *Service) ID() string {
	return "hue"
}

func (self *Service) Version() string {
	return "1.1.0"
}

func (self *Service) connect() error {
	conf := services.Config.Hue
	if conf.Bridge != "" {
		self.bridge = huego.New(conf.Bridge, conf.Username)
	} else {
		bridge, err := huego.Discover()
		if err != nil {
			return err
		}
		self.bridge = bridge.Login(conf.Username)
		log.Println("Discovered bridge at", self.bridge.Host)
	}

	lights, err := self.bridge.GetLights()
	if err != nil {
		return err
	}
	log.Printf("Connected to bridge, %d lights found", len(lights))
	return nil
}

func (self *Service) handleCommand(ev *pubsub.Event) {
	protocol, id := services.Config.LookupDeviceProtocol(ev.Device())
	if protocol != "hue" {
		return // command not for us
	}
	num, err := strconv.Atoi(id)
	if err != nil {
		log.Println("Not a hue light number:", id)
		return
	}
	light, err := self.bridge.GetLight(num)
	if err != nil {
		log.Println("Light not found:", err)
		return
	}

	command := ev.Command()
	switch command {
	case "on":
		err = light.On()
	case "off":
		err = light.Off()
	default:
		log.Println("Command not recognised:", command)
		return
	}
	if err != nil {
		log.Println("Error sending command:", err)
		return
	}

	if command == "on" {
		if level, ok := ev.Fields["level"]; ok {
			// level given as a percentage
			pc, _ := level.(float64)
			bri := uint8(pc * 254 / 100)
			if err := light.Bri(bri); err != nil {
				log.Println("Error setting level:", err)
			}
		}
		if temp, ok := ev.Fields["temp"]; ok {
			// colour temperature in kelvin, hue uses mireds
			kelvin, _ := temp.(float64)
			if kelvin > 0 {
				ct := uint16(1000000 / kelvin)
				if err := light.Ct(ct); err != nil {
					log.Println("Error setting colour temperature:", err)
				}
			}
		}
	}

	log.Printf("Set device %s to %s\n", ev.Device(), command)
	fields := pubsub.Fields{
		"device":  ev.Device(),
		"source":  "hue." + id,
		"command": command,
	}
	ack := pubsub.NewEvent("ack", fields)
	services.Publisher.Emit(ack)
}

// Run the service
func (self *Service) Run() error {
	for {
		if err := self.connect(); err == nil {
			break
		} else {
			log.Println("Couldn't connect to bridge, retrying:", err)
			time.Sleep(time.Minute)
		}
	}

	for ev := range services.Subscriber.Subscribe(pubsub.Prefix("command")) {
		self.handleCommand(ev)
	}
	return nil
}
