// Package automata is a service for state machine based automation of
// behaviour. A whole variety of complex behaviour can be achieved by linking
// together triggering events and actions.
//
// This is the glue that links the dumb input/output services together in
// smart ways.
//
// Some examples:
//
// - switch lights on when people get home
//
// - when the sun sets turn on lights
//
// - alert when mail arrives
//
// - a presence based smart burglar alarm (when the house is empty, turn on
// the burglar alarm)
//
// The automata are configured via yaml configuration format configured under:
//
// http://localhost:8123/config?path=hass/config/automata
//
// For more details on the configuration format, see:
//
// http://godoc.org/github.com/barnybug/gofsm
package automata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/barnybug/gofsm"

	"github.com/chaabni/home-assistant/config"
	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
	"github.com/chaabni/home-assistant/util"
)

var eventsLogPath = config.LogPath("events.log")

// current automata, also read by the State() expression function
var automata *gofsm.Automata

func openLogFile() *os.File {
	logfile, err := os.OpenFile(eventsLogPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		log.Println("Couldn't open events.log:", err)
		logfile, _ = os.Open(os.DevNull)
		return logfile
	}
	return logfile
}

// Service automata
type Service struct {
	timers map[string]*time.Timer
	log    *os.File
}

func (self *Service) ID() string {
	return "automata"
}

func (self *Service) Version() string {
	return "1.0.0"
}

type EventAction struct {
	service *Service
	event   *pubsub.Event
	change  gofsm.Change
}

func (self *Service) restore(target *gofsm.Automata) {
	p := gofsm.AutomataState{}
	for name := range target.Automaton {
		key := "hass/state/automata/" + name
		value, err := services.Stor.Get(key)
		var ps gofsm.AutomatonState
		if err == nil {
			err = json.Unmarshal([]byte(value), &ps)
		}
		if err != nil {
			log.Println("Restoring automata state from store failed:", err)
			continue
		}
		p[name] = ps
	}
	target.Restore(p)
}

func (self *Service) persist(automaton string) {
	state := automata.Persist()
	v := state[automaton]
	key := "hass/state/automata/" + automaton
	value, _ := json.Marshal(v)
	err := services.Stor.Set(key, string(value))
	if err != nil {
		log.Println("Persisting automata state to store failed:", err)
	}
}

func loadAutomata() (*gofsm.Automata, error) {
	data, err := services.Stor.Get("hass/config/automata")
	if err != nil {
		return nil, err
	}
	// the automata config is a template over the configured devices
	tmpl, err := template.New("Automata").Parse(data)
	if err != nil {
		return nil, err
	}
	context := map[string]interface{}{
		"devices": services.Config.Devices,
	}

	wr := new(bytes.Buffer)
	if err := tmpl.Execute(wr, context); err != nil {
		return nil, err
	}
	return gofsm.Load(wr.Bytes())
}

func (self *Service) QueryHandlers() services.QueryHandlers {
	return services.QueryHandlers{
		"status": services.TextHandler(self.queryStatus),
		"switch": services.TextHandler(self.querySwitch),
		"logs":   services.TextHandler(self.queryLogs),
		"help": services.StaticHandler("" +
			"status: get status\n" +
			"switch device on|off: switch device\n" +
			"logs: get recent event logs\n"),
	}
}

func (self *Service) queryStatus(q services.Question) string {
	var out string
	now := time.Now()
	var keys []string
	for k := range automata.Automaton {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	group := ""
	for _, k := range keys {
		if k == "events" {
			continue
		}
		if strings.Split(k, ".")[0] != group {
			group = strings.Split(k, ".")[0]
			out += group + "\n"
		}
		device := k
		if dev, ok := services.Config.Devices[k]; ok {
			device = dev.Name
		}
		aut := automata.Automaton[k]
		du := util.ShortDuration(now.Sub(aut.Since))
		out += fmt.Sprintf("- %s: %s for %s\n", device, aut.State.Name, du)
	}
	return out
}

func (self *Service) querySwitch(q services.Question) string {
	if q.Args == "" {
		// return a list of the devices
		devices := []string{}
		for dev := range services.Config.Devices {
			devices = append(devices, dev)
		}
		sort.Strings(devices)
		return strings.Join(devices, ", ")
	}
	args := strings.Split(q.Args, " ")
	name := args[0]
	command := "on"
	if len(args) > 1 && args[1] == "off" {
		command = "off"
	}
	matches := services.MatchDevices(name)
	if len(matches) == 0 {
		return fmt.Sprintf("device %s not found", name)
	}
	if len(matches) > 1 {
		return fmt.Sprintf("device %s is ambiguous", strings.Join(matches, ", "))
	}
	device := matches[0]
	ev := pubsub.NewCommand(device, command, 0)
	services.Publisher.Emit(ev)
	return fmt.Sprintf("Switched %s %s", device, command)
}

func tail(filename string, lines int64) ([]byte, error) {
	n := fmt.Sprintf("-n%d", lines)
	return exec.Command("tail", n, filename).Output()
}

func (self *Service) queryLogs(q services.Question) string {
	data, err := tail(eventsLogPath, 25)
	if err != nil {
		return fmt.Sprintf("Couldn't retrieve logs: %s", err)
	}
	return string(data)
}

func (self *Service) Run() error {
	self.log = openLogFile()
	self.timers = map[string]*time.Timer{}
	// load templated automata
	var err error
	automata, err = loadAutomata()
	if err != nil {
		return err
	}

	// persistence can take a while, so run in background
	chanPersist := make(chan string, 32)
	go func() {
		for automaton := range chanPersist {
			self.persist(automaton)
		}
	}()

	self.restore(automata)
	log.Printf("Initial states: %s", automata)

	ch := services.Subscriber.Subscribe(pubsub.All())
	for {
		select {
		case ev := <-ch:
			if ev.Topic == "config" {
				if ev.StringField("path") == "hass/config/automata" {
					// live reload the automata!
					log.Println("Automata config updated, reloading")
					updated, err := loadAutomata()
					if err != nil {
						log.Println("Failed to reload automata:", err)
						continue
					}
					self.restore(updated)
					automata = updated
					log.Println("Automata reloaded successfully")
				}
				continue
			}
			if ev.Topic == "alert" || ev.Topic == "state" || strings.HasPrefix(ev.Topic, "_") {
				continue
			}
			if ev.Command() == "" && ev.State() == "" {
				continue
			}

			// send relevant events to the automata
			automata.Process(NewEventWrapper(ev))

		case change := <-automata.Changes:
			trigger := change.Trigger.(EventWrapper)
			s := fmt.Sprintf("%-17s %s->%s", "["+change.Automaton+"]", change.Old, change.New)
			log.Printf("%-40s (event: %s)", s, trigger)
			chanPersist <- change.Automaton
			if !strings.Contains(change.Automaton, ".") {
				continue
			}
			// emit event
			ps := strings.Split(change.Automaton, ".")
			topic := ps[0]
			source := ps[1]
			fields := pubsub.Fields{
				"source":  source,
				"state":   change.New,
				"trigger": trigger.String(),
			}
			ev := pubsub.NewEvent(topic, fields)
			services.Publisher.Emit(ev)

		case action := <-automata.Actions:
			wrapper := action.Trigger.(EventWrapper)
			ea := EventAction{self, wrapper.event, action.Change}
			err := DynamicCall(ea, action.Name)
			if err != nil {
				log.Println("Error:", err)
			}
		}
	}
}

func (self *Service) appendLog(msg string) {
	fmt.Fprintln(self.log, msg)
}

func (self EventAction) substitute(msg string) string {
	device := services.Config.LookupDeviceName(self.event)
	name := services.Config.Devices[device].Name
	now := time.Now()
	vals := map[string]string{
		"name":      name,
		"duration":  util.FriendlyDuration(self.change.Duration),
		"timestamp": now.Format(time.Kitchen),
		"datetime":  now.Format(time.StampMilli),
	}

	return Substitute(msg, vals)
}

func (self EventAction) Log(msg string) {
	msg = self.substitute("$datetime: " + msg)
	self.service.appendLog(msg)
}

func (self EventAction) Pushbullet(msg string) {
	self.Alert(msg, "pushbullet")
}

func (self EventAction) Telegram(msg string) {
	self.Alert(msg, "telegram")
}

func (self EventAction) Alert(message string, target string) {
	message = self.substitute(message)
	log.Printf("%s: %s", strings.Title(target), message)
	services.SendAlert(message, target, "", 0)
}

func (self EventAction) Script(cmd string) {
	log.Println("Script:", cmd)
	// run exec non-blocking
	go func() {
		cmd = util.ExpandUser(cmd)
		_, err := exec.Command(cmd).Output()
		if err != nil {
			log.Printf("Exec %s: %s", cmd, err)
		}
	}()
}

func command(device string, state bool) {
	onoff := "off"
	if state {
		onoff = "on"
	}
	ev := pubsub.NewCommand(device, onoff, 0)
	services.Publisher.Emit(ev)
}

func (self EventAction) Switch(device string, state bool) {
	on := "off"
	if state {
		on = "on"
	}
	log.Printf("Switching %s %s", device, on)
	command(device, state)
}

func (self EventAction) StartTimer(name string, d int64) {
	duration := time.Duration(d) * time.Second
	if timer, ok := self.service.timers[name]; ok {
		// cancel any existing
		timer.Stop()
	}

	timer := time.AfterFunc(duration, func() {
		// emit timer event
		fields := pubsub.Fields{
			"source":  name,
			"command": "on",
		}
		ev := pubsub.NewEvent("timer", fields)
		services.Publisher.Emit(ev)
	})
	self.service.timers[name] = timer
}
