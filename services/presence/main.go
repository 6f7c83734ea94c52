// Package presence is a service to detect people being home, by passively
// sniffing for their devices on the network and bluetooth, falling back to
// actively pinging them.
package presence

import (
	"bufio"
	"io"
	"io/ioutil"
	"log"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tatsushid/go-fastping"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

const interval = 30 * time.Second

// Service presence
type Service struct {
}

func (self *Service) ID() string {
	return "presence"
}

func (self *Service) Version() string {
	return "1.0.0"
}

func emit(device string, state bool) {
	command := "off"
	if state {
		command = "on"
	}
	fields := pubsub.Fields{
		"device":  device,
		"command": command,
		"source":  "presence",
	}
	ev := pubsub.NewEvent("presence", fields)
	services.Publisher.Emit(ev)
}

type Watchdog struct {
	device   string
	checkers []Checker
}

type Checker interface {
	Start(alive chan bool)
	Ping()
}

type Sniffer struct {
	mac string
}

func NewSniffer(mac string) Checker {
	return &Sniffer{mac: mac}
}

func (s *Sniffer) run(alive chan bool) {
	cmd := exec.Command("sudo", "tcpdump", "-p", "-n", "-l", "ether", "host", s.mac)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Printf("Failed to start tcpdump: %s", err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Printf("Failed to start tcpdump: %s", err)
		return
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to start tcpdump: %s", err)
		return
	}
	log.Printf("Sniffing mac %s (passive)", s.mac)

	// discard stderr
	go io.Copy(ioutil.Discard, stderr)

	// any packet from the mac means the device is around
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		alive <- true
	}
	if err := scanner.Err(); err != nil {
		log.Printf("tcpdump failed: %s", err)
	}
}

func (s *Sniffer) Start(alive chan bool) {
	go s.run(alive)
}

func (s *Sniffer) Ping() {
	// noop
}

// Pinger actively icmp pings a host when poked.
type Pinger struct {
	host    string
	control *sync.Cond
}

func NewPinger(host string) Checker {
	return &Pinger{host: host, control: sync.NewCond(&sync.Mutex{})}
}

func (p *Pinger) run(alive chan bool) {
	addr, err := net.ResolveIPAddr("ip4", p.host)
	if err != nil {
		log.Printf("Failed to resolve host, not pinging: %s", err)
		return
	}

	for {
		// wait for Ping
		p.control.L.Lock()
		p.control.Wait()
		p.control.L.Unlock()

		pinger := fastping.NewPinger()
		pinger.AddIPAddr(addr)
		responded := false
		pinger.OnRecv = func(addr *net.IPAddr, rtt time.Duration) {
			responded = true
		}
		if err := pinger.Run(); err != nil {
			log.Printf("ping %s failed: %s", addr, err)
			continue
		}
		if responded {
			alive <- true
		}
	}
}

func (p *Pinger) Start(alive chan bool) {
	go p.run(alive)
}

func (p *Pinger) Ping() {
	p.control.Signal()
}

type Lescanner struct {
	mac string
}

func NewLescanner(mac string) Checker {
	return &Lescanner{mac: mac}
}

type Hcitool struct {
	l         sync.Locker
	listeners map[string]chan bool
}

// singleton
var hcitool *Hcitool
var hcitoolStarted sync.Once

func (h *Hcitool) Register(mac string, alive chan bool) {
	mac = strings.ToUpper(mac)
	h.l.Lock()
	h.listeners[mac] = alive
	h.l.Unlock()
}

func (h *Hcitool) launch() {
	cmd := exec.Command("sudo", "stdbuf", "-oL", "hcitool", "lescan", "--passive", "--duplicates")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Fatalf("Failed to start hcitool: %s", err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Fatalf("Failed to start hcitool: %s", err)
		return
	}
	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start hcitool: %s", err)
		return
	}

	// discard stderr
	go io.Copy(ioutil.Discard, stderr)
	go h.scan(stdout)
}

func (h *Hcitool) scan(stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	// drop first line
	scanner.Scan()
	for scanner.Scan() {
		line := scanner.Text()
		ps := strings.SplitN(line, " ", 2)
		mac := ps[0]
		h.l.Lock()
		ch, exists := h.listeners[mac]
		h.l.Unlock()
		if exists {
			log.Println("Bluetooth seen:", mac)
			ch <- true
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("hcitool failed: %s", err)
	}
}

func launchHcitool() {
	hcitool = &Hcitool{
		l:         &sync.Mutex{},
		listeners: map[string]chan bool{},
	}
	hcitool.launch()
}

func (s *Lescanner) run(alive chan bool) {
	hcitoolStarted.Do(launchHcitool)
	log.Printf("Scanning bluetooth %s (passive)", s.mac)
	hcitool.Register(s.mac, alive)
}

func (s *Lescanner) Start(alive chan bool) {
	go s.run(alive)
}

func (s *Lescanner) Ping() {
	// noop
}

func (w *Watchdog) watcher() {
	// start all
	alive := make(chan bool)
	for _, checker := range w.checkers {
		checker.Start(alive)
	}

	home := false
	responded := false
	active := false
	ticker := time.NewTicker(interval)
	for {
		select {
		case <-alive:
			responded = true
			active = false
			if !home {
				log.Printf("%s home", w.device)
				home = true
				emit(w.device, home)
			}
		case <-ticker.C:
			if !responded {
				// send active pings
				for _, checker := range w.checkers {
					checker.Ping()
				}
				if !active {
					active = true
				} else {
					// passive and active checkers exhausted
					if home {
						log.Printf("%s away", w.device)
						home = false
						emit(w.device, home)
					}
				}
			}
			responded = false
		}
	}
}

func newChecker(conf string) Checker {
	ps := strings.Split(conf, " ")
	if len(ps) != 2 {
		return nil
	}
	switch ps[0] {
	case "sniff":
		return NewSniffer(ps[1])
	case "ping":
		return NewPinger(ps[1])
	case "lescan":
		return NewLescanner(ps[1])
	}
	return nil
}

func (self *Service) Run() error {
	people := map[string]bool{}
	for device, checks := range services.Config.Presence {
		people[device] = true
		var checkers []Checker
		for _, conf := range checks {
			checker := newChecker(conf)
			if checker == nil {
				log.Printf("Error: misconfigured '%s'", conf)
				continue
			}
			checkers = append(checkers, checker)
		}
		watchdog := Watchdog{device, checkers}
		go watchdog.watcher()
	}

	ch := services.Subscriber.Subscribe(pubsub.Prefix("command"))
	for ev := range ch {
		// manual login/logout command
		if _, ok := people[ev.Device()]; ok {
			emit(ev.Device(), ev.Command() == "on")
		}
	}
	return nil
}
