package services

import (
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chaabni/home-assistant/config"
	"github.com/chaabni/home-assistant/manifest"
	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/pubsub/mqtt"
)

// Service interface
type Service interface {
	ID() string
	Run() error
}

// ServiceInit interface for services needing initialization before Run
type ServiceInit interface {
	Service
	Init() error
}

// Versioned is implemented by services declaring a version, checked against
// manifest constraints at launch.
type Versioned interface {
	Version() string
}

type Flags interface {
	Flags()
}

var serviceMap = map[string]Service{}
var enabled []Service
var Config *config.Config

var Publisher pubsub.Publisher
var Subscriber pubsub.Subscriber
var Stor Store

type ConfigWaiter struct {
	Value   []byte
	hash    uint32
	events  <-chan *pubsub.Event
	update  func()
	Updated chan bool
}

func NewConfigWaiter(topic pubsub.Topic) *ConfigWaiter {
	return &ConfigWaiter{
		events:  Subscriber.Subscribe(topic),
		Updated: make(chan bool),
	}
}

func (c *ConfigWaiter) Wait() {
	if c.loopOne() {
		if c.update != nil {
			c.update()
		}
		c.notify()
	}
}

func (c *ConfigWaiter) notify() {
	// non-blocking send
	select {
	case c.Updated <- true:
	default:
	}
}

func (c *ConfigWaiter) loopOne() bool {
	ev := <-c.events
	value := []byte(ev.StringField("config"))
	hashValue := hash(value)
	if c.hash == hashValue {
		// ignore duplicate events - from services subscribing to hass/#.
		return false
	}
	c.hash = hashValue
	c.Value = value
	return true
}

type ConfigService struct {
	ConfigWaiter
	Value *config.Config
}

func NewConfigService() *ConfigService {
	cs := &ConfigService{
		ConfigWaiter{
			events:  Subscriber.Subscribe(pubsub.Exact("config")),
			Updated: make(chan bool),
		},
		nil,
	}
	cs.update = func() {
		if len(cs.ConfigWaiter.Value) == 0 {
			// config events announcing store paths carry no payload
			return
		}
		// (re)load config
		conf, err := config.OpenRaw(cs.ConfigWaiter.Value)
		if err != nil {
			log.Println("Error reading config:", err)
			return
		}
		cs.Value = conf
		Config = conf // set global
	}
	return cs
}

func SetupLogging() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.SetOutput(os.Stdout)
}

func hash(s []byte) uint32 {
	h := fnv.New32a()
	h.Write(s)
	return h.Sum32()
}

var globalConfigService *ConfigService

func WaitForConfig() *ConfigService {
	if globalConfigService == nil {
		globalConfigService = NewConfigService()
		// await first config
		globalConfigService.Wait()
		// listen for updates
		go globalConfigService.Watch()
	}
	return globalConfigService
}

func (c *ConfigService) Watch() {
	for {
		c.Wait()
	}
}

func SetupFlags() {
	for _, service := range enabled {
		// any service specific flags
		if f, ok := service.(Flags); ok {
			f.Flags()
		}
	}
	flag.Parse()
}

func SetupBroker(name string) {
	url := os.Getenv("HASS_MQTT")
	if url == "" {
		log.Fatalln("Set HASS_MQTT to the mqtt server. eg: tcp://127.0.0.1:1883")
	}

	broker := mqtt.NewBroker(url, name)
	Publisher = broker.Publisher()
	if Publisher == nil {
		log.Fatalln("Failed to initialise pub endpoint")
	}
	Subscriber = broker.Subscriber()
	if Subscriber == nil {
		log.Fatalln("Failed to initialise sub endpoint")
	}
}

func SetupStore() {
	address := os.Getenv("HASS_STORE")
	if address == "" {
		address = "127.0.0.1:6379"
	}
	store, err := NewRedisStore(address)
	if err != nil {
		log.Fatalln("Couldn't connect to store:", err)
	}
	Stor = store
}

func Setup(name string) {
	SetupBroker(name)
}

// Resolve looks requirements up in the registry and checks version
// constraints against each service's declared version.
func Resolve(reqs []manifest.Requirement) ([]Service, error) {
	var ret []Service
	for _, req := range reqs {
		service, ok := serviceMap[req.Name]
		if !ok {
			return nil, fmt.Errorf("service %s does not exist", req.Name)
		}
		if v, ok := service.(Versioned); ok {
			if err := req.Check(v.Version()); err != nil {
				return nil, err
			}
		} else if req.Constraint != "" {
			return nil, fmt.Errorf("requirement %s: service is unversioned", req.Name)
		}
		ret = append(ret, service)
	}
	return ret, nil
}

// Launch runs the given services, initializing each then running all.
func Launch(reqs []manifest.Requirement) {
	var err error
	enabled, err = Resolve(reqs)
	if err != nil {
		log.Fatalln(err)
	}

	SetupFlags()

	// listen for queries
	go QuerySubscriber()

	for _, service := range enabled {
		log.Printf("Starting %s\n", service.ID())
		if service, ok := service.(ServiceInit); ok {
			err := service.Init()
			if err != nil {
				log.Fatalf("Error init service %s: %s", service.ID(), err.Error())
			}
			log.Printf("Initialized %s\n", service.ID())
		} else {
			// services without Init
			WaitForConfig()
		}
	}

	for _, service := range enabled {
		// run heartbeater
		go Heartbeat(service.ID())
		err := service.Run()
		if err != nil {
			log.Fatalf("Error running service %s: %s", service.ID(), err.Error())
		}
	}
}

// LaunchManifest runs the services a manifest names.
func LaunchManifest(m *manifest.Manifest) {
	Launch(m.Requirements)
}

func Heartbeat(id string) {
	started := time.Now()
	device := fmt.Sprintf("heartbeat.%s", id)
	fields := pubsub.Fields{
		"device":  device,
		"pid":     os.Getpid(),
		"started": started.Format(time.RFC3339),
	}

	// wait 5 seconds before heartbeating - if the process dies very soon
	time.Sleep(time.Second * 5)

	for {
		uptime := int(time.Now().Sub(started).Seconds())
		fields["uptime"] = uptime
		ev := pubsub.NewEvent("heartbeat", fields)
		ev.SetRetained(true)
		Publisher.Emit(ev)
		ev.Published.Wait() // block on actually publishing
		time.Sleep(time.Second * 60)
	}
}

// Enabled returns the services launched on this node.
func Enabled() []Service {
	return enabled
}

func Register(service Service) {
	if _, exists := serviceMap[service.ID()]; exists {
		log.Fatalf("Duplicate service registered: %s", service.ID())
	}
	serviceMap[service.ID()] = service
}

// MatchDevices returns switchable devices matching a name substring.
func MatchDevices(n string) []string {
	if _, ok := Config.Devices[n]; ok {
		return []string{n}
	}

	matches := []string{}
	for name, dev := range Config.Devices {
		if strings.Contains(name, n) && dev.IsSwitchable() {
			matches = append(matches, name)
		}
	}
	return matches
}

func Shutdown() {
	if Publisher != nil {
		Publisher.Close()
	}
}
