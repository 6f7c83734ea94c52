package config

import (
	"io"
	"io/ioutil"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/chaabni/home-assistant/pubsub"
)

type DeviceConf struct {
	Id       string   `yaml:"-" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Type     string   `yaml:"type" json:"type"`
	Group    string   `yaml:"group" json:"group"`
	Location string   `yaml:"location" json:"location"`
	Source   string   `yaml:"source" json:"source"`
	Aliases  []string `yaml:"aliases" json:"aliases"`
	Caps     []string `yaml:"caps" json:"caps"`
	Cap      map[string]bool `yaml:"-" json:"-"`
}

// IsSwitchable reports whether the device accepts on/off commands.
func (d DeviceConf) IsSwitchable() bool {
	return d.Cap["switch"] || d.Cap["light"]
}

type EndpointsConf struct {
	Mqtt struct {
		Broker string `yaml:"broker"`
	} `yaml:"mqtt"`
	Api   string `yaml:"api"`
	Store string `yaml:"store"`
}

type ApiConf struct {
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type GeneralEmailConf struct {
	Admin  string `yaml:"admin"`
	From   string `yaml:"from"`
	Server string `yaml:"server"`
}

type GeneralConf struct {
	Email GeneralEmailConf `yaml:"email"`
}

type SunConf struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type HueConf struct {
	Bridge   string `yaml:"bridge"`
	Username string `yaml:"username"`
}

type TellstickConf struct {
	Tool string `yaml:"tool"`
}

type PushbulletConf struct {
	Token string `yaml:"token"`
}

type TelegramConf struct {
	Token  string `yaml:"token"`
	ChatId int64  `yaml:"chat_id"`
}

type ScheduleConf map[string][]map[string]float64

type ZoneConf struct {
	Sensor   string       `yaml:"sensor"`
	Schedule ScheduleConf `yaml:"schedule"`
}

type ThermostatConf struct {
	Device     string              `yaml:"device"`
	Slop       float64             `yaml:"slop"`
	Unoccupied float64             `yaml:"unoccupied"`
	Zones      map[string]ZoneConf `yaml:"zones"`
}

type WatchdogConf struct {
	Devices    map[string]string `yaml:"devices"`
	Heartbeats []string          `yaml:"heartbeats"`
}

type VoiceConf map[string]string

// Configuration structure
type Config struct {
	Devices    map[string]DeviceConf `yaml:"devices"`
	Endpoints  EndpointsConf         `yaml:"endpoints"`
	Api        ApiConf               `yaml:"api"`
	General    GeneralConf           `yaml:"general"`
	Sun        SunConf               `yaml:"sun"`
	Hue        HueConf               `yaml:"hue"`
	Tellstick  TellstickConf         `yaml:"tellstick"`
	Presence   map[string][]string   `yaml:"presence"`
	Pushbullet PushbulletConf        `yaml:"pushbullet"`
	Telegram   TelegramConf          `yaml:"telegram"`
	Thermostat ThermostatConf        `yaml:"thermostat"`
	Watchdog   WatchdogConf          `yaml:"watchdog"`
	Voice      VoiceConf             `yaml:"voice"`

	sources map[string]string
}

// Open configuration from disk.
func Open() (*Config, error) {
	file, err := os.Open(ConfigPath("hass.yml"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return OpenReader(file)
}

// OpenReader reads configuration from a reader.
func OpenReader(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return OpenRaw(data)
}

// OpenRaw reads configuration from []byte.
func OpenRaw(data []byte) (*Config, error) {
	self := &Config{}
	err := yaml.Unmarshal(data, self)
	if err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	self.sources = map[string]string{}
	for id, device := range self.Devices {
		device.Id = id
		if len(device.Caps) == 0 {
			major := strings.Split(id, ".")[0]
			device.Caps = []string{major}
		}
		device.Type = device.Caps[0]
		device.Cap = map[string]bool{}
		for _, c := range device.Caps {
			device.Cap[c] = true
		}
		self.Devices[id] = device
		if device.Source != "" {
			self.sources[device.Source] = id
		}
	}

	return self, nil
}

// Must panics if opening config returned an error. For tests and examples.
func Must(config *Config, err error) *Config {
	if err != nil {
		panic(err)
	}
	return config
}

// LookupDeviceName resolves the device id an event belongs to. Events either
// carry a device field directly, or a source (protocol.id) configured against
// a device. Unconfigured sources map to themselves.
func (self *Config) LookupDeviceName(ev *pubsub.Event) string {
	if device := ev.Device(); device != "" {
		return device
	}
	source := ev.Source()
	if device, ok := self.sources[source]; ok {
		return device
	}
	return source
}

// LookupDeviceProtocol returns the protocol and identifier for a device name.
func (self *Config) LookupDeviceProtocol(name string) (string, string) {
	device, ok := self.Devices[name]
	if !ok || device.Source == "" {
		return "", ""
	}
	ps := strings.SplitN(device.Source, ".", 2)
	if len(ps) != 2 {
		return ps[0], ""
	}
	return ps[0], ps[1]
}

// DevicesByProtocol returns the devices driven by the given protocol, keyed
// by protocol identifier.
func (self *Config) DevicesByProtocol(protocol string) map[string]DeviceConf {
	ret := map[string]DeviceConf{}
	for _, device := range self.Devices {
		ps := strings.SplitN(device.Source, ".", 2)
		if len(ps) == 2 && ps[0] == protocol {
			ret[ps[1]] = device
		}
	}
	return ret
}

// ConfigPath resolves a configuration file under .config/hass
func ConfigPath(p string) string {
	config := os.Getenv("XDG_CONFIG_HOME")
	if config == "" {
		config = path.Join(os.Getenv("HOME"), ".config")
	}
	return path.Join(config, "hass", p)
}

// LogPath returns the path to a log file.
func LogPath(p string) string {
	return ConfigPath(path.Join("log", p))
}
