package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/chaabni/home-assistant/manifest"
	"github.com/chaabni/home-assistant/services"
	"github.com/chaabni/home-assistant/services/api"
	"github.com/chaabni/home-assistant/services/automata"
	"github.com/chaabni/home-assistant/services/cast"
	"github.com/chaabni/home-assistant/services/hue"
	"github.com/chaabni/home-assistant/services/presence"
	"github.com/chaabni/home-assistant/services/pushbullet"
	"github.com/chaabni/home-assistant/services/sun"
	"github.com/chaabni/home-assistant/services/telegram"
	"github.com/chaabni/home-assistant/services/tellstick"
	"github.com/chaabni/home-assistant/services/thermostat"
	"github.com/chaabni/home-assistant/services/watchdog"
)

func registerServices() {
	// register available integrations
	services.Register(&api.Service{})
	services.Register(&automata.Service{})
	services.Register(&cast.Service{})
	services.Register(&hue.Service{})
	services.Register(&presence.Service{})
	services.Register(&pushbullet.Service{})
	services.Register(&sun.Service{})
	services.Register(&telegram.Service{})
	services.Register(&tellstick.Service{})
	services.Register(&thermostat.Service{})
	services.Register(&watchdog.Service{})
}

func usage() {
	fmt.Println("Usage: hass COMMAND [MANIFEST/INTEGRATION]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("   config  path filename      Update config")
	fmt.Println("   logs                       Tail logs")
	fmt.Println("   run     manifest|names...  Run integrations")
	fmt.Println("   status  [integration]      Get integration status")
	fmt.Println("   switch  device on|off      Switch a device")
	fmt.Println("   query   ...                Query integrations")
	fmt.Println()
}

var emptyParams = url.Values{}

func main() {
	log.SetOutput(os.Stdout)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	ps := []string{}
	if flag.NArg() > 1 {
		ps = flag.Args()[1:]
	}
	// ignore anything after '--'
	for i := range ps {
		if ps[i] == "--" {
			ps = ps[0:i]
			break
		}
	}

	services.SetupLogging()

	command := flag.Args()[0]
	switch command {
	default:
		usage()
	case "config":
		if len(ps) < 2 {
			usage()
			return
		}
		config(ps[0], ps[1:])
	case "status":
		if len(ps) == 0 {
			// all integrations
			query("status", []string{}, emptyParams)
		} else {
			// single integration
			query(ps[0]+"/status", []string{}, url.Values{"responses": {"1"}})
		}
	case "run":
		run(ps)
	case "switch":
		commandSwitch(ps)
	case "query":
		if len(ps) == 0 {
			usage()
			return
		}
		query(ps[0], ps[1:], url.Values{"timeout": {"5000"}, "responses": {"1"}})
	case "logs":
		stream("logs", emptyParams)
	}
}

func commandSwitch(ps []string) {
	if len(ps) < 2 {
		usage()
		return
	}

	params := url.Values{
		"id":      []string{ps[0]},
		"command": []string{ps[1]},
	}
	for _, arg := range ps[2:] {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) > 1 {
			params[kv[0]] = kv[1:2]
		}
	}
	resp, err := request("devices/control", params)
	if err != nil {
		fmtFatalf("error: %s\n", err)
	}
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
}

// requirements resolves the run arguments to a set of requirements. A single
// argument naming a file is read as a manifest, otherwise the arguments are
// bare integration names.
func requirements(ps []string) []manifest.Requirement {
	if len(ps) == 1 {
		if _, err := os.Stat(ps[0]); err == nil {
			m, err := manifest.Open(ps[0])
			if err != nil {
				log.Fatalln("Couldn't read manifest:", err)
			}
			return m.Requirements
		}
	}
	reqs := make([]manifest.Requirement, len(ps))
	for i, name := range ps {
		reqs[i] = manifest.Requirement{Name: name}
	}
	return reqs
}

// Start builtin integrations
func run(ps []string) {
	if len(ps) == 0 {
		usage()
		return
	}
	services.Setup("hass")
	registerServices()
	services.Launch(requirements(ps))
}
