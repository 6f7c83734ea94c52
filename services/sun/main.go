// Package sun is a service tracking sunrise and sunset, emitting events when
// they occur on a daily basis, along with a per-minute time event used by
// other services for scheduling.
//
// The order of events is:
// sunrise -> light -> dark -> sunset
//
// sunrise/sunset correspond to official times of the sun crossing the horizon.
//
// light/dark correspond to when the sun is 2° above the horizon, which
// corresponds to being fairly light. These events are a better trigger for
// internal house hold lights, because at sunrise/set it will likely still be
// rather dark inside!
package sun

import (
	"log"
	"time"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
	"github.com/chaabni/home-assistant/util"
)

func nextEvent(loc Location, now time.Time) (at time.Time, name string) {
	if sunrise := loc.Sunrise(now, ZenithOfficial); now.Before(sunrise) {
		at = sunrise
		name = "sunrise"
	} else if light := loc.Sunrise(now, ZenithLight); now.Before(light) {
		at = light
		name = "light"
	} else if dark := loc.Sunset(now, ZenithLight); now.Before(dark) {
		at = dark
		name = "dark"
	} else if sunset := loc.Sunset(now, ZenithOfficial); now.Before(sunset) {
		at = sunset
		name = "sunset"
	} else if sunrise := loc.Sunrise(now.Add(time.Hour*24), ZenithOfficial); now.Before(sunrise) {
		at = sunrise
		name = "sunrise"
	} else {
		log.Println("This shouldn't happen")
	}
	return
}

type TimeEvent struct {
	At    time.Time
	Event string
}

func eventChannel(loc Location) chan TimeEvent {
	ch := make(chan TimeEvent)
	go func() {
		for {
			at, event := nextEvent(loc, time.Now())
			delay := at.Sub(time.Now())
			log.Printf("Next: %s at %v (in %s)\n", event, at.Local(), delay)
			time.Sleep(delay)
			ch <- TimeEvent{at, event}
		}
	}()
	return ch
}

// Service sun
type Service struct{}

// ID of the service
func (self *Service) ID() string {
	return "sun"
}

func (self *Service) Version() string {
	return "1.0.0"
}

// Run the service
func (self *Service) Run() error {
	loc := Location{
		Latitude:  services.Config.Sun.Latitude,
		Longitude: services.Config.Sun.Longitude,
	}
	ticker := util.NewScheduler(time.Duration(0), time.Minute)
	sun := eventChannel(loc)
	for {
		select {
		case tev := <-sun:
			ev := pubsub.NewEvent("sun",
				pubsub.Fields{"device": "sun", "command": tev.Event, "source": "home"})
			services.Publisher.Emit(ev)
		case tick := <-ticker.C:
			ev := pubsub.NewEvent("time",
				pubsub.Fields{"device": "time", "hhmm": tick.Format("1504")})
			services.Publisher.Emit(ev)
		}
	}
}
