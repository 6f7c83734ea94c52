package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chaabni/home-assistant/config"
	"github.com/chaabni/home-assistant/manifest"
	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/pubsub/dummy"
)

type MockService struct {
	id            string
	version       string
	queryHandlers map[string]QueryHandler
}

// ID of the service
func (service *MockService) ID() string {
	return service.id
}

// Run the service
func (service *MockService) Run() error {
	return nil
}

func (service *MockService) Version() string {
	return service.version
}

func (service *MockService) QueryHandlers() QueryHandlers {
	return service.queryHandlers
}

func ExampleQuerySubscriber() {
	fields := pubsub.Fields{"query": "help"}
	query := pubsub.NewEvent("query", fields)
	li := dummy.Subscriber{
		Events: []*pubsub.Event{query},
	}
	Subscriber = &li
	em := dummy.Publisher{}
	Publisher = &em
	mock := MockService{
		id:            "abc",
		queryHandlers: map[string]QueryHandler{"help": StaticHandler("squiggle")},
	}
	enabled = []Service{&mock}
	QuerySubscriber()
	for i := 0; len(em.Events) == 0 && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}
	fmt.Println(len(em.Events))
	fmt.Println(em.Events[0].StringField("message"))
	// Output:
	// 1
	// squiggle
}

func TestResolve(t *testing.T) {
	serviceMap = map[string]Service{
		"abc": &MockService{id: "abc", version: "1.4"},
	}

	svcs, err := Resolve([]manifest.Requirement{{Name: "abc"}})
	assert.NoError(t, err)
	assert.Len(t, svcs, 1)

	svcs, err = Resolve([]manifest.Requirement{{Name: "abc", Constraint: ">=1.2,<2.0"}})
	assert.NoError(t, err)
	assert.Len(t, svcs, 1)

	_, err = Resolve([]manifest.Requirement{{Name: "abc", Constraint: ">=2.0"}})
	assert.Error(t, err)

	_, err = Resolve([]manifest.Requirement{{Name: "nonexistent"}})
	assert.Error(t, err)
}

func TestMatchDevices(t *testing.T) {
	Config = config.ExampleConfig
	assert.Equal(t, []string{"light.kitchen"}, MatchDevices("light.kitchen"))
	assert.Equal(t, []string{"light.kitchen"}, MatchDevices("kitchen"))
	assert.Equal(t, []string{}, MatchDevices("nonexistent"))
}
