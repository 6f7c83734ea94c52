package automata

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

// EventWrapper presents a bus event to the automata, with the conditions in
// transitions evaluated as expressions against the event fields.
type EventWrapper struct {
	event *pubsub.Event
}

func NewEventWrapper(ev *pubsub.Event) EventWrapper {
	return EventWrapper{ev}
}

func (self EventWrapper) String() string {
	device := services.Config.LookupDeviceName(self.event)
	s := device
	if self.event.Command() != "" {
		s += fmt.Sprintf(" command=%s", self.event.Command())
	} else if self.event.State() != "" {
		s += fmt.Sprintf(" state=%s", self.event.State())
	}
	return s
}

// Get resolves expression identifiers to event fields. device and type are
// derived from configuration, anything else falls back to the raw fields.
func (self EventWrapper) Get(name string) (interface{}, error) {
	switch name {
	case "device":
		return services.Config.LookupDeviceName(self.event), nil
	case "type":
		device := services.Config.LookupDeviceName(self.event)
		return strings.Split(device, ".")[0], nil
	case "topic":
		return self.event.Topic, nil
	}
	if value, ok := self.event.Fields[name]; ok {
		return value, nil
	}
	// missing fields evaluate to empty, so comparisons are just false
	return "", nil
}

var exprFunctions = map[string]govaluate.ExpressionFunction{
	"State": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("State takes one argument")
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("State takes a string argument")
		}
		if automata != nil {
			if aut, ok := automata.Automaton[name]; ok {
				return aut.State.Name, nil
			}
		}
		return "", nil
	},
}

// Match evaluates a transition condition against the event. Invalid
// expressions or non-boolean results never match.
func (self EventWrapper) Match(when string) bool {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(when, exprFunctions)
	if err != nil {
		return false
	}
	result, err := expr.Eval(self)
	if err != nil {
		return false
	}
	b, ok := result.(bool)
	return ok && b
}
