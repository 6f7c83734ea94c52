package api

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

const statePrefix = "hass/state/entities"

// EntityState is the tracked state of one entity.
type EntityState struct {
	EntityId    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	LastChanged string                 `json:"last_changed,omitempty"`
}

// StateMachine tracks entity states, persisting them to the store and
// firing state_changed events on the bus.
type StateMachine struct {
	sync.Mutex
	states map[string]EntityState
}

func NewStateMachine() *StateMachine {
	return &StateMachine{states: map[string]EntityState{}}
}

// Restore loads persisted states from the store.
func (sm *StateMachine) Restore() {
	sm.Lock()
	defer sm.Unlock()
	nodes, err := services.Stor.GetRecursive(statePrefix)
	if err != nil {
		return
	}
	for _, node := range nodes {
		var state EntityState
		if err := json.Unmarshal([]byte(node.Value), &state); err != nil {
			continue
		}
		name := node.Key[strings.LastIndex(node.Key, "/")+1:]
		sm.states[name] = state
	}
}

// Get returns the state of an entity, nil if untracked.
func (sm *StateMachine) Get(entityId string) *EntityState {
	sm.Lock()
	defer sm.Unlock()
	if state, ok := sm.states[entityId]; ok {
		return &state
	}
	return nil
}

// All returns every tracked state.
func (sm *StateMachine) All() []EntityState {
	sm.Lock()
	defer sm.Unlock()
	ret := make([]EntityState, 0, len(sm.states))
	for _, state := range sm.states {
		ret = append(ret, state)
	}
	return ret
}

// Set updates an entity's state, returning true if the entity was created.
// A state_changed event is fired when the state changes.
func (sm *StateMachine) Set(entityId string, state string, attributes map[string]interface{}) bool {
	sm.Lock()
	old, existed := sm.states[entityId]
	next := EntityState{
		EntityId:    entityId,
		State:       state,
		Attributes:  attributes,
		LastChanged: time.Now().Format(pubsub.TimeFormat),
	}
	if existed && old.State == state {
		// retain last_changed when the state is unchanged
		next.LastChanged = old.LastChanged
	}
	sm.states[entityId] = next
	sm.Unlock()

	// persist
	if value, err := json.Marshal(next); err == nil {
		services.Stor.Set(statePrefix+"/"+entityId, string(value))
	}

	if !existed || old.State != state {
		fields := pubsub.Fields{
			"entity_id": entityId,
			"state":     state,
		}
		if existed {
			fields["old_state"] = old.State
		}
		ev := pubsub.NewEvent("state_changed", fields)
		services.Publisher.Emit(ev)
	}
	return !existed
}
