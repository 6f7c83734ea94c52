// Package remote is a client for the http api, for use by processes
// interfacing with a remote node.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// APIStatus is the result of validating an API endpoint.
type APIStatus string

const (
	StatusOK              APIStatus = "ok"
	StatusInvalidPassword APIStatus = "invalid_password"
	StatusCannotConnect   APIStatus = "cannot_connect"
	StatusUnknown         APIStatus = "unknown"
)

const DefaultPort = 8123

// AuthHeader carries the api password on every request.
const AuthHeader = "X-HA-Access"

// API holds the location and credentials of a node's http api.
type API struct {
	Host     string
	Port     int
	Password string
	status   APIStatus
	client   *http.Client
}

// State of a single entity.
type State struct {
	EntityId    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	LastChanged string                 `json:"last_changed,omitempty"`
}

// ServiceDomain lists the services offered under one domain.
type ServiceDomain struct {
	Domain   string   `json:"domain"`
	Services []string `json:"services"`
}

func NewAPI(host string, password string, port int) *API {
	if port == 0 {
		port = DefaultPort
	}
	return &API{
		Host:     host,
		Port:     port,
		Password: password,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (api *API) baseUrl() string {
	return fmt.Sprintf("http://%s:%d", api.Host, api.Port)
}

func (api *API) call(method, path string, data interface{}) (*http.Response, error) {
	var body bytes.Buffer
	if data != nil {
		if err := json.NewEncoder(&body).Encode(data); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, api.baseUrl()+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(AuthHeader, api.Password)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := api.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to server")
	}
	return resp, nil
}

// Validate tests if we can communicate with the api. The result is cached
// unless force is set.
func (api *API) Validate(force bool) bool {
	if api.status == "" || force {
		api.status = api.validate()
	}
	return api.status == StatusOK
}

// Status returns the result of the last Validate.
func (api *API) Status() APIStatus {
	return api.status
}

func (api *API) validate() APIStatus {
	resp, err := api.call("GET", "/api/", nil)
	if err != nil {
		return StatusCannotConnect
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return StatusOK
	case http.StatusUnauthorized:
		return StatusInvalidPassword
	default:
		return StatusUnknown
	}
}

// States returns the state of every entity.
func (api *API) States() ([]State, error) {
	resp, err := api.call("GET", "/api/states", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var states []State
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return nil, errors.Wrap(err, "error fetching states")
	}
	return states, nil
}

// State returns the state of one entity, nil if the entity does not exist.
func (api *API) State(entityId string) (*State, error) {
	resp, err := api.call("GET", "/api/states/"+entityId, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// 422 if entity does not exist
		return nil, nil
	}
	var state State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, errors.Wrap(err, "error fetching state")
	}
	return &state, nil
}

// SetState updates the state of an entity, creating it if absent.
func (api *API) SetState(entityId string, state string, attributes map[string]interface{}) error {
	if attributes == nil {
		attributes = map[string]interface{}{}
	}
	data := map[string]interface{}{
		"state":      state,
		"attributes": attributes,
	}
	resp, err := api.call("POST", "/api/states/"+entityId, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 201 on create
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.Errorf("error changing state: %d", resp.StatusCode)
	}
	return nil
}

// IsState reports whether an entity is in the given state.
func (api *API) IsState(entityId string, state string) bool {
	cur, err := api.State(entityId)
	return err == nil && cur != nil && cur.State == state
}

// FireEvent fires an event on the remote bus.
func (api *API) FireEvent(eventType string, data map[string]interface{}) error {
	resp, err := api.call("POST", "/api/events/"+eventType, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("error firing event: %d", resp.StatusCode)
	}
	return nil
}

// Services lists the service domains the remote node offers.
func (api *API) Services() ([]ServiceDomain, error) {
	resp, err := api.call("GET", "/api/services", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var services []ServiceDomain
	if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
		return nil, errors.Wrap(err, "unexpected services result")
	}
	return services, nil
}

// CallService calls a service on the remote node.
func (api *API) CallService(domain string, service string, data map[string]interface{}) error {
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	resp, err := api.call("POST", path, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("error calling service: %d", resp.StatusCode)
	}
	return nil
}

// ConnectEvents sets up the remote node to forward its events to the target.
func (api *API) ConnectEvents(target *API) error {
	data := map[string]interface{}{
		"host":         target.Host,
		"port":         target.Port,
		"api_password": target.Password,
	}
	resp, err := api.call("POST", "/api/event_forward", data)
	if err != nil {
		return errors.Wrap(err, "error setting up event forwarding")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("error setting up event forwarding: %d", resp.StatusCode)
	}
	return nil
}

// DisconnectEvents removes the target from event forwarding.
func (api *API) DisconnectEvents(target *API) error {
	data := map[string]interface{}{
		"host": target.Host,
		"port": target.Port,
	}
	resp, err := api.call("DELETE", "/api/event_forward", data)
	if err != nil {
		return errors.Wrap(err, "error removing event forwarding")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("error removing event forwarding: %d", resp.StatusCode)
	}
	return nil
}
