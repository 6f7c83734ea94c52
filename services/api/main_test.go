package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaabni/home-assistant/config"
	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/pubsub/dummy"
	"github.com/chaabni/home-assistant/remote"
	"github.com/chaabni/home-assistant/services"
)

func Example_interfaces() {
	var _ services.Service = (*Service)(nil)
	var _ services.ServiceInit = (*Service)(nil)
	var _ services.Versioned = (*Service)(nil)
	// Output:
}

func ExampleIndex() {
	rec := httptest.NewRecorder()
	r := http.Request{}
	apiIndex(rec, &r)
	fmt.Println(rec.Body)
	// Output:
	// <html>Home Assistant is listening</html>
}

func Example_root() {
	rec := httptest.NewRecorder()
	r := http.Request{}
	apiRoot(rec, &r)
	fmt.Print(rec.Body)
	// Output:
	// {"message":"API running."}
}

func Example_devicesControl() {
	services.Config = config.ExampleConfig
	me := dummy.Publisher{}
	services.Publisher = &me
	rec := httptest.NewRecorder()
	uri, _ := url.Parse("http://example.com/")
	r := http.Request{
		URL: uri,
	}
	apiDevicesControl(rec, &r)
	fmt.Println(rec.Body)
	// Output:
	// true
}

func TestStateMachine(t *testing.T) {
	services.Stor = services.NewMockStore()
	em := dummy.Publisher{}
	services.Publisher = &em

	sm := NewStateMachine()
	assert.Nil(t, sm.Get("light.kitchen"))

	created := sm.Set("light.kitchen", "on", nil)
	assert.True(t, created)
	require.NotNil(t, sm.Get("light.kitchen"))
	assert.Equal(t, "on", sm.Get("light.kitchen").State)

	// same state again is not a change
	created = sm.Set("light.kitchen", "on", nil)
	assert.False(t, created)
	require.Len(t, em.Events, 1)

	created = sm.Set("light.kitchen", "off", nil)
	assert.False(t, created)
	require.Len(t, em.Events, 2)
	assert.Equal(t, "on", em.Events[1].StringField("old_state"))

	assert.Len(t, sm.All(), 1)
}

func TestStateMachineRestore(t *testing.T) {
	services.Stor = services.NewMockStore()
	em := dummy.Publisher{}
	services.Publisher = &em

	sm := NewStateMachine()
	sm.Set("light.kitchen", "on", nil)

	// a fresh state machine restores from the store
	sm2 := NewStateMachine()
	sm2.Restore()
	require.NotNil(t, sm2.Get("light.kitchen"))
	assert.Equal(t, "on", sm2.Get("light.kitchen").State)
}

func testService() *Service {
	services.Stor = services.NewMockStore()
	services.Publisher = &dummy.Publisher{}
	return &Service{
		state:     NewStateMachine(),
		forwarder: NewEventForwarder(),
	}
}

func TestStatesEndpoint(t *testing.T) {
	service := testService()
	router := service.router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/states/light.kitchen", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := strings.NewReader(`{"state": "on", "attributes": {"brightness": 120}}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/states/light.kitchen", body))
	assert.Equal(t, http.StatusCreated, rec.Code)

	body = strings.NewReader(`{"state": "off"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/states/light.kitchen", body))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/states/light.kitchen", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var state EntityState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "off", state.State)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/states", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var states []EntityState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	assert.Len(t, states, 1)
}

func TestStatesEndpointBadBody(t *testing.T) {
	service := testService()
	router := service.router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/states/light.kitchen", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFireEventEndpoint(t *testing.T) {
	service := testService()
	em := dummy.Publisher{}
	services.Publisher = &em
	router := service.router()

	body := strings.NewReader(`{"entity_id": "light.kitchen"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/events/sunset", body))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, em.Events, 1)
	assert.Equal(t, "sunset", em.Events[0].Topic)
	assert.Equal(t, "light.kitchen", em.Events[0].StringField("entity_id"))
}

func TestServicesCallEndpoint(t *testing.T) {
	service := testService()
	em := dummy.Publisher{}
	services.Publisher = &em
	router := service.router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/services/thermostat/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, em.Events, 1)
	assert.Equal(t, "query", em.Events[0].Topic)
	assert.Equal(t, "thermostat/status", em.Events[0].StringField("query"))
}

func TestEventForwardEndpoint(t *testing.T) {
	service := testService()
	services.Subscriber = &dummy.Subscriber{}
	router := service.router()

	body := strings.NewReader(`{"host": "10.0.0.2", "port": 8123, "api_password": "secret"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/event_forward", body))
	assert.Equal(t, http.StatusOK, rec.Code)

	body = strings.NewReader(`{"host": "10.0.0.2", "port": 8123}`)
	req := httptest.NewRequest("DELETE", "/api/event_forward", body)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// no longer registered
	body = strings.NewReader(`{"host": "10.0.0.2", "port": 8123}`)
	req = httptest.NewRequest("DELETE", "/api/event_forward", body)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForwarderSkipsTimeEvents(t *testing.T) {
	time_changed := pubsub.NewEvent("time", pubsub.Fields{})
	sunset := pubsub.NewEvent("sunset", pubsub.Fields{})
	services.Subscriber = &dummy.Subscriber{
		Events: []*pubsub.Event{time_changed, sunset},
	}

	fired := make(chan string, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fired <- r.URL.Path
	}))
	defer server.Close()
	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())
	target := remote.NewAPI(u.Hostname(), "", port)

	f := NewEventForwarder()
	f.Connect(target)
	// dummy subscriber replays and closes, the time event is dropped
	select {
	case path := <-fired:
		assert.Equal(t, "/api/events/sunset", path)
	case <-time.After(time.Second):
		t.Fatal("no event forwarded")
	}
}

func TestAuthHandler(t *testing.T) {
	handler := authHandler{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		Password: "squirrel",
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/", nil)
	req.Header.Set(remote.AuthHeader, "squirrel")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// password in the query string also accepted
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/?api_password=squirrel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := CORSHandler{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		SupportsCredentials: true,
		AllowHeaders: func(headers []string) bool {
			for _, h := range headers {
				if h != "accept" {
					return false
				}
			}
			return true
		},
	}

	req := httptest.NewRequest("OPTIONS", "/api/", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Accept")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Access-Control-Request-Headers", "X-Evil")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
