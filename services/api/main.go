// Package api is a service providing the HTTP REST API to access the node
// and control devices.
//
// The endpoints supported are:
//
// http://localhost:8123/api/ - check the api is running
//
// http://localhost:8123/api/states - list entity states
//
// http://localhost:8123/api/states/{entity} - GET or POST the state of one entity
//
// http://localhost:8123/api/events/{event} - fire an event on the bus
//
// http://localhost:8123/api/services - list the services running
//
// http://localhost:8123/api/services/{domain}/{service} - POST a service call
//
// http://localhost:8123/api/event_forward - POST/DELETE event forwarding to another node
//
// http://localhost:8123/query/{query} - query a service, e.g. http://localhost:8123/query/thermostat/status
//
// http://localhost:8123/voice - perform a voice query command
//
// http://localhost:8123/devices - list of devices
//
// http://localhost:8123/devices/control?id=device&control=0 - turn a device on or off
//
// http://localhost:8123/events/feed - continuous live stream of events (line delimited)
//
// http://localhost:8123/config?path=hass/config - GET configuration or POST to update configuration
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/chaabni/home-assistant/config"
	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/remote"
	"github.com/chaabni/home-assistant/services"
	"github.com/chaabni/home-assistant/util"
)

// Service api
type Service struct {
	state     *StateMachine
	forwarder *EventForwarder
}

// ID of the service
func (service *Service) ID() string {
	return "api"
}

func (service *Service) Version() string {
	return "1.0.0"
}

func (service *Service) Init() error {
	services.WaitForConfig()
	services.SetupStore()
	service.state = NewStateMachine()
	service.state.Restore()
	service.forwarder = NewEventForwarder()
	return nil
}

func errorResponse(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), 500)
}

func jsonResponse(w http.ResponseWriter, obj interface{}) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	err := enc.Encode(obj)
	if err != nil {
		errorResponse(w, err)
	}
}

func messageResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func apiIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "text/html")
	fmt.Fprintf(w, "<html>Home Assistant is listening</html>")
}

func apiRoot(w http.ResponseWriter, r *http.Request) {
	messageResponse(w, http.StatusOK, "API running.")
}

func (service *Service) apiStates(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, service.state.All())
}

func (service *Service) apiStatesEntity(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	state := service.state.Get(params["entity"])
	if state == nil {
		// 422 if entity does not exist
		messageResponse(w, http.StatusUnprocessableEntity, "Entity not found")
		return
	}
	jsonResponse(w, state)
}

func (service *Service) apiStatesEntityPost(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	var body struct {
		State      string                 `json:"state"`
		Attributes map[string]interface{} `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.State == "" {
		messageResponse(w, http.StatusBadRequest, "state attribute required")
		return
	}
	created := service.state.Set(params["entity"], body.State, body.Attributes)
	if created {
		w.WriteHeader(http.StatusCreated)
	}
	jsonResponse(w, service.state.Get(params["entity"]))
}

func apiEventsEvent(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	fields := pubsub.Fields{}
	// body is an optional json object of event data
	data, err := ioutil.ReadAll(r.Body)
	if err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			messageResponse(w, http.StatusBadRequest, "event data should be a JSON object")
			return
		}
	}
	ev := pubsub.NewEvent(params["event"], fields)
	services.Publisher.Emit(ev)
	messageResponse(w, http.StatusOK, fmt.Sprintf("Event %s fired.", params["event"]))
}

func apiServices(w http.ResponseWriter, r *http.Request) {
	ret := []remote.ServiceDomain{}
	for _, service := range services.Enabled() {
		domain := remote.ServiceDomain{Domain: service.ID(), Services: []string{}}
		if qs, ok := service.(services.Queryable); ok {
			for verb := range qs.QueryHandlers() {
				domain.Services = append(domain.Services, verb)
			}
		}
		ret = append(ret, domain)
	}
	jsonResponse(w, ret)
}

func apiServicesCall(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	domain := params["domain"]
	name := params["service"]

	// body is an optional json object of service call data
	q := domain + "/" + name
	data, err := ioutil.ReadAll(r.Body)
	if err == nil && len(data) > 0 {
		fields := map[string]interface{}{}
		if err := json.Unmarshal(data, &fields); err != nil {
			messageResponse(w, http.StatusBadRequest, "service data should be a JSON object")
			return
		}
		for _, key := range util.SortedKeys(fields) {
			q += fmt.Sprintf(" %v", fields[key])
		}
	}

	services.SendQuery(q, "api", "", "")
	messageResponse(w, http.StatusOK, fmt.Sprintf("Service %s/%s called.", domain, name))
}

func (service *Service) apiEventForward(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Host     string  `json:"host"`
		Port     float64 `json:"port"`
		Password string  `json:"api_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Host == "" {
		messageResponse(w, http.StatusBadRequest, "host and port required")
		return
	}
	target := remote.NewAPI(body.Host, body.Password, int(body.Port))
	switch r.Method {
	case "POST":
		service.forwarder.Connect(target)
		messageResponse(w, http.StatusOK, "Event forwarding setup.")
	case "DELETE":
		if service.forwarder.Disconnect(target) {
			messageResponse(w, http.StatusOK, "Event forwarding cancelled.")
		} else {
			messageResponse(w, http.StatusBadRequest, "Not forwarding to specified target")
		}
	}
}

func query(endpoint string, q string, w http.ResponseWriter) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")

	ch := services.QueryChannel(endpoint+" "+q, 100*time.Millisecond)

	for ev := range ch {
		fmt.Fprintf(w, ev.String()+"\r\n")
		w.(http.Flusher).Flush()
	}
}

func apiQuery(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path[len("/query/"):]
	q := r.URL.Query().Get("q")
	query(endpoint, q, w)
}

func apiVoice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	body := ""
	for key, value := range services.Config.Voice {
		re, err := regexp.Compile(key)
		if err != nil {
			continue
		}
		var match = re.FindStringSubmatchIndex(q)
		if match != nil {
			// Expand $1 matches in the command
			var dst []byte
			result := re.ExpandString(dst, value, q, match)
			body = string(result)
		}
	}
	if body == "" {
		fmt.Fprintf(w, "Not understood: '%s'", q)
		return
	}

	resp, err := services.RPC(body)
	if err == nil {
		fmt.Fprint(w, resp)
	} else {
		w.WriteHeader(500)
		fmt.Fprintf(w, "error: %s", err)
	}
}

type deviceAndState struct {
	config.DeviceConf
	State interface{} `json:"state"`
}

func getDevicesState() map[string]interface{} {
	// Get state from store
	ret := make(map[string]interface{})
	nodes, _ := services.Stor.GetRecursive("hass/state/devices")
	for _, node := range nodes {
		ev := pubsub.Parse(node.Value, "")
		if ev == nil {
			continue
		}
		name := node.Key[strings.LastIndex(node.Key, "/")+1:]
		ret[name] = ev.Map()
	}
	return ret
}

func apiDevices(w http.ResponseWriter, r *http.Request) {
	ret := make(map[string]deviceAndState)
	state := getDevicesState()

	for name, dev := range services.Config.Devices {
		ret[name] = deviceAndState{dev, state[name]}
	}

	jsonResponse(w, ret)
}

func apiDevicesControl(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	device := q.Get("id")
	var command string
	if q.Get("control") == "1" {
		command = "on"
	} else {
		command = "off"
	}
	// send command
	ev := pubsub.NewCommand(device, command, 0)
	services.Publisher.Emit(ev)
	jsonResponse(w, true)
}

func apiEventsFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topics := q.Get("topics")
	w.Header().Add("Content-Type", "application/json; boundary=NL")

	var subs []pubsub.Topic
	if topics != "" {
		for _, topic := range strings.Split(topics, ",") {
			subs = append(subs, pubsub.Prefix(topic))
		}
	} else {
		subs = append(subs, pubsub.All())
	}
	ch := services.Subscriber.Subscribe(subs...)
	defer services.Subscriber.Close(ch)

	for ev := range ch {
		data := ev.Map()
		device := services.Config.LookupDeviceName(ev)
		if device != "" {
			data["device"] = device
		}
		encoder := json.NewEncoder(w)
		err := encoder.Encode(data)
		if err == nil {
			w.Write([]byte("\r\n")) // separator
		}
		if err != nil {
			break
		}
		w.(http.Flusher).Flush()
	}
}

func apiConfig(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		err := errors.New("path parameter required")
		errorResponse(w, err)
		return
	}

	// retrieve key from store
	value, err := services.Stor.Get(path)
	if err != nil {
		errorResponse(w, err)
		return
	}

	if r.Method == "GET" {
		w.Header().Add("Content-Type", "application/yaml; charset=utf-8")
		w.Write([]byte(value))
	} else if r.Method == "POST" {
		data, err := ioutil.ReadAll(r.Body)
		if err != nil {
			errorResponse(w, err)
			return
		}

		sout := string(data)
		if sout != value {
			// set store
			services.Stor.Set(path, sout)
			// emit event
			fields := pubsub.Fields{
				"path": path,
			}
			ev := pubsub.NewEvent("config", fields)
			services.Publisher.Emit(ev)
			log.Printf("%s changed, emitted config event", path)
		}
	}
}

func apiLogs(w http.ResponseWriter, r *http.Request) {
	logs := []string{}
	infos, err := ioutil.ReadDir(config.LogPath(""))
	if err != nil {
		errorResponse(w, err)
		return
	}

	for _, info := range infos {
		logs = append(logs, info.Name())
	}
	jsonResponse(w, logs)
}

func apiLogsLog(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	filename := config.LogPath(params["file"])
	file, err := os.Open(filename)
	if err != nil {
		errorResponse(w, err)
		return
	}
	defer file.Close()

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	io.Copy(w, file)
}

func (service *Service) router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/").HandlerFunc(apiIndex)
	router.Path("/api/").HandlerFunc(apiRoot)
	router.Path("/api/states").HandlerFunc(service.apiStates)
	router.Path("/api/states/{entity}").Methods("GET").HandlerFunc(service.apiStatesEntity)
	router.Path("/api/states/{entity}").Methods("POST").HandlerFunc(service.apiStatesEntityPost)
	router.Path("/api/events/{event}").Methods("POST").HandlerFunc(apiEventsEvent)
	router.Path("/api/services").HandlerFunc(apiServices)
	router.Path("/api/services/{domain}/{service}").Methods("POST").HandlerFunc(apiServicesCall)
	router.Path("/api/event_forward").Methods("POST", "DELETE").HandlerFunc(service.apiEventForward)
	router.PathPrefix("/query/").HandlerFunc(apiQuery)
	router.Path("/voice").HandlerFunc(apiVoice)
	router.Path("/devices").HandlerFunc(apiDevices)
	router.Path("/devices/control").HandlerFunc(apiDevicesControl)
	router.Path("/events/feed").HandlerFunc(apiEventsFeed)
	router.Path("/config").HandlerFunc(apiConfig)
	router.Path("/logs").HandlerFunc(apiLogs)
	router.Path("/logs/{file}").HandlerFunc(apiLogsLog)
	return router
}

type loggingHandler struct {
	Handler http.Handler
}

func (h loggingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Printf("%s %s\n", req.Method, req.RequestURI)
	h.Handler.ServeHTTP(w, req)
}

// authHandler checks the api password on every request.
type authHandler struct {
	Handler  http.Handler
	Password string
}

func (h authHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if h.Password != "" {
		given := req.Header.Get(remote.AuthHeader)
		if given == "" {
			given = req.URL.Query().Get("api_password")
		}
		if given != h.Password {
			messageResponse(w, http.StatusUnauthorized, "401: Unauthorized")
			return
		}
	}
	h.Handler.ServeHTTP(w, req)
}

func (service *Service) httpEndpoint() {
	var handler http.Handler = service.router()
	handler = authHandler{Handler: handler, Password: services.Config.Api.Password}
	handler = loggingHandler{Handler: handler}
	// Allow CORS (so the api can be used from web frontends)
	corsHandler := CORSHandler{Handler: handler}
	corsHandler.SupportsCredentials = true
	corsHandler.AllowHeaders = func(headers []string) bool {
		for _, header := range headers {
			switch header {
			case "accept", "authorization", "content-type", strings.ToLower(remote.AuthHeader):
			default:
				return false
			}
		}
		return true
	}
	http.Handle("/", corsHandler)
	port := services.Config.Api.Port
	if port == 0 {
		port = 8123
	}
	addr := fmt.Sprintf(":%d", port)
	log.Println("Listening on " + addr)
	err := http.ListenAndServe(addr, nil)
	if err != nil {
		log.Fatalln(err)
	}
}

func (service *Service) recordEvents() {
	for ev := range services.Subscriber.Subscribe(pubsub.All()) {
		// record to store
		device := services.Config.LookupDeviceName(ev)
		if device != "" {
			key := "hass/state/devices/" + device
			services.Stor.Set(key, ev.String())
			if state := ev.State(); state != "" {
				service.state.Set(device, state, nil)
			}
		}
	}
}

// Run the service
func (service *Service) Run() error {
	go service.recordEvents()
	service.httpEndpoint()
	return nil
}
