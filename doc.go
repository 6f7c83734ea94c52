// The home-assistant home automation hub
//
// Features
//
// - Pluggable integrations, selected per node by a requirements-style manifest
//
// - Distributed message bus over MQTT (run integrations across machines)
//
// - Unified entity state store, queryable over a REST API
//
// - Remote instances: mirror states and forward events between hubs
//
// - Automation via configurable finite state machines
//
// - Sunrise / sunset triggered behaviour
//
// - Zoned, scheduled thermostat control
//
// - Presence detection (ping, passive sniffing, bluetooth)
//
// - Push notifications (pushbullet, telegram)
//
// Integrations supported
//
// - REST API
//
// - Philips Hue lights
//
// - Google Chromecast
//
// - Tellstick switches
//
// - Email and bus alerting watchdog
package homeassistant
