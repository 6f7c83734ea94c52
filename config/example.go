package config

import "strings"

var ExampleYaml = `
devices:
  light.kitchen:
    name: Kitchen
    group: downstairs
    caps: [light, dimmer]
    source: hue.1
    location: Kitchen
  light.porch:
    name: Porch
    group: outside
    caps: [light]
    source: hue.2
    aliases: [front light]
    location: Porch
  switch.fan:
    name: Fan
    group: upstairs
    caps: [switch]
    source: tellstick.2
  heater.boiler:
    name: Boiler
    group: heating
    caps: [switch]
    source: tellstick.3
  temp.hallway:
    name: Hallway temperature
    group: heating
  person.alice:
    name: Alice
    caps: [presence]
endpoints:
  mqtt:
    broker: tcp://127.0.0.1:1883
  api: http://127.0.0.1:8123
  store: 127.0.0.1:6379
api:
  port: 8123
  password: squirrel
general:
  email:
    admin: admin@example.com
    from: hass@example.com
    server: localhost:25
sun:
  latitude: 51.5072
  longitude: -0.1275
hue:
  bridge: 192.168.1.10
  username: hass
presence:
  person.alice:
    - ping alice-phone.lan
    - lescan 11:22:33:44:55:66
pushbullet:
  token: token123
telegram:
  token: token456
  chat_id: 10001
thermostat:
  device: heater.boiler
  slop: 0.3
  unoccupied: 9.0
  zones:
    hallway:
      sensor: temp.hallway
      schedule:
        Saturday,Sunday:
          - '10:20': 18.0
          - '22:50': 10.0
        Monday,Tuesday,Wednesday,Thursday,Friday:
          - '7:30': 18.0
          - '8:10': 14.0
          - '17:30': 18.0
          - '22:20': 10.0
watchdog:
  devices:
    temp.hallway: 4h
  heartbeats: [api, sun]
voice:
  'lights? on': switch kitchen on
  'lights? off': switch kitchen off
`

var ExampleConfig = Must(OpenReader(strings.NewReader(ExampleYaml)))
