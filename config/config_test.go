package config

import (
	"fmt"

	"github.com/chaabni/home-assistant/pubsub"
)

var yml = `
general:
  email:
    admin:
      test@example.com
devices:
  device.one:
    source: x10.a01
`

func ExampleOpenRaw() {
	config, _ := OpenRaw([]byte(yml))
	fmt.Println(config.General.Email.Admin)
	// Output:
	// test@example.com
}

func Example_openRawBad() {
	_, err := OpenRaw([]byte("devices: [not: a: map"))
	fmt.Println(err != nil)
	// Output:
	// true
}

func Example_lookupDeviceName() {
	config, _ := OpenRaw([]byte(yml))
	fields := pubsub.Fields{"source": "x10.a01"}
	ev := pubsub.NewEvent("x10", fields)
	fmt.Println(config.LookupDeviceName(ev))
	// Output:
	// device.one
}

func Example_lookupDeviceNameMissing() {
	config, _ := OpenRaw([]byte(yml))
	fields := pubsub.Fields{"source": "x10.a02"}
	ev := pubsub.NewEvent("x10", fields)
	fmt.Println(config.LookupDeviceName(ev))
	// Output:
	// x10.a02
}

func Example_lookupDeviceProtocol() {
	protocol, id := ExampleConfig.LookupDeviceProtocol("light.kitchen")
	fmt.Println(protocol, id)
	// Output:
	// hue 1
}

func Example_devicesByProtocol() {
	devices := ExampleConfig.DevicesByProtocol("tellstick")
	fmt.Println(devices["2"].Id, devices["3"].Id)
	// Output:
	// switch.fan heater.boiler
}

func Example_defaultCaps() {
	config, _ := OpenRaw([]byte(yml))
	device := config.Devices["device.one"]
	fmt.Println(device.Type, device.Caps)
	// Output:
	// device [device]
}
