// Package mqtt binds the event bus to an MQTT broker. All topics are placed
// under the hass/ namespace.
package mqtt

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/chaabni/home-assistant/pubsub"
)

// Namespace is the topic prefix all bus messages live under.
const Namespace = "hass"

type Broker struct {
	broker     string
	client     MQTT.Client
	subscriber *Subscriber
}

// NewBroker connects to the MQTT broker at url. name distinguishes multiple
// connections from one host in the client id.
func NewBroker(url string, name string) *Broker {
	self := &Broker{broker: url}
	self.subscriber = NewSubscriber(self)

	hostname, _ := os.Hostname()
	clientId := fmt.Sprintf("%s/%s-%s-%d-%d", Namespace, name, hostname, os.Getpid(), rand.Int31())
	opts := MQTT.NewClientOptions()
	opts.AddBroker(url)
	opts.SetClientID(clientId)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetDefaultPublishHandler(self.subscriber.publishHandler)
	opts.SetOnConnectHandler(self.subscriber.connectHandler)

	self.client = MQTT.NewClient(opts)
	if token := self.client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln("Couldn't connect to mqtt:", token.Error())
	}
	return self
}

func (self *Broker) Id() string {
	return "mqtt: " + self.broker
}

func (self *Broker) Subscriber() pubsub.Subscriber {
	return self.subscriber
}

func (self *Broker) Publisher() pubsub.Publisher {
	return &Publisher{broker: self}
}
