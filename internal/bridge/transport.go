package bridge

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Transport is the bridge's contract with the backhaul (spec.md §4.10:
// "Contract with the transport: publish(bytes, len) best-effort, and a
// callback on_incoming(bytes, len)"). MQTTTransport is the production
// implementation; tests substitute a fake.
type Transport interface {
	Connect() error
	Publish(payload []byte) error
	Disconnect()
}

// MQTTTransport implements Transport over eclipse/paho.mqtt.golang
// (spec.md §1: "The bridge transport is abstracted to its contract...
// which backbone is used is not part of the core" — MQTT is the
// concrete choice this deployment makes).
type MQTTTransport struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTTransport builds an MQTTTransport. onIncoming is wired as the
// subscription's message handler; per spec.md §5 it must do nothing but
// hand the payload to the bridge's incoming path (the bridge itself
// decides what, if anything, requires deferring to the main thread).
func NewMQTTTransport(server, clientID, user, pass, topic string, onIncoming func(payload []byte)) *MQTTTransport {
	opts := mqtt.NewClientOptions().
		AddBroker(server).
		SetClientID(clientID).
		SetUsername(user).
		SetPassword(pass).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(c mqtt.Client) {
			c.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
				onIncoming(msg.Payload())
			})
		})

	return &MQTTTransport{client: mqtt.NewClient(opts), topic: topic, qos: 1}
}

// Connect implements Transport.
func (t *MQTTTransport) Connect() error {
	token := t.client.Connect()
	token.Wait()
	return token.Error()
}

// Publish implements Transport.
func (t *MQTTTransport) Publish(payload []byte) error {
	token := t.client.Publish(t.topic, t.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("bridge: publish: %w", err)
	}
	return nil
}

// Disconnect implements Transport.
func (t *MQTTTransport) Disconnect() {
	t.client.Disconnect(250)
}
