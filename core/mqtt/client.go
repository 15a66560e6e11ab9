package mqtt

// Publisher sends JSON encoded messages to an MQTT broker.
type Publisher interface {
	// Publish encodes payload as JSON and sends it on topic.
	Publish(topic string, payload any) error
	Disconnect()
}
