// Package notify delivers turn notifications over NATS. The chat-facing
// bot subscribes to the subject and renders the actual platform messages;
// this side only publishes, best effort.
package notify

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"sketch-relay/internal/relay"
)

type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server and returns a notifier publishing to the
// given subject.
func Connect(url, subject string) (*NATSNotifier, error) {
	opts := []nats.Option{
		nats.Name("sketch-relay scheduler"),
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

func (n *NATSNotifier) Notify(notification relay.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject, body)
}

func (n *NATSNotifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
