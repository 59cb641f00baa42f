package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/actuator-control/internal/logic"
)

// OutboxCapacity is the number of messages held while the broker is unreachable.
const OutboxCapacity = 100

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are queued and replayed, oldest first, on reconnect.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	pending   *outbox
	connected bool // true once the first connection has been made
}

// NewRealPublisher creates a publisher for the given broker. The connection is
// made in the background so a missing broker never blocks startup.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := &RealPublisher{pending: newOutbox(OutboxCapacity)}

	will, _ := SystemMessage{Time: time.Now(), Kind: Offline, Reason: "MQTT_DISCONNECT"}.Encode()

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetWill(TopicSystem, string(will), 1, Offline.Retained()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// newPublisher wraps an existing client without connecting it.
func newPublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{client: client, pending: newOutbox(OutboxCapacity)}
}

// onConnect replays queued messages and announces a reconnect.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reconnect := p.connected
	p.connected = true
	log.Printf("mqtt: connected")

	msgs, dropped := p.pending.take()
	if dropped > 0 {
		log.Printf("mqtt: %d queued messages were dropped while offline", dropped)
	}
	for i, m := range msgs {
		if err := wait(c.Publish(m.topic, m.qos, m.retained, m.payload)); err != nil {
			log.Printf("mqtt: replay failed after %d/%d messages: %v", i, len(msgs), err)
			for _, rest := range msgs[i:] {
				p.pending.add(rest)
			}
			return
		}
	}
	if len(msgs) > 0 {
		log.Printf("mqtt: replayed %d queued messages", len(msgs))
	}

	if reconnect {
		body, _ := SystemMessage{Time: time.Now(), Kind: Reconnected}.Encode()
		if err := wait(c.Publish(TopicSystem, 1, Reconnected.Retained(), body)); err != nil {
			log.Printf("mqtt: reconnected publish failed: %v", err)
		}
	}
}

// Publish sends a controller event at QoS 0.
func (p *RealPublisher) Publish(e logic.Event) error {
	body, err := EncodeEvent(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	if err := p.send(pendingMsg{topic: Topic, payload: body}); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

// PublishSystem sends a lifecycle message at QoS 1, retained per its kind.
func (p *RealPublisher) PublishSystem(msg SystemMessage) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind, err)
	}
	if err := p.send(pendingMsg{topic: TopicSystem, payload: body, qos: 1, retained: msg.Kind.Retained()}); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Kind, err)
	}
	return nil
}

// send publishes m, or queues it when the connection is down.
func (p *RealPublisher) send(m pendingMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		if p.pending.add(m) && p.pending.dropped == 1 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", OutboxCapacity)
		}
		return nil
	}
	return wait(p.client.Publish(m.topic, m.qos, m.retained, m.payload))
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Pending returns the number of queued messages.
func (p *RealPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout after %v", publishTimeout)
	}
	return token.Error()
}
