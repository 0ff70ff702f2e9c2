package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/vent-controller/internal/remote"
	"github.com/sweeney/vent-controller/internal/window"
)

// bufferCapacity is the number of messages kept while the broker is away.
const bufferCapacity = 100

// Config holds broker connection settings.
type Config struct {
	Broker   string
	ClientID string
}

// RealPublisher publishes to an actual MQTT broker and listens for remote
// commands. Messages published while disconnected are buffered and replayed
// on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. onCommand is
// called from the MQTT client goroutine for each valid command; it may be nil.
// A broker that is not reachable yet is not an error: the client keeps
// retrying and messages are buffered meanwhile.
func NewRealPublisher(cfg Config, onCommand func(remote.Command)) (*RealPublisher, error) {
	p := &RealPublisher{
		topic:  Topic,
		buffer: newRingBuffer(bufferCapacity),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("mqtt: connection lost")
		}).
		SetOnConnectHandler(func(c paho.Client) {
			log.WithField("broker", cfg.Broker).Info("mqtt: connected")
			if onCommand != nil {
				c.Subscribe(TopicCommand, 1, func(_ paho.Client, m paho.Message) {
					if err := HandleCommand(m.Payload(), onCommand); err != nil {
						log.WithError(err).WithField("payload", string(m.Payload())).Warn("mqtt: bad command")
					}
				})
			}
			go p.flush()
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.WithField("broker", cfg.Broker).Warn("mqtt: broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a window change to the MQTT broker.
func (p *RealPublisher) Publish(c window.Change) error {
	payload, err := FormatPayload(c)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: a missed window change leaves remote displays wrong
	return p.send(bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// flush replays buffered messages after a reconnect.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()

	if len(msgs) > 0 {
		log.WithField("count", len(msgs)).Info("mqtt: replaying buffered messages")
	}
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			log.WithError(err).Warn("mqtt: replay failed")
		}
	}
}

// Backlog returns the number of messages waiting for the broker and the
// number dropped since start.
func (p *RealPublisher) Backlog() (pending, dropped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len(), p.buffer.dropped
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
