package bus

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"

	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/util"
)

const (
	// SubjectUtterance carries every utterance accepted for speech.
	SubjectUtterance = "claudevoice.utterance"
	// SubjectStop silences speech on every listening instance.
	SubjectStop = "claudevoice.stop"
)

// UtteranceEvent is the wire form of an accepted utterance.
type UtteranceEvent struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Source     string `json:"source"`
	ProducedAt int64  `json:"produced_at"` // Unix milliseconds
}

// StopSignal is published on SubjectStop.
type StopSignal struct {
	Reason string `json:"reason,omitempty"`
}

func NewUtteranceEvent(u model.Utterance) UtteranceEvent {
	return UtteranceEvent{
		ID:         u.ID,
		Text:       u.Text,
		Source:     u.Source.String(),
		ProducedAt: u.ProducedAt.UnixMilli(),
	}
}

// Client publishes utterances and listens for remote stop requests.
type Client struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

func Connect(url string, opts ...nats.Option) (*Client, error) {
	base := []nats.Option{
		nats.Name("go-claude-voice"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				util.LogWarnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			util.LogInfof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Client{conn: nc}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// PublishUtterance is a pipeline observer. Failures are logged, never
// propagated into the speech path.
func (c *Client) PublishUtterance(u model.Utterance) {
	if err := c.Publish(SubjectUtterance, NewUtteranceEvent(u)); err != nil {
		util.LogWarnf("Failed to publish utterance %s: %v", u.ID, err)
	}
}

// OnStop calls fn for every stop signal received.
func (c *Client) OnStop(fn func(StopSignal)) error {
	return c.Subscribe(SubjectStop, func(_ string, data []byte) {
		var sig StopSignal
		if len(data) > 0 {
			if err := sonic.Unmarshal(data, &sig); err != nil {
				util.LogDebugf("Ignoring malformed stop payload: %v", err)
			}
		}
		fn(sig)
	})
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	util.LogDebugf("Subscribed to %s", subject)
	return nil
}

// Flush waits until the server has processed everything published so far.
func (c *Client) Flush() error {
	return c.conn.Flush()
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Drain()
}
