package mqtt

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/exepirit/telesto-go/internal/log"
	"github.com/exepirit/telesto-go/pkg/telesto"
	"github.com/exepirit/telesto-go/pkg/telesto/envelope"
)

const publishTimeout = 5 * time.Second

// Bridge mirrors a Telesto module on an MQTT broker. Indications are
// published as envelopes under
//
//	<RootTopic>/<DeviceID>/<tag>/<name>
//
// and command envelopes received on <RootTopic>/<DeviceID>/send are sent to
// the module; their confirmations go to <RootTopic>/<DeviceID>/result.
type Bridge struct {
	// BrokerURL is the URL of the MQTT broker to connect to.
	BrokerURL string
	// Username is the username for MQTT authentication.
	Username string
	// Password is the password for MQTT authentication.
	Password string
	// AppName is a unique identifier for the application, used in the MQTT client ID.
	AppName string
	// RootTopic is the base topic for all messages.
	RootTopic string
	// DeviceID names the module in topics.
	DeviceID string
	// Port is recorded in published envelopes.
	Port string
	QoS  byte
	// Buffer bounds the indications waiting for PublishIndications. When it
	// is full the oldest one is dropped.
	Buffer int
	Logger *slog.Logger

	client     mqtt.Client
	messagesCh chan mqtt.Message
	done       chan struct{}
	closeOnce  sync.Once

	outboxOnce sync.Once
	outbox     *telesto.ChanObserver
}

var _ telesto.Observer = &Bridge{}

// DeviceIDFromPort derives a topic-safe device name from a serial port path.
func DeviceIDFromPort(port string) string {
	port = strings.TrimPrefix(port, "/dev/")
	id := strings.Map(func(r rune) rune {
		switch r {
		case '/', '#', '+', ' ', '\\':
			return '_'
		}
		return r
	}, port)
	if id == "" {
		return "telesto"
	}
	return id
}

func (b *Bridge) deviceTopic() string {
	return b.RootTopic + "/" + b.DeviceID
}

// EventTopic is the topic an indication is published on.
func (b *Bridge) EventTopic(ind telesto.Indication) string {
	return fmt.Sprintf("%s/%s/%s", b.deviceTopic(), ind.Tag, strings.ToLower(ind.Name))
}

func (b *Bridge) SendTopic() string {
	return b.deviceTopic() + "/send"
}

func (b *Bridge) ResultTopic() string {
	return b.deviceTopic() + "/result"
}

// Connect establishes an MQTT connection to the broker.
func (b *Bridge) Connect() error {
	if b.client != nil && b.client.IsConnected() {
		return nil
	}

	randomId := make([]byte, 4)
	_, _ = rand.Read(randomId)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.BrokerURL)
	opts.SetUsername(b.Username)
	opts.SetPassword(b.Password)
	opts.SetClientID(fmt.Sprintf("%s-%x", b.AppName, randomId))
	opts.SetOrderMatters(false)

	b.client = mqtt.NewClient(opts)

	token := b.client.Connect()
	<-token.Done()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect MQTT: %w", err)
	}
	log.Or(b.Logger).Info("Connected to MQTT broker", "broker", b.BrokerURL, "topic", b.deviceTopic())
	return nil
}

// HandleSends subscribes to the send topic.
func (b *Bridge) HandleSends(buffer int) error {
	if b.client == nil || !b.client.IsConnected() {
		return ErrNotConnected
	}

	b.openInbox(buffer)

	token := b.client.Subscribe(b.SendTopic(), b.QoS, b.handleMessage)
	<-token.Done()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}
	return nil
}

// Disconnect closes the MQTT connection. Pending and later ReceiveCommand
// calls return ErrNotConnected.
func (b *Bridge) Disconnect() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(1000)
	}
	if b.done != nil {
		b.closeOnce.Do(func() { close(b.done) })
	}
}

func (b *Bridge) openInbox(buffer int) {
	b.messagesCh = make(chan mqtt.Message, buffer)
	b.done = make(chan struct{})
}

// handleMessage runs on paho's goroutines and may race with Disconnect, so
// messagesCh is never closed.
func (b *Bridge) handleMessage(_ mqtt.Client, message mqtt.Message) {
	select {
	case b.messagesCh <- message:
	case <-b.done:
	}
}

// Publish sends an envelope to topic.
func (b *Bridge) Publish(topic string, env *envelope.Envelope) error {
	if b.client == nil || !b.client.IsConnected() {
		return ErrNotConnected
	}
	data, err := env.MarshalVT()
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	token := b.client.Publish(topic, b.QoS, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// OnIndication queues ind for PublishIndications without blocking the
// driver.
func (b *Bridge) OnIndication(ind telesto.Indication) {
	b.queue().OnIndication(ind)
}

func (b *Bridge) queue() *telesto.ChanObserver {
	b.outboxOnce.Do(func() {
		b.outbox = telesto.NewChanObserver(b.Buffer)
	})
	return b.outbox
}

// PublishIndications publishes queued indications until ctx ends. Failures
// are logged and the indication is not retried.
func (b *Bridge) PublishIndications(ctx context.Context) error {
	q := b.queue()
	for {
		select {
		case <-ctx.Done():
			if n := q.Dropped(); n > 0 {
				log.Or(b.Logger).Warn("Indications dropped while the broker lagged", "count", n)
			}
			return ctx.Err()
		case ind := <-q.C():
			b.publishIndication(ind)
		}
	}
}

func (b *Bridge) publishIndication(ind telesto.Indication) {
	topic := b.EventTopic(ind)
	if err := b.Publish(topic, envelope.FromIndication(ind, b.Port)); err != nil {
		log.Or(b.Logger).Warn("Failed to publish indication", "topic", topic, "error", err)
	}
}

// ReceiveCommand waits for the next command envelope on the send topic.
func (b *Bridge) ReceiveCommand(ctx context.Context) (telesto.Command, error) {
	if b.done == nil {
		return telesto.Command{}, ErrNotConnected
	}
	select {
	case <-ctx.Done():
		return telesto.Command{}, ctx.Err()
	case <-b.done:
		return telesto.Command{}, ErrNotConnected
	case msg := <-b.messagesCh:
		var env envelope.Envelope
		if err := env.UnmarshalVT(msg.Payload()); err != nil {
			return telesto.Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return CommandFromEnvelope(&env)
	}
}

// CommandFromEnvelope turns a send request into a command. Only opcodes the
// Telesto catalog lists as requests are accepted.
func CommandFromEnvelope(env *envelope.Envelope) (telesto.Command, error) {
	f, err := env.Frame()
	if err != nil {
		return telesto.Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if telesto.Telesto.Kind(f.Opcode) != telesto.KindRequest || !telesto.Telesto.Known(f.Opcode) {
		return telesto.Command{}, fmt.Errorf("%w: %s is not a request", ErrInvalidCommand, f.Opcode)
	}
	return telesto.NewCommand(f.Opcode, f.Payload...), nil
}

// ResultEnvelope reports the outcome of a forwarded command.
func ResultEnvelope(cmd telesto.Command, payload []byte, err error, port string) *envelope.Envelope {
	env := &envelope.Envelope{
		Opcode:           uint32(cmd.Response),
		Name:             telesto.Telesto.Name(cmd.Response),
		Tag:              "confirmation",
		Payload:          payload,
		ReceivedUnixNano: time.Now().UnixNano(),
		Port:             port,
	}
	if err != nil {
		env.Tag = "error"
		env.Payload = []byte(err.Error())
	}
	return env
}

// Forward sends every received command through d and publishes the result,
// until ctx ends or the connection is closed. The driver must be running.
func (b *Bridge) Forward(ctx context.Context, d *telesto.Driver) error {
	logger := log.Or(b.Logger)
	for {
		cmd, err := b.ReceiveCommand(ctx)
		switch {
		case errors.Is(err, ErrInvalidCommand):
			logger.Warn("Ignoring send request", "error", err)
			continue
		case err != nil:
			return err
		}

		logger.Debug("Forwarding command", "command", cmd.Name)
		payload, err := d.SendContext(ctx, cmd)
		if err != nil {
			logger.Warn("Forwarded command failed", "command", cmd.Name, "error", err)
		}
		if perr := b.Publish(b.ResultTopic(), ResultEnvelope(cmd, payload, err, b.Port)); perr != nil {
			logger.Warn("Failed to publish result", "error", perr)
		}
	}
}
