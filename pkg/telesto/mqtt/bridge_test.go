package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/exepirit/telesto-go/pkg/telesto"
	"github.com/exepirit/telesto-go/pkg/telesto/envelope"
	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

func TestDeviceIDFromPort(t *testing.T) {
	tests := map[string]string{
		"/dev/ttyUSB0":          "ttyUSB0",
		"/dev/serial/by-id/x y": "serial_by-id_x_y",
		"COM3":                  "COM3",
		"":                      "telesto",
	}
	for port, want := range tests {
		if got := DeviceIDFromPort(port); got != want {
			t.Errorf("DeviceIDFromPort(%q) = %q, want %q", port, got, want)
		}
	}
}

func TestTopics(t *testing.T) {
	b := &Bridge{RootTopic: "radio", DeviceID: "ttyUSB0"}
	ind := telesto.Indication{
		Frame: frame.Frame{Opcode: telesto.IndDataReceived},
		Tag:   telesto.TagEvent,
		Name:  "DATA_IND",
	}

	if got, want := b.EventTopic(ind), "radio/ttyUSB0/event/data_ind"; got != want {
		t.Errorf("EventTopic() = %q, want %q", got, want)
	}
	if got, want := b.SendTopic(), "radio/ttyUSB0/send"; got != want {
		t.Errorf("SendTopic() = %q, want %q", got, want)
	}
	if got, want := b.ResultTopic(), "radio/ttyUSB0/result"; got != want {
		t.Errorf("ResultTopic() = %q, want %q", got, want)
	}
}

func TestCommandFromEnvelope(t *testing.T) {
	cmd, err := CommandFromEnvelope(&envelope.Envelope{Opcode: 0x06, Payload: []byte{0x05}})
	if err != nil {
		t.Fatalf("CommandFromEnvelope() error: %v", err)
	}
	if diff := cmp.Diff(telesto.SetChannelCommand(5), cmd); diff != "" {
		t.Errorf("command (-want +got):\n%s", diff)
	}

	for _, op := range []uint32{0x46, 0x81, 0x33, 0x1FF} {
		if _, err := CommandFromEnvelope(&envelope.Envelope{Opcode: op}); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("opcode 0x%X: error = %v, want ErrInvalidCommand", op, err)
		}
	}
}

func TestResultEnvelope(t *testing.T) {
	cmd := telesto.RSSICommand()

	ok := ResultEnvelope(cmd, []byte{0xC4}, nil, "COM3")
	if ok.Tag != "confirmation" || ok.Name != "RSSI_CNF" || ok.Opcode != 0x4D {
		t.Errorf("result = %+v", ok)
	}

	failed := ResultEnvelope(cmd, nil, telesto.ErrTimeout, "COM3")
	if failed.Tag != "error" || string(failed.Payload) != telesto.ErrTimeout.Error() {
		t.Errorf("error result = %+v", failed)
	}
}

func TestPublishNotConnected(t *testing.T) {
	b := &Bridge{RootTopic: "radio", DeviceID: "x"}
	if err := b.Publish("radio/x/result", &envelope.Envelope{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := b.HandleSends(1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HandleSends() error = %v, want ErrNotConnected", err)
	}
	if _, err := b.ReceiveCommand(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReceiveCommand() error = %v, want ErrNotConnected", err)
	}
}

func TestOnIndicationDoesNotBlock(t *testing.T) {
	b := &Bridge{RootTopic: "radio", DeviceID: "x", Buffer: 4}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 100 {
			b.OnIndication(telesto.Indication{Tag: telesto.TagEvent, Name: "RX_IND", Frame: frame.Frame{Opcode: 0x81, Payload: []byte{byte(i)}}})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnIndication blocked with nobody publishing")
	}
	if n := b.queue().Dropped(); n != 96 {
		t.Errorf("Dropped() = %d, want 96", n)
	}

	// the publisher drains the queue even when the broker is unreachable
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- b.PublishIndications(ctx) }()
	deadline := time.Now().Add(time.Second)
	for len(b.queue().C()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%d indications still queued", len(b.queue().C()))
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Errorf("PublishIndications() = %v, want context.Canceled", err)
	}
}

type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "radio/x/send" }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMessageAfterDisconnect(t *testing.T) {
	b := &Bridge{RootTopic: "radio", DeviceID: "x"}
	b.openInbox(0)

	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		b.handleMessage(nil, fakeMessage{})
	}()
	b.Disconnect()
	b.Disconnect()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("handleMessage still blocked after Disconnect")
	}
	// a late message from the client must not panic
	b.handleMessage(nil, fakeMessage{})

	if _, err := b.ReceiveCommand(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReceiveCommand() error = %v, want ErrNotConnected", err)
	}
}

func TestReceiveCommand(t *testing.T) {
	b := &Bridge{RootTopic: "radio", DeviceID: "x"}
	b.openInbox(1)

	env := &envelope.Envelope{Opcode: uint32(telesto.ReqRSSI)}
	data, err := env.MarshalVT()
	if err != nil {
		t.Fatal(err)
	}
	b.handleMessage(nil, fakeMessage{payload: data})

	cmd, err := b.ReceiveCommand(context.Background())
	if err != nil {
		t.Fatalf("ReceiveCommand() error: %v", err)
	}
	if cmd.Request != telesto.ReqRSSI {
		t.Errorf("request = %s, want %s", cmd.Request, telesto.ReqRSSI)
	}
}
