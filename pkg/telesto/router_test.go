package telesto

import (
	"testing"

	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		opcode   frame.Opcode
		state    State
		expected frame.Opcode
		want     Class
	}{
		{"expected confirmation", 0x81, StatePending, 0x81, ClassConfirmation},
		{"other confirmation", 0x7F, StatePending, 0x81, ClassMismatch},
		{"event while pending", 0x90, StatePending, 0x81, ClassIndication},
		{"confirmation while idle", 0x81, StateIdle, 0x81, ClassIndication},
		{"confirmation after resolve", 0x81, StateResolved, 0x81, ClassIndication},
		{"request echoed", 0x01, StatePending, 0x81, ClassIndication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(frame.Frame{Opcode: tt.opcode}, tt.state, tt.expected, testCatalog)
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTagOf(t *testing.T) {
	tests := []struct {
		opcode frame.Opcode
		want   Tag
	}{
		{0x90, TagEvent},
		{0x81, TagUnmatched},
		{0x7F, TagUnmatched},
		{0x01, TagUnsolicited},
		{0x33, TagUnsolicited},
	}
	for _, tt := range tests {
		if got := TagOf(tt.opcode, testCatalog); got != tt.want {
			t.Errorf("TagOf(%s) = %s, want %s", tt.opcode, got, tt.want)
		}
	}
}

func TestTelestoCatalog(t *testing.T) {
	for _, op := range []frame.Opcode{ReqSendData, ReqReset, ReqTransmitPower, ReqFactoryReset} {
		if !Telesto.IsConfirmation(ConfirmationOf(op)) {
			t.Errorf("%s: confirmation %s not in catalog", Telesto.Name(op), ConfirmationOf(op))
		}
	}
	if !Telesto.IsEvent(IndDataReceived) || Telesto.IsConfirmation(IndDataReceived) {
		t.Errorf("DATA_IND kind = %s", Telesto.Kind(IndDataReceived))
	}
	if got := Telesto.Name(0x33); got != "0x33" {
		t.Errorf("Name(0x33) = %q", got)
	}
	if _, err := NewCatalog(
		OpcodeDef{Opcode: 0x01, Kind: KindRequest, Name: "A"},
		OpcodeDef{Opcode: 0x01, Kind: KindEvent, Name: "B"},
	); err == nil {
		t.Error("NewCatalog() accepted a duplicate opcode")
	}
}

func TestRouterWithoutObserver(t *testing.T) {
	r := NewRouter(testCatalog, nil)
	ind := r.Indicate(frame.Frame{Opcode: 0x90}, t0)
	if ind.Tag != TagEvent || ind.Name != "EVENT_IND" || !ind.ReceivedAt.Equal(t0) {
		t.Errorf("Indicate() = %+v", ind)
	}
}
