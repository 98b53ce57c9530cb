package telesto

import "fmt"

// SendDataStatus is the status byte of a DATA_CNF.
type SendDataStatus byte

const (
	SendDataOK             SendDataStatus = 0x00
	SendDataAckTimeout     SendDataStatus = 0x01
	SendDataInvalidChannel SendDataStatus = 0x02
	SendDataChannelBusy    SendDataStatus = 0x03
	SendDataModuleBusy     SendDataStatus = 0x04
	SendDataPayloadInvalid SendDataStatus = 0xFF
)

func (s SendDataStatus) String() string {
	switch s {
	case SendDataOK:
		return "ok"
	case SendDataAckTimeout:
		return "ack timeout"
	case SendDataInvalidChannel:
		return "invalid channel"
	case SendDataChannelBusy:
		return "channel busy"
	case SendDataModuleBusy:
		return "module busy"
	case SendDataPayloadInvalid:
		return "payload invalid"
	default:
		return fmt.Sprintf("status 0x%02X", byte(s))
	}
}

// checkStatus interprets a confirmation whose first byte must equal want.
func checkStatus(cmd Command, payload []byte, want byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("%s: %w", cmd.Name, ErrMalformedResponse)
	}
	if payload[0] != want {
		return &StatusError{Command: cmd.Name, Code: payload[0]}
	}
	return nil
}
