package telesto

import (
	"fmt"

	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

// MaxDataLen is the largest user payload of a single radio packet.
const MaxDataLen = 220

// Command is one host request together with the confirmation it expects.
// The payload is opaque to the transaction engine.
type Command struct {
	Name     string
	Request  frame.Opcode
	Response frame.Opcode
	Payload  []byte
}

// NewCommand builds a Telesto command: the expected response is the request
// opcode with the confirmation bit set.
func NewCommand(req frame.Opcode, payload ...byte) Command {
	cmd := Command{
		Name:     Telesto.Name(req),
		Request:  req,
		Response: ConfirmationOf(req),
		Payload:  payload,
	}
	// DATAEX_REQ shares DATA_CNF with DATA_REQ.
	if req == ReqSendDataEx {
		cmd.Response = CnfSendData
	}
	return cmd
}

func (c Command) String() string {
	return fmt.Sprintf("%s(%s->%s, % X)", c.Name, c.Request, c.Response, c.Payload)
}

func ResetCommand() Command        { return NewCommand(ReqReset) }
func FactoryResetCommand() Command { return NewCommand(ReqFactoryReset) }
func StandbyCommand() Command      { return NewCommand(ReqStandby) }
func ShutdownCommand() Command     { return NewCommand(ReqShutdown) }
func RSSICommand() Command         { return NewCommand(ReqRSSI) }

func SetModeCommand(mode Mode) Command {
	return NewCommand(ReqSetMode, byte(mode))
}

func SetChannelCommand(channel uint8) Command {
	return NewCommand(ReqSetChannel, channel)
}

func SetDestinationNetIDCommand(id uint8) Command {
	return NewCommand(ReqSetDestinationNetID, id)
}

func SetDestinationAddressCommand(addr uint8) Command {
	return NewCommand(ReqSetDestinationAddress, addr)
}

// TransmitPowerCommand sets the output power in dBm. Values the module does
// not support are answered with a different power, which Radio reports as a
// status error.
func TransmitPowerCommand(dBm uint8) Command {
	return NewCommand(ReqTransmitPower, dBm)
}

func GetUserSettingCommand(s Setting) Command {
	return NewCommand(ReqGetUserSetting, byte(s))
}

func SetUserSettingCommand(s Setting, value ...byte) Command {
	return NewCommand(ReqSetUserSetting, append([]byte{byte(s)}, value...)...)
}

// SendDataCommand transmits data to the configured destination.
func SendDataCommand(data []byte) (Command, error) {
	if len(data) > MaxDataLen {
		return Command{}, fmt.Errorf("%w: %d > %d", frame.ErrPayloadTooLarge, len(data), MaxDataLen)
	}
	return NewCommand(ReqSendData, data...), nil
}

// SendDataExCommand transmits data on an explicit channel to an explicit
// network and address, overriding the configured destination.
func SendDataExCommand(channel, netID, addr uint8, data []byte) (Command, error) {
	if len(data) > MaxDataLen {
		return Command{}, fmt.Errorf("%w: %d > %d", frame.ErrPayloadTooLarge, len(data), MaxDataLen)
	}
	payload := make([]byte, 0, 3+len(data))
	payload = append(payload, channel, netID, addr)
	return NewCommand(ReqSendDataEx, append(payload, data...)...), nil
}
