package telesto

import (
	"fmt"

	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

// Request opcodes. The module confirms every request with Request|confirmationBit.
const (
	ReqSendData              frame.Opcode = 0x00
	ReqSendDataEx            frame.Opcode = 0x01
	ReqSetMode               frame.Opcode = 0x04
	ReqReset                 frame.Opcode = 0x05
	ReqSetChannel            frame.Opcode = 0x06
	ReqSetDestinationNetID   frame.Opcode = 0x07
	ReqSetDestinationAddress frame.Opcode = 0x08
	ReqSetUserSetting        frame.Opcode = 0x09
	ReqGetUserSetting        frame.Opcode = 0x0A
	ReqRSSI                  frame.Opcode = 0x0D
	ReqShutdown              frame.Opcode = 0x0E
	ReqStandby               frame.Opcode = 0x0F
	ReqTransmitPower         frame.Opcode = 0x11
	ReqFactoryReset          frame.Opcode = 0x12
)

const confirmationBit = 0x40

// Confirmation opcodes.
const (
	CnfSendData              = ReqSendData | confirmationBit
	CnfSetMode               = ReqSetMode | confirmationBit
	CnfReset                 = ReqReset | confirmationBit
	CnfSetChannel            = ReqSetChannel | confirmationBit
	CnfSetDestinationNetID   = ReqSetDestinationNetID | confirmationBit
	CnfSetDestinationAddress = ReqSetDestinationAddress | confirmationBit
	CnfSetUserSetting        = ReqSetUserSetting | confirmationBit
	CnfGetUserSetting        = ReqGetUserSetting | confirmationBit
	CnfRSSI                  = ReqRSSI | confirmationBit
	CnfShutdown              = ReqShutdown | confirmationBit
	CnfStandby               = ReqStandby | confirmationBit
	CnfTransmitPower         = ReqTransmitPower | confirmationBit
	CnfFactoryReset          = ReqFactoryReset | confirmationBit
)

// Indication opcodes, emitted by the module on its own.
const (
	IndDataRepeat     frame.Opcode = 0x80
	IndDataReceived   frame.Opcode = 0x81
	IndReset          frame.Opcode = 0x85
	IndWakeup         frame.Opcode = 0x8F
	IndPacketTransmit frame.Opcode = 0x90
)

// ConfirmationOf returns the confirmation opcode the module answers req with.
func ConfirmationOf(req frame.Opcode) frame.Opcode {
	return req | confirmationBit
}

// OpcodeKind tells requests, confirmations and indications apart.
type OpcodeKind int

const (
	KindRequest OpcodeKind = iota + 1
	KindConfirmation
	KindEvent
)

func (k OpcodeKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindConfirmation:
		return "confirmation"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// OpcodeDef describes one catalog entry.
type OpcodeDef struct {
	Opcode frame.Opcode
	Kind   OpcodeKind
	Name   string
}

// Catalog is a static table of the opcodes a module speaks, indexed by
// opcode. It implements frame.OpcodeSet.
type Catalog struct {
	defs  [256]OpcodeDef
	known [256]bool
}

// NewCatalog builds a catalog. Defining an opcode twice is an error.
func NewCatalog(defs ...OpcodeDef) (*Catalog, error) {
	c := new(Catalog)
	for _, def := range defs {
		if c.known[def.Opcode] {
			return nil, fmt.Errorf("catalog: opcode %s defined twice (%s, %s)", def.Opcode, c.defs[def.Opcode].Name, def.Name)
		}
		if def.Kind < KindRequest || def.Kind > KindEvent {
			return nil, fmt.Errorf("catalog: opcode %s has invalid kind %d", def.Opcode, def.Kind)
		}
		c.defs[def.Opcode] = def
		c.known[def.Opcode] = true
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error.
func MustCatalog(defs ...OpcodeDef) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Known(op frame.Opcode) bool {
	return c.known[op]
}

func (c *Catalog) Lookup(op frame.Opcode) (OpcodeDef, bool) {
	return c.defs[op], c.known[op]
}

func (c *Catalog) Kind(op frame.Opcode) OpcodeKind {
	return c.defs[op].Kind
}

func (c *Catalog) IsConfirmation(op frame.Opcode) bool {
	return c.known[op] && c.defs[op].Kind == KindConfirmation
}

func (c *Catalog) IsEvent(op frame.Opcode) bool {
	return c.known[op] && c.defs[op].Kind == KindEvent
}

// Name returns the symbolic name of op, or its hex value when unknown.
func (c *Catalog) Name(op frame.Opcode) string {
	if c.known[op] {
		return c.defs[op].Name
	}
	return op.String()
}

// Telesto is the catalog of the Telesto-III UART command interface.
var Telesto = MustCatalog(
	OpcodeDef{ReqSendData, KindRequest, "DATA_REQ"},
	OpcodeDef{ReqSendDataEx, KindRequest, "DATAEX_REQ"},
	OpcodeDef{ReqSetMode, KindRequest, "SET_MODE_REQ"},
	OpcodeDef{ReqReset, KindRequest, "RESET_REQ"},
	OpcodeDef{ReqSetChannel, KindRequest, "SET_CHANNEL_REQ"},
	OpcodeDef{ReqSetDestinationNetID, KindRequest, "SET_DESTNETID_REQ"},
	OpcodeDef{ReqSetDestinationAddress, KindRequest, "SET_DESTADDR_REQ"},
	OpcodeDef{ReqSetUserSetting, KindRequest, "SET_REQ"},
	OpcodeDef{ReqGetUserSetting, KindRequest, "GET_REQ"},
	OpcodeDef{ReqRSSI, KindRequest, "RSSI_REQ"},
	OpcodeDef{ReqShutdown, KindRequest, "SHUTDOWN_REQ"},
	OpcodeDef{ReqStandby, KindRequest, "STANDBY_REQ"},
	OpcodeDef{ReqTransmitPower, KindRequest, "SET_PAPOWER_REQ"},
	OpcodeDef{ReqFactoryReset, KindRequest, "FACTORY_RESET_REQ"},

	OpcodeDef{CnfSendData, KindConfirmation, "DATA_CNF"},
	OpcodeDef{CnfSetMode, KindConfirmation, "SET_MODE_CNF"},
	OpcodeDef{CnfReset, KindConfirmation, "RESET_CNF"},
	OpcodeDef{CnfSetChannel, KindConfirmation, "SET_CHANNEL_CNF"},
	OpcodeDef{CnfSetDestinationNetID, KindConfirmation, "SET_DESTNETID_CNF"},
	OpcodeDef{CnfSetDestinationAddress, KindConfirmation, "SET_DESTADDR_CNF"},
	OpcodeDef{CnfSetUserSetting, KindConfirmation, "SET_CNF"},
	OpcodeDef{CnfGetUserSetting, KindConfirmation, "GET_CNF"},
	OpcodeDef{CnfRSSI, KindConfirmation, "RSSI_CNF"},
	OpcodeDef{CnfShutdown, KindConfirmation, "SHUTDOWN_CNF"},
	OpcodeDef{CnfStandby, KindConfirmation, "STANDBY_CNF"},
	OpcodeDef{CnfTransmitPower, KindConfirmation, "SET_PAPOWER_CNF"},
	OpcodeDef{CnfFactoryReset, KindConfirmation, "FACTORY_RESET_CNF"},

	OpcodeDef{IndDataRepeat, KindEvent, "REPEAT_IND"},
	OpcodeDef{IndDataReceived, KindEvent, "DATA_IND"},
	OpcodeDef{IndReset, KindEvent, "RESET_IND"},
	OpcodeDef{IndWakeup, KindEvent, "WAKEUP_IND"},
	OpcodeDef{IndPacketTransmit, KindEvent, "TXCOMPLETE_RSP"},
)
