package telesto

import "fmt"

// Setting indexes a non-volatile user setting.
type Setting uint8

const (
	SettingUARTBaudRate            Setting = 0x00
	SettingDefaultRFProfile        Setting = 0x01
	SettingDefaultRFTxPower        Setting = 0x02
	SettingDefaultRFChannel        Setting = 0x03
	SettingDefaultAddressMode      Setting = 0x04
	SettingRetryNumbers            Setting = 0x06
	SettingDefaultDestinationNetID Setting = 0x07
	SettingDefaultDestinationAddr  Setting = 0x08
	SettingSourceNetID             Setting = 0x0A
	SettingSourceAddr              Setting = 0x0B
	SettingConfigFlags             Setting = 0x0F
	SettingRPFlags                 Setting = 0x10
	SettingRPNumSlots              Setting = 0x11
	SettingFactorySettings         Setting = 0x20
	SettingFirmwareVersion         Setting = 0x21
	SettingRuntimeSettings         Setting = 0x22
)

var settingNames = map[Setting]string{
	SettingUARTBaudRate:            "UART_BaudRate",
	SettingDefaultRFProfile:        "RF_DefaultProfile",
	SettingDefaultRFTxPower:        "RF_DefaultTXPower",
	SettingDefaultRFChannel:        "RF_DefaultChannel",
	SettingDefaultAddressMode:      "MAC_DefaultAddressMode",
	SettingRetryNumbers:            "MAC_NumRetries",
	SettingDefaultDestinationNetID: "MAC_DefaultDestNetID",
	SettingDefaultDestinationAddr:  "MAC_DefaultDestAddr",
	SettingSourceNetID:             "MAC_SourceNetID",
	SettingSourceAddr:              "MAC_SourceAddr",
	SettingConfigFlags:             "CfgFlags",
	SettingRPFlags:                 "RP_Flags",
	SettingRPNumSlots:              "RP_NumSlots",
	SettingFactorySettings:         "FactorySettings",
	SettingFirmwareVersion:         "FirmwareVersion",
	SettingRuntimeSettings:         "RuntimeSettings",
}

func (s Setting) String() string {
	if name, ok := settingNames[s]; ok {
		return name
	}
	return fmt.Sprintf("setting(0x%02X)", uint8(s))
}

// Settings lists every known setting index in ascending order.
func Settings() []Setting {
	return []Setting{
		SettingUARTBaudRate, SettingDefaultRFProfile, SettingDefaultRFTxPower,
		SettingDefaultRFChannel, SettingDefaultAddressMode, SettingRetryNumbers,
		SettingDefaultDestinationNetID, SettingDefaultDestinationAddr, SettingSourceNetID,
		SettingSourceAddr, SettingConfigFlags, SettingRPFlags, SettingRPNumSlots,
		SettingFactorySettings, SettingFirmwareVersion, SettingRuntimeSettings,
	}
}

// Mode is the operating mode selected with SET_MODE_REQ.
type Mode uint8

const (
	ModeTransparent Mode = 0x00
	ModeCommand     Mode = 0x10
)

func (m Mode) String() string {
	switch m {
	case ModeTransparent:
		return "transparent"
	case ModeCommand:
		return "command"
	default:
		return fmt.Sprintf("mode(0x%02X)", uint8(m))
	}
}
