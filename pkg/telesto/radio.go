package telesto

import (
	"context"
	"fmt"
	"log/slog"
)

// Radio is the typed command API of a Telesto module. Every method sends one
// command, waits for its confirmation under ctx and checks the status byte.
// The driver must be running (Driver.Run) for the calls to complete.
type Radio struct {
	Driver *Driver
}

func NewRadio(d *Driver) *Radio {
	return &Radio{Driver: d}
}

func (r *Radio) exec(ctx context.Context, cmd Command) ([]byte, error) {
	payload, err := r.Driver.SendContext(ctx, cmd)
	if err != nil {
		return nil, err
	}
	slog.Debug("Command confirmed", "command", cmd.Name, "payload", fmt.Sprintf("% X", payload))
	return payload, nil
}

// expect runs cmd and checks that the first confirmation byte equals want.
func (r *Radio) expect(ctx context.Context, cmd Command, want byte) error {
	payload, err := r.exec(ctx, cmd)
	if err != nil {
		return err
	}
	return checkStatus(cmd, payload, want)
}

// Reset restarts the module.
func (r *Radio) Reset(ctx context.Context) error {
	return r.expect(ctx, ResetCommand(), 0x00)
}

// FactoryReset restores the factory settings and restarts the module.
func (r *Radio) FactoryReset(ctx context.Context) error {
	return r.expect(ctx, FactoryResetCommand(), 0x00)
}

// Standby puts the module to sleep until it is woken up over UART.
func (r *Radio) Standby(ctx context.Context) error {
	return r.expect(ctx, StandbyCommand(), 0x00)
}

func (r *Radio) Shutdown(ctx context.Context) error {
	return r.expect(ctx, ShutdownCommand(), 0x00)
}

// RSSI returns the signal strength of the last received packet in dBm.
func (r *Radio) RSSI(ctx context.Context) (int8, error) {
	cmd := RSSICommand()
	payload, err := r.exec(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, fmt.Errorf("%s: %w", cmd.Name, ErrMalformedResponse)
	}
	return int8(payload[0]), nil
}

// SetTxPower sets the output power in dBm. The module confirms with the
// power actually applied; any other value is reported as a StatusError.
func (r *Radio) SetTxPower(ctx context.Context, dBm uint8) error {
	return r.expect(ctx, TransmitPowerCommand(dBm), dBm)
}

// SetChannel switches the radio channel. The module echoes the channel.
func (r *Radio) SetChannel(ctx context.Context, channel uint8) error {
	return r.expect(ctx, SetChannelCommand(channel), channel)
}

func (r *Radio) SetDestinationNetID(ctx context.Context, id uint8) error {
	return r.expect(ctx, SetDestinationNetIDCommand(id), 0x00)
}

func (r *Radio) SetDestinationAddress(ctx context.Context, addr uint8) error {
	return r.expect(ctx, SetDestinationAddressCommand(addr), 0x00)
}

func (r *Radio) SetMode(ctx context.Context, mode Mode) error {
	return r.expect(ctx, SetModeCommand(mode), 0x00)
}

// SendData transmits data to the configured destination. A refused
// transmission returns a StatusError whose code is a SendDataStatus.
func (r *Radio) SendData(ctx context.Context, data []byte) error {
	cmd, err := SendDataCommand(data)
	if err != nil {
		return err
	}
	return r.expect(ctx, cmd, byte(SendDataOK))
}

func (r *Radio) SendDataEx(ctx context.Context, channel, netID, addr uint8, data []byte) error {
	cmd, err := SendDataExCommand(channel, netID, addr, data)
	if err != nil {
		return err
	}
	return r.expect(ctx, cmd, byte(SendDataOK))
}

// GetUserSetting reads a non-volatile setting. The confirmation carries a
// status byte followed by the value.
func (r *Radio) GetUserSetting(ctx context.Context, s Setting) ([]byte, error) {
	cmd := GetUserSettingCommand(s)
	payload, err := r.exec(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(cmd, payload, 0x00); err != nil {
		return nil, err
	}
	return payload[1:], nil
}

// SetUserSetting writes a non-volatile setting. Most settings take effect
// after Reset.
func (r *Radio) SetUserSetting(ctx context.Context, s Setting, value ...byte) error {
	return r.expect(ctx, SetUserSettingCommand(s, value...), 0x00)
}

// Settings reads the given settings, or all known settings when none are
// named. Settings the module refuses are skipped.
func (r *Radio) Settings(ctx context.Context, settings ...Setting) (map[Setting][]byte, error) {
	if len(settings) == 0 {
		settings = Settings()
	}
	values := make(map[Setting][]byte, len(settings))
	for _, s := range settings {
		v, err := r.GetUserSetting(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return values, err
			}
			slog.Debug("Setting not readable", "setting", s, "error", err)
			continue
		}
		values[s] = v
	}
	return values, nil
}

// Events subscribes a bounded channel observer to the driver and returns it.
// It replaces any observer subscribed before.
func (r *Radio) Events(buffer int) *ChanObserver {
	obs := NewChanObserver(buffer)
	r.Driver.Subscribe(obs)
	return obs
}
