package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/exepirit/telesto-go/pkg/telesto"
	"github.com/exepirit/telesto-go/pkg/telesto/mqtt"
	"github.com/exepirit/telesto-go/pkg/telesto/serial"
)

type command struct {
	name        string
	args        string
	help        string
	minArgs     int
	needsDevice bool
	run         func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "reset", help: "Restart the module", needsDevice: true, run: simple((*telesto.Radio).Reset)},
	{name: "factory-reset", help: "Restore factory settings", needsDevice: true, run: simple((*telesto.Radio).FactoryReset)},
	{name: "standby", help: "Put the module into standby", needsDevice: true, run: simple((*telesto.Radio).Standby)},
	{name: "shutdown", help: "Shut the module down", needsDevice: true, run: simple((*telesto.Radio).Shutdown)},
	{name: "rssi", help: "Print the RSSI of the last received packet", needsDevice: true, run: runRSSI},
	{name: "channel", args: "N", help: "Switch the radio channel", minArgs: 1, needsDevice: true, run: withByte((*telesto.Radio).SetChannel)},
	{name: "power", args: "DBM", help: "Set the transmit power", minArgs: 1, needsDevice: true, run: withByte((*telesto.Radio).SetTxPower)},
	{name: "mode", args: "MODE", help: "Set the operating mode (transparent, command or a number)", minArgs: 1, needsDevice: true, run: runMode},
	{name: "dest-net", args: "N", help: "Set the destination network ID", minArgs: 1, needsDevice: true, run: withByte((*telesto.Radio).SetDestinationNetID)},
	{name: "dest-addr", args: "N", help: "Set the destination address", minArgs: 1, needsDevice: true, run: withByte((*telesto.Radio).SetDestinationAddress)},
	{name: "get-setting", args: "SETTING", help: "Read a user setting by name or index", minArgs: 1, needsDevice: true, run: runGetSetting},
	{name: "settings", help: "Read all user settings", needsDevice: true, run: runSettings},
	{name: "send", args: "TEXT|hex:..", help: "Transmit data to the configured destination", minArgs: 1, needsDevice: true, run: runSend},
	{name: "listen", help: "Print indications until interrupted", needsDevice: true, run: runListen},
	{name: "bridge", help: "Mirror the module on the configured MQTT broker", needsDevice: true, run: runBridge},
	{name: "ports", help: "List serial ports", run: runPorts},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func simple(call func(*telesto.Radio, context.Context) error) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, _ []string) error {
		if err := call(a.radio, ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}
}

func withByte(call func(*telesto.Radio, context.Context, uint8) error) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		v, err := parseByte(args[0])
		if err != nil {
			return err
		}
		if err := call(a.radio, ctx, v); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}
}

func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: expected 0-255", s)
	}
	return uint8(v), nil
}

func parseMode(s string) (telesto.Mode, error) {
	switch strings.ToLower(s) {
	case "transparent":
		return telesto.ModeTransparent, nil
	case "command":
		return telesto.ModeCommand, nil
	}
	v, err := parseByte(s)
	return telesto.Mode(v), err
}

func parseSetting(s string) (telesto.Setting, error) {
	for _, setting := range telesto.Settings() {
		if strings.EqualFold(setting.String(), s) {
			return setting, nil
		}
	}
	v, err := parseByte(s)
	return telesto.Setting(v), err
}

// parsePayload takes text literally unless it starts with "hex:".
func parsePayload(s string) ([]byte, error) {
	if raw, ok := strings.CutPrefix(s, "hex:"); ok {
		data, err := hex.DecodeString(strings.ReplaceAll(raw, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return data, nil
	}
	return []byte(s), nil
}

func runRSSI(ctx context.Context, a *app, _ []string) error {
	rssi, err := a.radio.RSSI(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d dBm\n", rssi)
	return nil
}

func runMode(ctx context.Context, a *app, args []string) error {
	mode, err := parseMode(args[0])
	if err != nil {
		return err
	}
	if err := a.radio.SetMode(ctx, mode); err != nil {
		return err
	}
	fmt.Println("mode", mode)
	return nil
}

func runGetSetting(ctx context.Context, a *app, args []string) error {
	setting, err := parseSetting(args[0])
	if err != nil {
		return err
	}
	value, err := a.radio.GetUserSetting(ctx, setting)
	if err != nil {
		return err
	}
	fmt.Printf("%s: % X\n", setting, value)
	return nil
}

func runSettings(ctx context.Context, a *app, _ []string) error {
	values, err := a.radio.Settings(ctx)
	if err != nil {
		return err
	}
	for _, setting := range telesto.Settings() {
		if v, ok := values[setting]; ok {
			fmt.Printf("0x%02X %-24s % X\n", uint8(setting), setting, v)
		}
	}
	return nil
}

func runSend(ctx context.Context, a *app, args []string) error {
	data, err := parsePayload(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := a.radio.SendData(ctx, data); err != nil {
		return err
	}
	fmt.Printf("sent %d bytes\n", len(data))
	return nil
}

func formatIndication(ind telesto.Indication) string {
	line := fmt.Sprintf("%s %-11s %-14s % X", ind.ReceivedAt.Format("15:04:05.000"), ind.Tag, ind.Name, ind.Frame.Payload)
	if ind.Frame.Opcode == telesto.IndDataReceived || ind.Frame.Opcode == telesto.IndDataRepeat {
		if data, err := telesto.ParseDataIndication(ind.Frame.Payload); err == nil {
			line += fmt.Sprintf(" (%q, %d dBm)", data.Data, data.RSSI)
		}
	}
	return line
}

func runListen(ctx context.Context, a *app, _ []string) error {
	events := a.radio.Events(64)
	for {
		select {
		case <-ctx.Done():
			if n := events.Dropped(); n > 0 {
				a.logger.Warn("Indications dropped", "count", n)
			}
			return nil
		case ind := <-events.C():
			fmt.Println(formatIndication(ind))
		}
	}
}

func runBridge(ctx context.Context, a *app, _ []string) error {
	cfg := a.cfg.MQTT
	if cfg.Broker == "" {
		return fmt.Errorf("no MQTT broker configured")
	}
	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = mqtt.DeviceIDFromPort(a.cfg.Serial.Port)
	}
	bridge := &mqtt.Bridge{
		BrokerURL: cfg.Broker,
		Username:  cfg.Username,
		Password:  cfg.Password,
		AppName:   cfg.AppName,
		RootTopic: cfg.RootTopic,
		DeviceID:  deviceID,
		Port:      a.cfg.Serial.Port,
		QoS:       byte(cfg.QoS),
		Buffer:    cfg.Buffer,
		Logger:    a.logger,
	}
	if err := bridge.Connect(); err != nil {
		return err
	}
	defer bridge.Disconnect()
	if err := bridge.HandleSends(cfg.Buffer); err != nil {
		return err
	}

	a.driver.Subscribe(&telesto.FanOutPublisher{
		Subscribers: []telesto.Observer{
			bridge,
			telesto.ObserverFunc(func(ind telesto.Indication) {
				a.logger.Debug("Indication", "tag", ind.Tag, "opcode", ind.Name, "payload", fmt.Sprintf("% X", ind.Frame.Payload))
			}),
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bridge.PublishIndications(gctx) })
	g.Go(func() error { return bridge.Forward(gctx, a.driver) })
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func runPorts(context.Context, *app, []string) error {
	ports, err := serial.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
