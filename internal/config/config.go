package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/exepirit/telesto-go/internal/log"
	"github.com/exepirit/telesto-go/pkg/telesto/frame"
	"github.com/exepirit/telesto-go/pkg/telesto/serial"
)

// Config is the telesto tool configuration file.
type Config struct {
	Serial SerialConfig `toml:"serial"`
	Driver DriverConfig `toml:"driver"`
	Log    LogConfig    `toml:"log"`
	MQTT   MQTTConfig   `toml:"mqtt"`
}

type SerialConfig struct {
	Port        string        `toml:"port"`
	Baud        int           `toml:"baud"`
	DataBits    int           `toml:"data_bits"`
	Parity      string        `toml:"parity"`
	StopBits    int           `toml:"stop_bits"`
	ReadTimeout time.Duration `toml:"read_timeout"`
}

type DriverConfig struct {
	Timeout      time.Duration `toml:"timeout"`
	FrameTimeout time.Duration `toml:"frame_timeout"`
	PollInterval time.Duration `toml:"poll_interval"`
	Checksum     string        `toml:"checksum"`
	Start        int           `toml:"start"`
	MaxPayload   int           `toml:"max_payload"`
	Capacity     int           `toml:"reassembler_capacity"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MQTTConfig struct {
	Broker    string `toml:"broker"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	AppName   string `toml:"app_name"`
	RootTopic string `toml:"root_topic"`
	DeviceID  string `toml:"device_id"`
	QoS       int    `toml:"qos"`
	Buffer    int    `toml:"buffer"`
}

func Default() Config {
	s := serial.DefaultConfig()
	return Config{
		Serial: SerialConfig{
			Baud:        s.BaudRate,
			DataBits:    s.DataBits,
			Parity:      s.Parity,
			StopBits:    s.StopBits,
			ReadTimeout: s.ReadTimeout,
		},
		Driver: DriverConfig{
			Timeout:      500 * time.Millisecond,
			FrameTimeout: 50 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			Checksum:     "xor",
			Start:        int(frame.DefaultStart),
			MaxPayload:   frame.DefaultMaxPayload,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MQTT: MQTTConfig{
			AppName:   "telesto",
			RootTopic: "telesto",
			Buffer:    16,
		},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if err := c.SerialConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("serial: %w", err))
	}
	if _, err := c.CodecConfig(); err != nil {
		errs = append(errs, fmt.Errorf("driver: %w", err))
	}
	if c.Driver.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("driver: timeout must be positive"))
	}
	if c.Driver.FrameTimeout <= 0 {
		errs = append(errs, fmt.Errorf("driver: frame_timeout must be positive"))
	}
	if c.Driver.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("driver: poll_interval must be positive"))
	}
	if c.Driver.Capacity < 0 {
		errs = append(errs, fmt.Errorf("driver: reassembler_capacity must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt: qos must be 0, 1 or 2"))
	}
	if strings.TrimSpace(c.MQTT.Broker) != "" && strings.TrimSpace(c.MQTT.RootTopic) == "" {
		errs = append(errs, fmt.Errorf("mqtt: root_topic missing"))
	}
	return errors.Join(errs...)
}

// SerialConfig converts the [serial] section.
func (c Config) SerialConfig() serial.Config {
	return serial.Config{
		BaudRate:    c.Serial.Baud,
		DataBits:    c.Serial.DataBits,
		Parity:      c.Serial.Parity,
		StopBits:    c.Serial.StopBits,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// CodecConfig converts the framing settings of the [driver] section.
func (c Config) CodecConfig() (frame.Config, error) {
	sum, err := frame.ChecksumByName(c.Driver.Checksum)
	if err != nil {
		return frame.Config{}, err
	}
	// frame.Config treats a zero marker as unset.
	if c.Driver.Start < 1 || c.Driver.Start > 0xFF {
		return frame.Config{}, fmt.Errorf("start marker %d out of range", c.Driver.Start)
	}
	if c.Driver.MaxPayload < 1 || c.Driver.MaxPayload > 0xFF {
		return frame.Config{}, fmt.Errorf("max_payload %d out of range", c.Driver.MaxPayload)
	}
	return frame.Config{
		Start:      byte(c.Driver.Start),
		MaxPayload: c.Driver.MaxPayload,
		Checksum:   sum,
	}, nil
}
