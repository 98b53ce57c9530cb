package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[serial]
port = "/dev/ttyUSB1"
baud = 9600
parity = "even"

[driver]
timeout = "1s"
frame_timeout = "20ms"
checksum = "crc32"

[log]
level = "debug"
format = "json"

[mqtt]
broker = "tcp://localhost:1883"
qos = 1
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := Default()
	want.Serial.Port = "/dev/ttyUSB1"
	want.Serial.Baud = 9600
	want.Serial.Parity = "even"
	want.Driver.Timeout = time.Second
	want.Driver.FrameTimeout = 20 * time.Millisecond
	want.Driver.Checksum = "crc32"
	want.Log = LogConfig{Level: "debug", Format: "json"}
	want.MQTT.Broker = "tcp://localhost:1883"
	want.MQTT.QoS = 1
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}

	codec, err := cfg.CodecConfig()
	if err != nil {
		t.Fatalf("CodecConfig() error: %v", err)
	}
	if codec.Checksum != frame.CRC32 || codec.Start != 0x02 || codec.MaxPayload != 224 {
		t.Errorf("codec config = %+v", codec)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "[serial]\nbaudrate = 9600\n", "serial.baudrate"},
		{"unknown section", "[radio]\nchannel = 3\n", "radio"},
		{"bad duration", "[driver]\ntimeout = \"soon\"\n", "parse"},
		{"zero timeout", "[driver]\ntimeout = \"0s\"\n", "timeout"},
		{"bad checksum", "[driver]\nchecksum = \"md5\"\n", "checksum"},
		{"start out of range", "[driver]\nstart = 300\n", "start"},
		{"zero start", "[driver]\nstart = 0\n", "start"},
		{"bad parity", "[serial]\nparity = \"x\"\n", "parity"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "level"},
		{"bad qos", "[mqtt]\nqos = 3\n", "qos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telesto.toml")
	if err := os.WriteFile(path, []byte("[serial]\nport = \"COM4\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Port != "COM4" || cfg.Serial.Baud != 115200 {
		t.Errorf("serial = %+v", cfg.Serial)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}
