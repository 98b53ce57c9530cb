package serial

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/exepirit/telesto-go/pkg/telesto"
	"go.bug.st/serial"
)

// Config describes the UART link to the module.
type Config struct {
	BaudRate    int
	DataBits    int
	Parity      string
	StopBits    int
	ReadTimeout time.Duration
}

// DefaultConfig is the factory UART setting of Telesto modules, 115200 8N1.
func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		DataBits:    8,
		Parity:      "none",
		StopBits:    1,
		ReadTimeout: 100 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid baud rate %d", c.BaudRate))
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		errs = append(errs, fmt.Errorf("invalid data bits %d", c.DataBits))
	}
	if _, err := ParseParity(c.Parity); err != nil {
		errs = append(errs, err)
	}
	if _, err := stopBits(c.StopBits); err != nil {
		errs = append(errs, err)
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid read timeout %s", c.ReadTimeout))
	}
	return errors.Join(errs...)
}

// Mode converts the config to the port mode of go.bug.st/serial.
func (c Config) Mode() (*serial.Mode, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	parity, _ := ParseParity(c.Parity)
	stop, _ := stopBits(c.StopBits)
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   parity,
		StopBits: stop,
	}, nil
}

// ParseParity accepts none, odd, even, mark and space, or their initials.
func ParseParity(raw string) (serial.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "n", "none":
		return serial.NoParity, nil
	case "o", "odd":
		return serial.OddParity, nil
	case "e", "even":
		return serial.EvenParity, nil
	case "m", "mark":
		return serial.MarkParity, nil
	case "s", "space":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("invalid parity %q", raw)
	}
}

func stopBits(n int) (serial.StopBits, error) {
	switch n {
	case 0, 1:
		return serial.OneStopBit, nil
	case 2:
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("invalid stop bits %d", n)
	}
}

// Open opens the serial port and wraps it into a stream transport. Bytes
// already waiting in the OS input buffer are discarded.
func Open(port string, cfg Config, logger *slog.Logger) (*telesto.StreamTransport, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, fmt.Errorf("serial config: %w", err)
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to flush input: %w", err)
	}

	if logger != nil {
		logger = logger.With("port", port)
		logger.Debug("Serial port opened", "baud", cfg.BaudRate, "parity", cfg.Parity)
	}
	return telesto.NewStreamTransport(p, logger), nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
