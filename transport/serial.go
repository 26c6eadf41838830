package transport

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/moffa90/go-spiboot/protocol"
)

// DefaultBaudRate is the USB-serial bridge speed.
const DefaultBaudRate = 115200

// DefaultReadTimeout bounds the wait for the bridge's reply frame.
const DefaultReadTimeout = 2 * time.Second

// port is the subset of serial.Port the bridge uses.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Serial talks to an SPI-slave bridge over a serial port. Every exchange
// writes one full frame for the bridge to load into its SPI transmit buffer
// and reads back the full frame the bootloader clocked out while taking it.
type Serial struct {
	port        port
	readTimeout time.Duration
}

// SerialOption configures a Serial link.
type SerialOption func(*Serial)

// WithReadTimeout sets how long an exchange waits for the reply frame.
func WithReadTimeout(d time.Duration) SerialOption {
	return func(s *Serial) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// OpenSerial opens the bridge at name, 8N1 at baud.
func OpenSerial(name string, baud int, opts ...SerialOption) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}

	s := newSerial(p, opts...)
	if err := p.SetReadTimeout(s.readTimeout); err != nil {
		_ = p.Close()
		return nil, errors.Wrapf(err, "set read timeout on %s", name)
	}
	return s, nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	return ports, errors.Wrap(err, "list serial ports")
}

func newSerial(p port, opts ...SerialOption) *Serial {
	s := &Serial{port: p, readTimeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange sends tx, zero padded to a full frame, and fills rx with the
// frame clocked back.
func (s *Serial) Exchange(tx, rx []byte) error {
	if len(tx) > protocol.FrameSize {
		return errors.Errorf("frame of %d bytes exceeds %d", len(tx), protocol.FrameSize)
	}

	var out [protocol.FrameSize]byte
	copy(out[:], tx)

	if err := s.port.ResetInputBuffer(); err != nil {
		return errors.Wrap(err, "reset input buffer")
	}
	if _, err := s.port.Write(out[:]); err != nil {
		return errors.Wrap(err, "write frame")
	}

	var in [protocol.FrameSize]byte
	if err := s.readFull(in[:]); err != nil {
		return err
	}
	n := copy(rx, in[:])
	clear(rx[n:])
	return nil
}

// readFull reads len(buf) bytes. A read returning nothing means the port's
// read timeout passed.
func (s *Serial) readFull(buf []byte) error {
	deadline := time.Now().Add(s.readTimeout)
	for got := 0; got < len(buf); {
		n, err := s.port.Read(buf[got:])
		if err != nil {
			return errors.Wrapf(err, "read frame after %d bytes", got)
		}
		got += n
		if n == 0 && time.Now().After(deadline) {
			return errors.Errorf("read frame: timeout after %d of %d bytes", got, len(buf))
		}
	}
	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error {
	return errors.Wrap(s.port.Close(), "close serial port")
}
