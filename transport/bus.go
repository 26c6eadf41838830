package transport

import (
	"time"

	"github.com/pkg/errors"

	"github.com/moffa90/go-spiboot/protocol"
)

// Errors reported by Bus endpoints.
var (
	// ErrClosed is returned by exchanges on a closed Bus
	ErrClosed = errors.New("bus closed")

	// ErrTimeout is returned when the master never clocked a queued frame
	ErrTimeout = errors.New("no clock from master")
)

// Default Bus timings.
const (
	DefaultIdleWindow   = time.Millisecond
	DefaultSlaveTimeout = 2 * time.Second
)

// pending is a frame queued by the slave, waiting for a master clock.
type pending struct {
	tx    [protocol.FrameSize]byte
	reply chan [protocol.FrameSize]byte
}

// Bus is an in-process SPI link. The master end drives every exchange and
// never waits longer than the idle window; when no frame is queued it
// clocks in zeros, as a real slave with an empty transmit buffer would.
// The slave end queues one frame and blocks until the master clocks it,
// receiving what the master shifted out in the same exchange.
//
// This models a bootloader (master) talking to an SPI-slave bridge that the
// host feeds.
type Bus struct {
	queue        chan *pending
	done         chan struct{}
	idleWindow   time.Duration
	slaveTimeout time.Duration
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithIdleWindow sets how long a master exchange waits for a queued frame.
func WithIdleWindow(d time.Duration) BusOption {
	return func(b *Bus) {
		if d > 0 {
			b.idleWindow = d
		}
	}
}

// WithSlaveTimeout sets how long a slave exchange waits to be clocked.
func WithSlaveTimeout(d time.Duration) BusOption {
	return func(b *Bus) {
		if d > 0 {
			b.slaveTimeout = d
		}
	}
}

// NewBus creates an idle Bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		queue:        make(chan *pending),
		done:         make(chan struct{}),
		idleWindow:   DefaultIdleWindow,
		slaveTimeout: DefaultSlaveTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Close ends the Bus. Pending and later exchanges fail with ErrClosed.
func (b *Bus) Close() error {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	return nil
}

// Master returns the clock-driving end.
func (b *Bus) Master() *Master {
	return &Master{bus: b}
}

// Slave returns the clocked end.
func (b *Bus) Slave() *Slave {
	return &Slave{bus: b}
}

// Master is the clock-driving end of a Bus.
type Master struct {
	bus *Bus
}

// Exchange shifts tx out and fills rx with the slave's queued frame, or
// with zeros if none arrives within the idle window.
func (m *Master) Exchange(tx, rx []byte) error {
	if len(tx) != len(rx) {
		return errors.Errorf("exchange length mismatch: tx %d, rx %d", len(tx), len(rx))
	}

	timer := time.NewTimer(m.bus.idleWindow)
	defer timer.Stop()

	select {
	case <-m.bus.done:
		return ErrClosed
	case p := <-m.bus.queue:
		var out [protocol.FrameSize]byte
		copy(out[:], tx)
		p.reply <- out
		n := copy(rx, p.tx[:])
		clear(rx[n:])
		return nil
	case <-timer.C:
		clear(rx)
		return nil
	}
}

// Slave is the clocked end of a Bus.
type Slave struct {
	bus *Bus
}

// Exchange queues tx, zero padded to a full frame, and blocks until the
// master clocks it. rx receives what the master shifted out.
func (s *Slave) Exchange(tx, rx []byte) error {
	if len(tx) > protocol.FrameSize {
		return errors.Errorf("frame of %d bytes exceeds %d", len(tx), protocol.FrameSize)
	}

	p := &pending{reply: make(chan [protocol.FrameSize]byte, 1)}
	copy(p.tx[:], tx)

	timer := time.NewTimer(s.bus.slaveTimeout)
	defer timer.Stop()

	select {
	case <-s.bus.done:
		return ErrClosed
	case s.bus.queue <- p:
	case <-timer.C:
		return errors.Wrapf(ErrTimeout, "after %v", s.bus.slaveTimeout)
	}

	out := <-p.reply
	n := copy(rx, out[:])
	clear(rx[n:])
	return nil
}
