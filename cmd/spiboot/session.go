package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/moffa90/go-spiboot/bootloader"
	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/host"
	"github.com/moffa90/go-spiboot/internal/logging"
	"github.com/moffa90/go-spiboot/transport"
)

// session is an open connection to a device, real or emulated.
type session struct {
	prog   *host.Programmer
	layout flash.Layout
	log    *logging.Logger
	closer io.Closer
}

// openSession connects to the device named by the persistent flags.
func (o *options) openSession(ctx context.Context, out io.Writer, hostOpts ...host.Option) (*session, error) {
	log := logging.New(out, o.verbose)
	layout := flash.DefaultLayout()

	var (
		link   host.Link
		closer io.Closer
	)
	switch {
	case o.sim != "":
		dev, err := startEmulator(ctx, o.sim, layout, log, o.timeout)
		if err != nil {
			return nil, err
		}
		link, closer = dev.bus.Slave(), dev
	case o.port != "":
		s, err := transport.OpenSerial(o.port, o.baud, transport.WithReadTimeout(o.timeout))
		if err != nil {
			return nil, err
		}
		link, closer = s, s
	default:
		return nil, errors.New("no device: set --port or --sim")
	}

	hostOpts = append([]host.Option{
		host.WithLogger(log.With("host")),
		host.WithRetries(o.retries),
	}, hostOpts...)

	return &session{
		prog:   host.New(link, hostOpts...),
		layout: layout,
		log:    log,
		closer: closer,
	}, nil
}

func (s *session) Close() error {
	return s.closer.Close()
}

// emulator runs the bootloader state machine on a flash dump.
type emulator struct {
	path   string
	mem    *flash.Memory
	bus    *transport.Bus
	board  *emulatedBoard
	bl     *bootloader.Bootloader
	cancel context.CancelFunc
	done   chan error
}

func startEmulator(ctx context.Context, path string, layout flash.Layout, log *logging.Logger, timeout time.Duration) (*emulator, error) {
	mem, err := flash.OpenMemory(path, layout)
	if err != nil {
		return nil, err
	}

	e := &emulator{
		path:  path,
		mem:   mem,
		bus:   transport.NewBus(transport.WithSlaveTimeout(timeout)),
		board: &emulatedBoard{log: log.With("board")},
		done:  make(chan error, 1),
	}
	e.bl = bootloader.New(e.bus.Master(), mem, e.board,
		bootloader.WithLayout(layout),
		bootloader.WithLogger(log.With("device")),
		bootloader.WithoutDelays(),
	)

	ctx, e.cancel = context.WithCancel(ctx)
	go func() { e.done <- e.bl.Serve(ctx) }()
	return e, nil
}

// Close stops the device, waits for the command in flight and writes the
// flash contents back to the dump file.
func (e *emulator) Close() error {
	e.cancel()
	err := <-e.done
	_ = e.bus.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "emulated device")
	}
	return e.mem.SaveFile(e.path)
}

// emulatedBoard stands in for the board support package. Transfer records
// the entry descriptor instead of branching to it.
type emulatedBoard struct {
	log      *logging.Logger
	launched *flash.Entry
}

func (b *emulatedBoard) Deinit() error {
	b.log.Debug("peripherals released")
	return nil
}

func (b *emulatedBoard) Transfer(entry flash.Entry) error {
	b.launched = &entry
	b.log.Info("application started", "base", entry.Base, "sp", entry.StackPointer, "reset", entry.Reset)
	return nil
}

func (b *emulatedBoard) String() string {
	if b.launched == nil {
		return "no application started"
	}
	return fmt.Sprintf("started %s", b.launched)
}
