package bootloader

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/protocol"
)

// State is a position in the command processing state machine.
type State int32

const (
	// StateIdle is the state before the boot decision and between commands
	StateIdle State = iota

	// StateListening waits for a non-empty frame
	StateListening

	// StateValidating checks the frame's checksum
	StateValidating

	// StateAcknowledging sends the ACK for a valid frame
	StateAcknowledging

	// StateRejecting sends the NACK for a corrupt frame
	StateRejecting

	// StateExecuting runs the command handler
	StateExecuting

	// StateTerminated means control was handed to an application
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateValidating:
		return "validating"
	case StateAcknowledging:
		return "acknowledging"
	case StateRejecting:
		return "rejecting"
	case StateExecuting:
		return "executing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Bootloader is the device side of the update protocol. It owns the framing
// buffers, talks to the host through a Transport, mutates flash through a
// flash.Device and leaves through a Platform.
//
// A Bootloader processes one command at a time and must not be driven from
// more than one goroutine. State and Terminated may be called concurrently.
type Bootloader struct {
	link     Transport
	dev      flash.Device
	store    *flash.Store
	platform Platform
	config   Config

	frame framing
	state atomic.Int32
}

// New creates a Bootloader.
//
// Example:
//
//	mem := flash.NewMemory(flash.DefaultLayout())
//	bl := bootloader.New(link, mem, board,
//	    bootloader.WithLogger(logger),
//	)
//	err := bl.Boot(ctx)
func New(link Transport, dev flash.Device, platform Platform, opts ...Option) *Bootloader {
	if link == nil {
		panic("transport cannot be nil")
	}
	if dev == nil {
		panic("flash device cannot be nil")
	}
	if platform == nil {
		panic("platform cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Bootloader{
		link:     link,
		dev:      dev,
		store:    flash.NewStore(dev, cfg.Layout),
		platform: platform,
		config:   cfg,
	}
}

// State returns the current state.
func (b *Bootloader) State() State {
	return State(b.state.Load())
}

// Terminated reports whether control has been handed to an application.
func (b *Bootloader) Terminated() bool {
	return b.State() == StateTerminated
}

func (b *Bootloader) setState(s State) {
	if b.State() == StateTerminated {
		return
	}
	b.state.Store(int32(s))
}

// Boot makes the reset-time decision. If the boot flag reads BootNeeded the
// command protocol runs for one command, otherwise the last flashed
// application is launched without touching the flag.
func (b *Bootloader) Boot(ctx context.Context) error {
	_, err := b.boot(ctx)
	return err
}

// boot is Boot that also reports whether the protocol path was taken.
func (b *Bootloader) boot(ctx context.Context) (protocolRun bool, err error) {
	flag, err := b.store.BootFlag()
	if err != nil {
		return false, &FlashError{Operation: "read", Address: b.config.Layout.BootFlagAddr, Err: err}
	}

	if flag == protocol.BootNeeded {
		b.logInfo("bootloader started")
		return true, b.Run(ctx)
	}

	b.logDebug("boot not needed", "flag", flag)
	return false, b.launchUnconditional()
}

// Run listens for one non-empty frame and processes it: validate, ACK or
// NACK, execute. Empty frames keep it listening. It returns once that frame
// has been handled, whatever the outcome, so each invocation serves exactly
// one command.
//
// The returned error is the outcome of the command: ErrChecksumMismatch for
// a rejected frame, a *HandshakeTimeoutError when the host never collected
// the ACK, or the handler's error.
func (b *Bootloader) Run(ctx context.Context) error {
	if b.Terminated() {
		return nil
	}
	defer b.setState(StateIdle)

	length, cmd, err := b.receive(ctx)
	if err != nil {
		return err
	}

	b.setState(StateValidating)
	if !protocol.Validate(b.frame.rx[:], length) {
		b.logError("checksum mismatch", "length", length, "command", cmd)
		b.setState(StateRejecting)
		if err := b.sendNack(ctx); err != nil {
			b.logError("NACK not collected", "error", err)
		}
		return ErrChecksumMismatch
	}

	b.setState(StateAcknowledging)
	if err := b.sendAck(ctx); err != nil {
		b.logError("ACK not collected", "command", cmd, "error", err)
		return err
	}

	b.setState(StateExecuting)
	b.logInfo("command received", "command", cmd)
	if err := b.dispatch(ctx, cmd); err != nil {
		b.logError("command failed", "command", cmd, "error", err)
		return err
	}
	return nil
}

// Serve repeats the boot decision until an application takes over or ctx
// ends, the way firmware calls the bootloader from its main loop. If the
// fast-boot launch fails the device stays in the command protocol.
func (b *Bootloader) Serve(ctx context.Context) error {
	step := b.boot
	for !b.Terminated() {
		if err := ctx.Err(); err != nil {
			return err
		}

		protocolRun, err := step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case !protocolRun:
			b.logError("launch failed, staying in bootloader", "error", err)
			step = b.runOnly
		default:
			b.logDebug("command ended with error", "error", err)
		}
	}
	return nil
}

func (b *Bootloader) runOnly(ctx context.Context) (bool, error) {
	return true, b.Run(ctx)
}

// dispatch decodes the validated frame in rx and runs its handler.
func (b *Bootloader) dispatch(ctx context.Context, cmd protocol.Command) error {
	frame := b.frame.rx[:]

	switch cmd {
	case protocol.CmdGetVersion:
		return b.sendVersion(ctx)

	case protocol.CmdEraseSectors:
		req, err := protocol.ParseEraseRequest(frame)
		if err != nil {
			return err
		}
		return b.erase(req)

	case protocol.CmdWriteProgram:
		req, err := protocol.ParseProgramRequest(frame)
		if err != nil {
			return err
		}
		return b.writeProgram(ctx, req)

	case protocol.CmdJumpToAddress:
		req, err := protocol.ParseJumpRequest(frame)
		if err != nil {
			return err
		}
		return b.jump(req)

	default:
		return &protocol.CommandError{Code: byte(cmd)}
	}
}

// reportProgress calls the progress callback if configured.
func (b *Bootloader) reportProgress(progress Progress) {
	if b.config.ProgressCallback != nil {
		b.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (b *Bootloader) logDebug(msg string, keysAndValues ...interface{}) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (b *Bootloader) logInfo(msg string, keysAndValues ...interface{}) {
	if b.config.Logger != nil {
		b.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (b *Bootloader) logError(msg string, keysAndValues ...interface{}) {
	if b.config.Logger != nil {
		b.config.Logger.Error(msg, keysAndValues...)
	}
}
