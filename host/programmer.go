package host

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/moffa90/go-spiboot/protocol"
)

// Link performs one blocking full-duplex exchange with the device. The
// host side is clocked by the device: tx is what the device will read on
// its next exchange, rx what it wrote during that exchange.
type Link interface {
	Exchange(tx, rx []byte) error
}

// Programmer drives the bootloader's command protocol from the host side:
// it sends command frames, collects ACK/NACK responses, streams image
// chunks and reads the version record.
//
// Programmer is not safe for concurrent use; the protocol is strictly one
// command at a time.
type Programmer struct {
	link   Link
	config Config
	rx     [protocol.FrameSize]byte
}

// New creates a new Programmer with the given link and options.
//
// Example:
//
//	link, _ := transport.OpenSerial("/dev/ttyUSB0", 115200)
//	prog := host.New(link,
//	    host.WithProgressCallback(progressFunc),
//	    host.WithRetries(5),
//	)
func New(link Link, opts ...Option) *Programmer {
	if link == nil {
		panic("link cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		link:   link,
		config: cfg,
	}
}

// GetVersion reads the version record of the installed application.
func (p *Programmer) GetVersion(ctx context.Context) (protocol.Version, error) {
	if err := p.sendCommand(ctx, "get version", protocol.BuildGetVersionCmd()); err != nil {
		return protocol.Version{}, err
	}

	rx, err := p.exchange(ctx, []byte{protocol.Repeated})
	if err != nil {
		return protocol.Version{}, errors.Wrap(err, "read version")
	}
	v, err := protocol.ParseVersionResponse(rx)
	if err != nil {
		return protocol.Version{}, err
	}

	p.logDebug("version read", "version", v.String())
	return v, nil
}

// EraseSectors erases count sectors starting at start.
func (p *Programmer) EraseSectors(ctx context.Context, start, count byte) error {
	p.logInfo("erasing sectors", "start", start, "count", count)
	return p.sendCommand(ctx, "erase sectors", protocol.BuildEraseSectorsCmd(start, count))
}

// MassErase erases the whole application area including the metadata block.
func (p *Programmer) MassErase(ctx context.Context) error {
	p.logInfo("mass erase")
	return p.sendCommand(ctx, "mass erase", protocol.BuildMassEraseCmd())
}

// WriteProgram writes image to flash at address and commits version once
// every chunk was accepted. The target region must have been erased.
//
// With VerifyAfterWrite the version record is read back afterwards: the
// device only commits it when every byte programmed, and erases the image
// otherwise.
//
// Example:
//
//	img, _ := image.Load("app.hex")
//	err := prog.WriteProgram(ctx, img.Data, protocol.Version{Major: 1}, img.Base)
func (p *Programmer) WriteProgram(ctx context.Context, image []byte, version protocol.Version, address uint32) error {
	req := protocol.ProgramRequest{
		Version: version,
		Address: address,
		Size:    uint32(len(image)),
	}
	cmd, err := protocol.BuildWriteProgramCmd(req)
	if err != nil {
		return err
	}

	startTime := time.Now()
	total := req.Chunks()
	p.logInfo("writing program",
		"address", address,
		"size", len(image),
		"version", version.String(),
		"chunks", total,
	)

	if err := p.sendCommand(ctx, "write program", cmd); err != nil {
		return err
	}

	progress := Progress{Phase: PhaseWriting, TotalChunks: total}
	for off := 0; off < len(image); off += protocol.ChunkSize {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "cancelled")
		}

		end := off + protocol.ChunkSize
		if end > len(image) {
			end = len(image)
		}
		chunk, err := protocol.BuildChunk(image[off:end])
		if err != nil {
			return err
		}

		resends, err := p.send(ctx, "write chunk", chunk)
		if err != nil {
			return errors.Wrapf(err, "chunk %d/%d at 0x%08X", progress.Chunk+1, total, address+uint32(off))
		}

		progress.Chunk++
		progress.BytesWritten = end
		progress.Resends += resends
		// Report progress (0% to 95%)
		progress.Percentage = float64(end) / float64(len(image)) * 95
		progress.ElapsedTime = time.Since(startTime)
		p.reportProgress(progress)
	}

	if p.config.VerifyAfterWrite {
		progress.Phase = PhaseVerifying
		progress.Percentage = 95
		progress.ElapsedTime = time.Since(startTime)
		p.reportProgress(progress)

		got, err := p.GetVersion(ctx)
		if err != nil {
			return errors.Wrap(err, "verify write")
		}
		if got != version {
			return &VerificationError{Expected: version, Actual: got}
		}
	}

	progress.Phase = PhaseComplete
	progress.Percentage = 100
	progress.ElapsedTime = time.Since(startTime)
	p.reportProgress(progress)

	p.logInfo("program written",
		"chunks", total,
		"bytes", len(image),
		"resends", progress.Resends,
		"elapsed", progress.ElapsedTime.String(),
	)
	return nil
}

// JumpToAddress asks the bootloader to launch the image based at address.
// The boot flag is left unchanged.
func (p *Programmer) JumpToAddress(ctx context.Context, address uint32) error {
	p.logInfo("jump to address", "address", address)
	cmd := protocol.BuildJumpToAddressCmd(protocol.JumpRequest{
		Address:  address,
		NextBoot: protocol.BootNeeded,
	})
	return p.sendCommand(ctx, "jump to address", cmd)
}

// JumpToApplication asks the bootloader to launch the last flashed image.
// nextBoot is persisted to the boot flag first if it is BootNeeded or
// BootNotNeeded.
func (p *Programmer) JumpToApplication(ctx context.Context, nextBoot byte) error {
	p.logInfo("jump to application", "next_boot", nextBoot)
	cmd := protocol.BuildJumpToAddressCmd(protocol.JumpRequest{
		Address:  protocol.JumpToLastFlashed,
		NextBoot: nextBoot,
	})
	return p.sendCommand(ctx, "jump to application", cmd)
}

// sendCommand sends a command frame until the device ACKs it.
func (p *Programmer) sendCommand(ctx context.Context, op string, frame []byte) error {
	_, err := p.send(ctx, op, frame)
	return err
}

// send writes frame and collects the device's response, resending on NACK
// up to Retries times. It returns the number of resends.
func (p *Programmer) send(ctx context.Context, op string, frame []byte) (int, error) {
	attempts := p.config.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			p.logDebug("NACK received, resending", "operation", op, "attempt", attempt+1)
		}

		if _, err := p.exchange(ctx, frame); err != nil {
			return attempt, errors.Wrap(err, op)
		}

		ack, err := p.awaitResponse(ctx, op)
		if err != nil {
			return attempt, err
		}
		if ack {
			return attempt, nil
		}
	}

	p.logError("frame rejected", "operation", op, "attempts", attempts)
	return attempts - 1, &NackError{Operation: op, Attempts: attempts}
}

// awaitResponse requests the pending ACK or NACK. It reports true for ACK.
func (p *Programmer) awaitResponse(ctx context.Context, op string) (bool, error) {
	var last byte
	for attempt := 0; attempt < p.config.AckAttempts; attempt++ {
		rx, err := p.exchange(ctx, []byte{protocol.WaitForAck})
		if err != nil {
			return false, errors.Wrapf(err, "%s: request ACK", op)
		}

		switch rx[0] {
		case protocol.Ack:
			return true, nil
		case protocol.Nack:
			return false, nil
		}
		last = rx[0]
		p.logDebug("unexpected response", "operation", op, "reply", last, "attempt", attempt+1)
	}

	return false, &NoResponseError{Operation: op, Attempts: p.config.AckAttempts, Last: last}
}

// exchange sends one frame and returns what the device clocked out while
// taking it. The returned slice is valid until the next exchange.
func (p *Programmer) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "cancelled")
	}

	if err := p.link.Exchange(frame, p.rx[:]); err != nil {
		return nil, err
	}

	// Apply inter-command delay if configured
	if p.config.CommandDelay > 0 {
		time.Sleep(p.config.CommandDelay)
	}
	return p.rx[:], nil
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
