package bootloader

import (
	"context"
	"time"

	"github.com/moffa90/go-spiboot/protocol"
)

// transfer tracks an image write in progress.
type transfer struct {
	req         protocol.ProgramRequest
	address     uint32
	outstanding uint32
	chunk       int
	mismatches  int
	startTime   time.Time
}

func (x *transfer) progress(phase string) Progress {
	return Progress{
		Phase:        phase,
		Chunk:        x.chunk,
		TotalChunks:  x.req.Chunks(),
		BytesWritten: x.req.Size - x.outstanding,
		Outstanding:  x.outstanding,
		Mismatches:   x.mismatches,
		ElapsedTime:  time.Since(x.startTime),
	}
}

// writeProgram runs a WriteProgram request: validate the window, receive
// and program every chunk, record the image address, then commit the
// version or, on failure, erase what was written.
func (b *Bootloader) writeProgram(ctx context.Context, req protocol.ProgramRequest) error {
	layout := b.config.Layout
	if req.Size == 0 || !layout.InApplication(req.Address, req.Size) {
		return &AddressRangeError{
			Operation: "write",
			Address:   req.Address,
			Size:      req.Size,
			Min:       layout.ApplicationStart,
			Max:       layout.ApplicationEnd,
		}
	}

	b.logInfo("writing program",
		"address", req.Address,
		"size", req.Size,
		"version", req.Version.String(),
		"chunks", req.Chunks(),
	)

	if err := b.dev.Unlock(); err != nil {
		return &FlashError{Operation: "unlock", Err: err}
	}

	x := &transfer{
		req:         req,
		address:     req.Address,
		outstanding: req.Size,
		startTime:   time.Now(),
	}
	err := b.receiveImage(ctx, x)

	if recErr := b.recordLastFlashed(req.Address); recErr != nil && err == nil {
		err = recErr
	}

	if err == nil {
		if err = b.commitVersion(req.Version); err == nil {
			b.reportProgress(x.progress(PhaseCommitted))
			b.logInfo("program written", "version", req.Version.String(), "elapsed", time.Since(x.startTime))
		}
	} else {
		b.logError("program write failed", "outstanding", x.outstanding, "error", err)
		if nackErr := b.sendNack(ctx); nackErr != nil {
			b.logDebug("failure NACK not collected", "error", nackErr)
		}
		if recoverErr := b.recoveryErase(); recoverErr != nil {
			b.logError("recovery erase failed", "error", recoverErr)
		}
		b.reportProgress(x.progress(PhaseFailed))
	}

	if lockErr := b.lock(); err == nil {
		err = lockErr
	}
	return err
}

// receiveImage runs the chunk loop until every declared byte was received.
// A chunk with a bad checksum is NACKed and stays outstanding. A chunk that
// fails to program stops programming but the remaining chunks are still
// collected so the host finishes its transfer; the program error is
// returned at the end.
func (b *Bootloader) receiveImage(ctx context.Context, x *transfer) error {
	var programErr error

	for x.outstanding > 0 {
		n := x.outstanding
		if n > protocol.ChunkSize {
			n = protocol.ChunkSize
		}

		if err := b.receiveChunk(ctx); err != nil {
			return err
		}

		if !protocol.ValidateChunk(b.frame.rx[:], int(n)) {
			x.mismatches++
			b.logDebug("chunk checksum mismatch", "chunk", x.chunk, "mismatches", x.mismatches)
			if err := b.nackChunk(ctx); err != nil {
				return err
			}
			b.reportProgress(x.progress(PhaseResend))
			if x.mismatches >= b.config.StuckChunkLimit {
				return &StuckError{Operation: "chunk receive", Attempts: x.mismatches, Err: ErrChecksumMismatch}
			}
			continue
		}
		x.mismatches = 0

		if err := b.sendAck(ctx); err != nil {
			return err
		}

		if programErr == nil {
			programErr = b.programChunk(x.address, b.frame.rx[:n])
		}
		x.address += n
		x.outstanding -= n
		x.chunk++
		b.reportProgress(x.progress(PhaseReceiving))
	}

	return programErr
}

// nackChunk tries up to NackAttempts NACK handshakes for a bad chunk. The
// chunk stays outstanding whether or not the host collected the NACK.
func (b *Bootloader) nackChunk(ctx context.Context) error {
	for attempt := 0; attempt < b.config.NackAttempts; attempt++ {
		err := b.sendNack(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logDebug("chunk NACK not collected", "attempt", attempt+1, "error", err)
	}
	return nil
}

// programChunk programs data byte by byte from addr.
func (b *Bootloader) programChunk(addr uint32, data []byte) error {
	for i, v := range data {
		if err := b.dev.ProgramByte(addr+uint32(i), v); err != nil {
			return &FlashError{Operation: "program", Address: addr + uint32(i), Err: err}
		}
	}
	return nil
}

// recordLastFlashed programs the last-flashed-address record and reads it back.
func (b *Bootloader) recordLastFlashed(addr uint32) error {
	at := b.config.Layout.LastFlashedAddr
	if err := b.store.ProgramLastFlashed(addr); err != nil {
		return &FlashError{Operation: "program", Address: at, Err: err}
	}
	got, err := b.store.LastFlashed()
	if err != nil {
		return &FlashError{Operation: "read", Address: at, Err: err}
	}
	if got != addr {
		b.logError("last flashed record not erased", "want", addr, "got", got)
		return &FlashError{Operation: "verify", Address: at, Err: ErrReadback}
	}
	return nil
}

// commitVersion writes the version record, retrying up to CommitAttempts
// times, and reads it back.
func (b *Bootloader) commitVersion(v protocol.Version) error {
	var err error
	for attempt := 0; attempt < b.config.CommitAttempts; attempt++ {
		if err = b.store.ProgramVersion(v); err == nil {
			return b.verifyVersion(v)
		}
	}
	b.logError("version commit stuck", "attempts", b.config.CommitAttempts, "error", err)
	return &StuckError{Operation: "version commit", Attempts: b.config.CommitAttempts, Err: err}
}

func (b *Bootloader) verifyVersion(v protocol.Version) error {
	at := b.config.Layout.VersionAddr
	got, err := b.store.Version()
	if err != nil {
		return &FlashError{Operation: "read", Address: at, Err: err}
	}
	if got != v {
		b.logError("version record not erased", "want", v.String(), "got", got.String())
		return &FlashError{Operation: "verify", Address: at, Err: ErrReadback}
	}
	return nil
}
