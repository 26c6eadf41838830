package bootloader

import (
	"context"

	"github.com/moffa90/go-spiboot/protocol"
)

// sendAck offers the ACK marker until the host clocks in WaitForAck.
func (b *Bootloader) sendAck(ctx context.Context) error {
	return b.handshake(ctx, "ACK", protocol.Ack)
}

// sendNack offers the NACK marker until the host clocks in WaitForAck.
func (b *Bootloader) sendNack(ctx context.Context) error {
	return b.handshake(ctx, "NACK", protocol.Nack)
}

// handshake repeats an exchange carrying marker as its first byte until the
// host's side of the same exchange starts with WaitForAck. The host thereby
// collects the marker in the exchange that tells us it was ready for it.
func (b *Bootloader) handshake(ctx context.Context, response string, marker byte) error {
	var lastErr error
	for attempt := 0; attempt < b.config.HandshakeAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.frame.offer(marker)
		b.config.Sleep(b.config.HandshakeDelay)
		err := b.link.Exchange(b.frame.tx[:], b.frame.scratch[:])
		b.config.Sleep(b.config.HandshakeDelay)

		if err != nil {
			lastErr = err
			continue
		}
		if b.frame.scratch[0] == protocol.WaitForAck {
			return nil
		}
	}

	return &HandshakeTimeoutError{
		Response: response,
		Attempts: b.config.HandshakeAttempts,
		Err:      lastErr,
	}
}

// sendVersion offers the version record until the host clocks in Repeated.
func (b *Bootloader) sendVersion(ctx context.Context) error {
	v, err := b.store.Version()
	if err != nil {
		return &FlashError{Operation: "read", Address: b.config.Layout.VersionAddr, Err: err}
	}
	b.logDebug("sending version", "version", v.String())

	var lastErr error
	for attempt := 0; attempt < b.config.VersionAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.frame.offer(v.Major, v.Minor, v.Patch)
		err := b.link.Exchange(b.frame.tx[:], b.frame.scratch[:])
		if err == nil && b.frame.scratch[0] == protocol.Repeated {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		b.config.Sleep(b.config.VersionDelay)
	}

	return &HandshakeTimeoutError{
		Response: "version",
		Attempts: b.config.VersionAttempts,
		Err:      lastErr,
	}
}
