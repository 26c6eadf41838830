package bootloader

import (
	"context"

	"github.com/moffa90/go-spiboot/protocol"
)

// receive clocks frames in until one carries data. All-zero frames mean the
// host had nothing queued; frames with a zero length byte are discarded.
// On return rx holds the frame.
func (b *Bootloader) receive(ctx context.Context) (length int, cmd protocol.Command, err error) {
	b.setState(StateListening)
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		b.frame.clear()
		b.config.Sleep(b.config.PollDelay)
		if err := b.link.Exchange(b.frame.tx[:], b.frame.rx[:]); err != nil {
			return 0, 0, &TransportError{Err: err}
		}

		if b.frame.idle() {
			b.config.Sleep(b.config.IdleDelay)
			continue
		}

		length, cmd = protocol.Header(b.frame.rx[:])
		if length == 0 {
			b.logDebug("discarding frame without length", "command", cmd)
			continue
		}
		return length, cmd, nil
	}
}

// receiveChunk clocks frames in until a chunk frame arrives in rx.
func (b *Bootloader) receiveChunk(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.frame.clear()
		b.config.Sleep(b.config.ChunkPollDelay)
		if err := b.link.Exchange(b.frame.tx[:], b.frame.rx[:]); err != nil {
			return &TransportError{Err: err}
		}
		if !b.frame.idle() {
			return nil
		}
	}
}
