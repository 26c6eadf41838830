package bootloader

import "github.com/moffa90/go-spiboot/protocol"

// framing owns the three exchange buffers of the protocol: rx receives
// command and chunk frames, tx carries what the bootloader clocks out and
// scratch receives the host's side of handshake exchanges so rx survives
// until the command has run.
type framing struct {
	rx      [protocol.FrameSize]byte
	tx      [protocol.FrameSize]byte
	scratch [protocol.FrameSize]byte
}

// clear zeroes all three buffers.
func (f *framing) clear() {
	f.rx = [protocol.FrameSize]byte{}
	f.tx = [protocol.FrameSize]byte{}
	f.scratch = [protocol.FrameSize]byte{}
}

// offer prepares tx to carry data followed by zeros.
func (f *framing) offer(data ...byte) {
	f.tx = [protocol.FrameSize]byte{}
	f.scratch = [protocol.FrameSize]byte{}
	copy(f.tx[:], data)
}

// idle reports whether nothing was clocked in.
func (f *framing) idle() bool {
	return f.rx == [protocol.FrameSize]byte{}
}
