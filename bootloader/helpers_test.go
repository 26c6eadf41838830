package bootloader

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/protocol"
)

// maxClocked bounds the history kept by scriptedHost.
const maxClocked = 64

var (
	errBus        = errors.New("bus fault")
	errScriptDone = errors.New("host script exhausted")
)

// scriptedHost plays the host side of the link from a fixed script. Each
// exchange clocks in the next scripted frame; once the script runs out the
// host sends zeros for maxIdle exchanges and then fails.
type scriptedHost struct {
	mu      sync.Mutex
	script  [][]byte
	clocked [][]byte
	idle    int
	maxIdle int
	failAt  int
	n       int
}

func newScriptedHost(frames ...[]byte) *scriptedHost {
	return &scriptedHost{script: frames, maxIdle: 50}
}

func (h *scriptedHost) push(frames ...[]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.script = append(h.script, frames...)
	h.idle = 0
}

func (h *scriptedHost) Exchange(tx, rx []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.n++
	if len(h.clocked) == maxClocked {
		h.clocked = h.clocked[1:]
	}
	h.clocked = append(h.clocked, append([]byte(nil), tx...))
	if h.failAt == h.n {
		return errBus
	}

	for i := range rx {
		rx[i] = 0
	}
	if len(h.script) == 0 {
		h.idle++
		if h.idle > h.maxIdle {
			return errScriptDone
		}
		return nil
	}
	copy(rx, h.script[0])
	h.script = h.script[1:]
	return nil
}

func (h *scriptedHost) remaining() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.script)
}

func (h *scriptedHost) exchanges() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// last returns what the bootloader clocked out in the most recent exchange.
func (h *scriptedHost) last() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clocked[len(h.clocked)-1]
}

// fakePlatform records launches instead of jumping.
type fakePlatform struct {
	deinitErr   error
	transferErr error
	deinits     int
	entries     []flash.Entry
}

func (p *fakePlatform) Deinit() error {
	p.deinits++
	return p.deinitErr
}

func (p *fakePlatform) Transfer(entry flash.Entry) error {
	if p.transferErr != nil {
		return p.transferErr
	}
	p.entries = append(p.entries, entry)
	return nil
}

type testRig struct {
	bl       *Bootloader
	mem      *flash.Memory
	host     *scriptedHost
	platform *fakePlatform
	progress []Progress
}

func newTestRig(t *testing.T, host *scriptedHost, opts ...Option) *testRig {
	t.Helper()
	rig := &testRig{
		mem:      flash.NewMemory(flash.DefaultLayout()),
		host:     host,
		platform: &fakePlatform{},
	}
	opts = append([]Option{
		WithoutDelays(),
		WithHandshake(5, 0),
		WithVersionRetries(5, 0),
		WithProgressCallback(func(p Progress) {
			rig.progress = append(rig.progress, p)
		}),
	}, opts...)
	rig.bl = New(host, rig.mem, rig.platform, opts...)
	return rig
}

func (r *testRig) phases(phase string) []Progress {
	var out []Progress
	for _, p := range r.progress {
		if p.Phase == phase {
			out = append(out, p)
		}
	}
	return out
}

func waitForAck() []byte {
	return protocol.MarkerFrame(protocol.WaitForAck)
}

func repeated() []byte {
	return protocol.MarkerFrame(protocol.Repeated)
}

// pattern returns n bytes that differ from their neighbours and from 0xFF.
func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 1)
	}
	return data
}

// writeScript returns the host frames of a complete WriteProgram transfer.
func writeScript(t *testing.T, req protocol.ProgramRequest, image []byte) [][]byte {
	t.Helper()
	cmd, err := protocol.BuildWriteProgramCmd(req)
	require.NoError(t, err)

	frames := [][]byte{cmd, waitForAck()}
	for off := 0; off < len(image); off += protocol.ChunkSize {
		end := off + protocol.ChunkSize
		if end > len(image) {
			end = len(image)
		}
		chunk, err := protocol.BuildChunk(image[off:end])
		require.NoError(t, err)
		frames = append(frames, chunk, waitForAck())
	}
	return frames
}

// installApp pokes a minimal vector table at base and records it as the
// last flashed image.
func installApp(t *testing.T, mem *flash.Memory, base, sp, reset uint32) {
	t.Helper()
	var vectors [8]byte
	binary.LittleEndian.PutUint32(vectors[0:], sp)
	binary.LittleEndian.PutUint32(vectors[4:], reset)
	require.NoError(t, mem.Poke(base, vectors[:]))

	var last [4]byte
	binary.LittleEndian.PutUint32(last[:], base)
	require.NoError(t, mem.Poke(flash.DefaultLastFlashedAddr, last[:]))
}
