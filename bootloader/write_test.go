package bootloader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/protocol"
)

var testVersion = protocol.Version{Major: 1, Minor: 2, Patch: 3}

func TestWriteProgram(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantChunks int
	}{
		{"single byte", 1, 1},
		{"exactly one chunk", 252, 1},
		{"chunk and remainder", 300, 2},
		{"several chunks", 1000, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := pattern(tt.size)
			req := protocol.ProgramRequest{
				Version: testVersion,
				Address: flash.DefaultApplicationStart,
				Size:    uint32(tt.size),
			}
			host := newScriptedHost(writeScript(t, req, image)...)
			rig := newTestRig(t, host)

			require.NoError(t, rig.bl.Run(context.Background()))

			assert.Equal(t, image, rig.mem.Bytes(req.Address, tt.size))
			assert.Equal(t, []byte{flash.ErasedByte}, rig.mem.Bytes(req.Address+uint32(tt.size), 1))

			store := flash.NewStore(rig.mem, flash.DefaultLayout())
			last, err := store.LastFlashed()
			require.NoError(t, err)
			assert.Equal(t, req.Address, last)

			v, err := store.Version()
			require.NoError(t, err)
			assert.Equal(t, testVersion, v)

			received := rig.phases(PhaseReceiving)
			require.Len(t, received, tt.wantChunks)
			assert.Equal(t, tt.wantChunks, received[0].TotalChunks)
			assert.Equal(t, uint32(0), received[len(received)-1].Outstanding)
			assert.Equal(t, uint32(tt.size), received[len(received)-1].BytesWritten)
			assert.Len(t, rig.phases(PhaseCommitted), 1)

			assert.True(t, rig.mem.Locked())
			assert.Equal(t, 0, host.remaining())
			assert.Equal(t, 0, rig.mem.Calls(flash.OpErase))
		})
	}
}

func TestWriteProgramChunkSizes(t *testing.T) {
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    300,
	}
	host := newScriptedHost(writeScript(t, req, pattern(300))...)
	rig := newTestRig(t, host)

	require.NoError(t, rig.bl.Run(context.Background()))

	received := rig.phases(PhaseReceiving)
	require.Len(t, received, 2)
	assert.Equal(t, uint32(252), received[0].BytesWritten)
	assert.Equal(t, uint32(48), received[0].Outstanding)
	assert.Equal(t, uint32(300), received[1].BytesWritten)
}

func TestWriteProgramRejectsWindow(t *testing.T) {
	tests := []struct {
		name    string
		address uint32
		size    uint32
	}{
		{"below application region", 0x08000000, 16},
		{"just below floor", flash.DefaultApplicationStart - 1, 16},
		{"runs into metadata", flash.DefaultApplicationEnd - 8, 16},
		{"starts at ceiling", flash.DefaultApplicationEnd, 1},
		{"above flash", 0x08040000, 16},
		{"address wraps", 0xFFFFFF00, 0x200},
		{"empty image", flash.DefaultApplicationStart, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := protocol.ProgramRequest{Version: testVersion, Address: tt.address, Size: tt.size}
			frame := buildRawWriteCmd(req)
			host := newScriptedHost(frame, waitForAck())
			rig := newTestRig(t, host)

			err := rig.bl.Run(context.Background())

			var rangeErr *AddressRangeError
			require.True(t, errors.As(err, &rangeErr))
			assert.Equal(t, "write", rangeErr.Operation)
			assert.Equal(t, uint32(flash.DefaultApplicationStart), rangeErr.Min)
			assert.Equal(t, uint32(flash.DefaultApplicationEnd), rangeErr.Max)
			assert.Equal(t, 0, rig.mem.Calls(flash.OpUnlock))
			assert.Equal(t, 0, rig.mem.Calls(flash.OpProgram))
		})
	}
}

func TestWriteProgramFillsRegion(t *testing.T) {
	size := uint32(flash.DefaultApplicationEnd - flash.DefaultApplicationStart)
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    size,
	}
	image := pattern(int(size))
	host := newScriptedHost(writeScript(t, req, image)...)
	rig := newTestRig(t, host)

	require.NoError(t, rig.bl.Run(context.Background()))
	assert.Equal(t, image[len(image)-4:], rig.mem.Bytes(flash.DefaultApplicationEnd-4, 4))
}

func TestWriteProgramResendsBadChunk(t *testing.T) {
	image := pattern(300)
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    uint32(len(image)),
	}
	script := writeScript(t, req, image)

	// Five corrupted copies of the first chunk before the good one.
	bad := append([]byte(nil), script[2]...)
	bad[10] ^= 0x80
	var frames [][]byte
	frames = append(frames, script[:2]...)
	for i := 0; i < 5; i++ {
		frames = append(frames, bad, waitForAck())
	}
	frames = append(frames, script[2:]...)

	host := newScriptedHost(frames...)
	rig := newTestRig(t, host)

	require.NoError(t, rig.bl.Run(context.Background()))

	resends := rig.phases(PhaseResend)
	require.Len(t, resends, 5)
	for i, p := range resends {
		assert.Equal(t, uint32(len(image)), p.Outstanding, "resend %d", i)
		assert.Equal(t, 0, p.Chunk)
		assert.Equal(t, i+1, p.Mismatches)
	}

	assert.Equal(t, image, rig.mem.Bytes(req.Address, len(image)))
	assert.Equal(t, 0, host.remaining())
}

func TestWriteProgramStuckChunk(t *testing.T) {
	image := pattern(100)
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    uint32(len(image)),
	}
	script := writeScript(t, req, image)
	bad := append([]byte(nil), script[2]...)
	bad[0] ^= 0x01

	host := newScriptedHost(script[0], script[1], bad, waitForAck(), bad, waitForAck(), bad, waitForAck())
	rig := newTestRig(t, host, WithStuckChunkLimit(3))
	// Leftovers from an earlier image in the recovery sectors.
	require.NoError(t, rig.mem.Poke(0x08010000, []byte{0x12, 0x34}))

	err := rig.bl.Run(context.Background())

	var stuck *StuckError
	require.True(t, errors.As(err, &stuck))
	assert.Equal(t, 3, stuck.Attempts)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	assert.Equal(t, 1, rig.mem.Calls(flash.OpErase))
	assert.Equal(t, []byte{0xFF, 0xFF}, rig.mem.Bytes(0x08010000, 2))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, rig.mem.Bytes(flash.DefaultLastFlashedAddr, 4))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, rig.mem.Bytes(flash.DefaultVersionAddr, 3))
	assert.Len(t, rig.phases(PhaseFailed), 1)
	assert.True(t, rig.mem.Locked())
}

func TestWriteProgramFlashFault(t *testing.T) {
	image := pattern(300)
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    uint32(len(image)),
	}
	host := newScriptedHost(writeScript(t, req, image)...)
	rig := newTestRig(t, host)
	rig.mem.InjectFault(flash.OpProgram, 1)

	err := rig.bl.Run(context.Background())

	var flashErr *FlashError
	require.True(t, errors.As(err, &flashErr))
	assert.Equal(t, "program", flashErr.Operation)
	assert.Equal(t, req.Address, flashErr.Address)
	assert.ErrorIs(t, err, flash.ErrProgramFault)

	// Every chunk was still collected from the host.
	assert.Equal(t, 0, host.remaining())
	assert.Len(t, rig.phases(PhaseReceiving), 2)

	// The partial image is gone and no version was committed.
	assert.Equal(t, 1, rig.mem.Calls(flash.OpErase))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, rig.mem.Bytes(req.Address+252, 4))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, rig.mem.Bytes(flash.DefaultVersionAddr, 3))
	assert.True(t, rig.mem.Locked())
}

func TestWriteProgramUnlockFault(t *testing.T) {
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    16,
	}
	host := newScriptedHost(writeScript(t, req, pattern(16))...)
	rig := newTestRig(t, host)
	rig.mem.InjectFault(flash.OpUnlock, 1)

	err := rig.bl.Run(context.Background())

	var flashErr *FlashError
	require.True(t, errors.As(err, &flashErr))
	assert.Equal(t, "unlock", flashErr.Operation)
	assert.Equal(t, 0, rig.mem.Calls(flash.OpProgram))
}

func TestWriteProgramAckLost(t *testing.T) {
	image := pattern(300)
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    uint32(len(image)),
	}
	script := writeScript(t, req, image)
	// The host sends the first chunk but never asks for its ACK.
	host := newScriptedHost(script[:3]...)
	rig := newTestRig(t, host, WithHandshake(3, 0))

	err := rig.bl.Run(context.Background())

	var hsErr *HandshakeTimeoutError
	require.True(t, errors.As(err, &hsErr))
	assert.Equal(t, "ACK", hsErr.Response)
	assert.Equal(t, 1, rig.mem.Calls(flash.OpErase))
	assert.Len(t, rig.phases(PhaseFailed), 1)
}

func TestWriteProgramVersionCommitStuck(t *testing.T) {
	image := pattern(16)
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: flash.DefaultApplicationStart,
		Size:    uint32(len(image)),
	}
	host := newScriptedHost(writeScript(t, req, image)...)
	mem := flash.NewMemory(flash.DefaultLayout())
	dev := &versionFaultDevice{Memory: mem}
	bl := New(host, dev, &fakePlatform{}, WithoutDelays(), WithHandshake(5, 0), WithCommitAttempts(3))

	err := bl.Run(context.Background())

	var stuck *StuckError
	require.True(t, errors.As(err, &stuck))
	assert.Equal(t, "version commit", stuck.Operation)
	assert.Equal(t, 3, stuck.Attempts)
	assert.Equal(t, 3, dev.versionWrites)

	// The image itself is complete and stays installed.
	assert.Equal(t, image, mem.Bytes(req.Address, len(image)))
	assert.Equal(t, 0, mem.Calls(flash.OpErase))
	assert.True(t, mem.Locked())
}

// versionFaultDevice fails every write to the version record.
type versionFaultDevice struct {
	*flash.Memory
	versionWrites int
}

func (d *versionFaultDevice) ProgramByte(addr uint32, v byte) error {
	if addr == flash.DefaultVersionAddr {
		d.versionWrites++
		return flash.ErrProgramFault
	}
	return d.Memory.ProgramByte(addr, v)
}

// buildRawWriteCmd encodes a WriteProgram frame without the builder's
// sanity checks.
func buildRawWriteCmd(req protocol.ProgramRequest) []byte {
	if req.Size != 0 {
		frame, _ := protocol.BuildWriteProgramCmd(req)
		return frame
	}
	frame := []byte{
		protocol.WriteProgramFrameLength, protocol.CmdWriteProgram,
		req.Version.Major, req.Version.Minor, req.Version.Patch,
		byte(req.Address >> 24), byte(req.Address >> 16), byte(req.Address >> 8), byte(req.Address),
		0, 0, 0, 0,
	}
	sum := protocol.Calculate(frame)
	return append(frame, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

func TestWriteProgramRewriteNeedsMetadataErase(t *testing.T) {
	image := pattern(300)
	first := protocol.ProgramRequest{
		Version: protocol.Version{Major: 1},
		Address: flash.DefaultApplicationStart,
		Size:    uint32(len(image)),
	}
	second := first
	second.Version = protocol.Version{Major: 2}

	host := newScriptedHost(writeScript(t, first, image)...)
	rig := newTestRig(t, host)
	store := flash.NewStore(rig.mem, flash.DefaultLayout())
	require.NoError(t, rig.bl.Run(context.Background()))

	t.Run("image sectors only", func(t *testing.T) {
		host.push(protocol.BuildEraseSectorsCmd(3, 1), waitForAck())
		require.NoError(t, rig.bl.Run(context.Background()))

		host.push(writeScript(t, second, image)...)
		err := rig.bl.Run(context.Background())

		var flashErr *FlashError
		require.True(t, errors.As(err, &flashErr))
		assert.Equal(t, "verify", flashErr.Operation)
		assert.Equal(t, uint32(flash.DefaultVersionAddr), flashErr.Address)
		assert.ErrorIs(t, err, ErrReadback)
		assert.True(t, rig.mem.Locked())
	})

	t.Run("metadata sector included", func(t *testing.T) {
		host.push(protocol.BuildEraseSectorsCmd(3, 3), waitForAck())
		require.NoError(t, rig.bl.Run(context.Background()))

		host.push(writeScript(t, second, image)...)
		require.NoError(t, rig.bl.Run(context.Background()))

		v, err := store.Version()
		require.NoError(t, err)
		assert.Equal(t, second.Version, v)
		assert.Equal(t, image, rig.mem.Bytes(second.Address, len(image)))
	})
}

func TestWriteProgramStaleLastFlashed(t *testing.T) {
	image := pattern(64)
	req := protocol.ProgramRequest{
		Version: testVersion,
		Address: 0x08010000,
		Size:    uint32(len(image)),
	}
	host := newScriptedHost(writeScript(t, req, image)...)
	rig := newTestRig(t, host)
	installApp(t, rig.mem, flash.DefaultApplicationStart, 0x20018000, 0x0800C199)

	err := rig.bl.Run(context.Background())

	var flashErr *FlashError
	require.True(t, errors.As(err, &flashErr))
	assert.Equal(t, "verify", flashErr.Operation)
	assert.Equal(t, uint32(flash.DefaultLastFlashedAddr), flashErr.Address)
	assert.ErrorIs(t, err, ErrReadback)

	// Treated as a failed write: the image sectors are erased, no version.
	assert.Equal(t, 1, rig.mem.Calls(flash.OpErase))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, rig.mem.Bytes(flash.DefaultVersionAddr, 3))
	assert.True(t, rig.mem.Locked())
}
