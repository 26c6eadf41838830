package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGetVersionCmd(t *testing.T) {
	frame := BuildGetVersionCmd()

	require.Len(t, frame, GetVersionFrameLength)
	assert.Equal(t, byte(GetVersionFrameLength), frame[LengthIndex])
	assert.Equal(t, byte(CmdGetVersion), frame[CommandIndex])
	assert.True(t, Validate(frame, len(frame)))
}

func TestBuildEraseSectorsCmd(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		start byte
		count byte
	}{
		{name: "sector range", frame: BuildEraseSectorsCmd(2, 3), start: 2, count: 3},
		{name: "mass erase", frame: BuildMassEraseCmd(), start: MassErase, count: MassErase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.frame, EraseFrameLength)
			assert.Equal(t, byte(CmdEraseSectors), tt.frame[CommandIndex])
			assert.Equal(t, tt.start, tt.frame[2])
			assert.Equal(t, tt.count, tt.frame[3])
			assert.True(t, Validate(tt.frame, len(tt.frame)))
		})
	}
}

func TestBuildWriteProgramCmd(t *testing.T) {
	req := ProgramRequest{
		Version: Version{Major: 1, Minor: 2, Patch: 3},
		Address: 0x0800C000,
		Size:    300,
	}

	frame, err := BuildWriteProgramCmd(req)
	require.NoError(t, err)
	require.Len(t, frame, WriteProgramFrameLength)

	assert.Equal(t, []byte{1, 2, 3}, frame[2:5])
	assert.Equal(t, uint32(0x0800C000), binary.BigEndian.Uint32(frame[5:9]))
	assert.Equal(t, uint32(300), binary.BigEndian.Uint32(frame[9:13]))
	assert.True(t, Validate(frame, len(frame)))

	_, err = BuildWriteProgramCmd(ProgramRequest{Address: 0x0800C000})
	assert.Error(t, err)
}

func TestBuildJumpToAddressCmd(t *testing.T) {
	frame := BuildJumpToAddressCmd(JumpRequest{Address: JumpToLastFlashed, NextBoot: BootNotNeeded})

	require.Len(t, frame, JumpFrameLength)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, frame[2:6])
	assert.Equal(t, byte(BootNotNeeded), frame[6])
	assert.True(t, Validate(frame, len(frame)))
}

func TestBuildChunk(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "full", size: ChunkSize},
		{name: "partial", size: 48},
		{name: "empty", size: 0, wantErr: true},
		{name: "oversized", size: ChunkSize + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, err := BuildChunk(make([]byte, tt.size))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, chunk, tt.size+ChecksumSize)
			assert.LessOrEqual(t, len(chunk), FrameSize)
		})
	}
}

func TestMarkerFrame(t *testing.T) {
	frame := MarkerFrame(WaitForAck)

	require.Len(t, frame, FrameSize)
	assert.Equal(t, byte(WaitForAck), frame[0])
	assert.Equal(t, make([]byte, FrameSize-1), frame[1:])
}

func TestProgramRequestChunks(t *testing.T) {
	tests := []struct {
		size uint32
		want int
	}{
		{size: 1, want: 1},
		{size: ChunkSize, want: 1},
		{size: 300, want: 2},
		{size: 2 * ChunkSize, want: 2},
		{size: 0xFFFFFFFF, want: 17043522},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ProgramRequest{Size: tt.size}.Chunks(), "size %d", tt.size)
	}
}
