package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameBuffer(frame []byte) []byte {
	buf := make([]byte, FrameSize)
	copy(buf, frame)
	return buf
}

func TestHeader(t *testing.T) {
	length, cmd := Header(frameBuffer(BuildGetVersionCmd()))
	assert.Equal(t, GetVersionFrameLength, length)
	assert.Equal(t, Command(CmdGetVersion), cmd)

	length, _ = Header(make([]byte, FrameSize))
	assert.Zero(t, length)

	length, _ = Header(nil)
	assert.Zero(t, length)
}

func TestParseEraseRequest(t *testing.T) {
	req, err := ParseEraseRequest(frameBuffer(BuildEraseSectorsCmd(4, 2)))
	require.NoError(t, err)
	assert.Equal(t, EraseRequest{StartSector: 4, Count: 2}, req)
	assert.False(t, req.Mass())

	req, err = ParseEraseRequest(frameBuffer(BuildMassEraseCmd()))
	require.NoError(t, err)
	assert.True(t, req.Mass())
}

func TestParseProgramRequest(t *testing.T) {
	want := ProgramRequest{
		Version: Version{Major: 4, Minor: 5, Patch: 6},
		Address: 0x08010000,
		Size:    0x1234,
	}
	frame, err := BuildWriteProgramCmd(want)
	require.NoError(t, err)

	got, err := ParseProgramRequest(frameBuffer(frame))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseJumpRequest(t *testing.T) {
	want := JumpRequest{Address: 0x08020000, NextBoot: BootNeeded}

	got, err := ParseJumpRequest(frameBuffer(BuildJumpToAddressCmd(want)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.False(t, got.LastFlashed())
}

func TestParseShortFrames(t *testing.T) {
	// A GetVersion-sized frame relabelled as other commands.
	short := frameBuffer(BuildGetVersionCmd())

	_, err := ParseEraseRequest(short)
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, Command(CmdEraseSectors), frameErr.Command)
	assert.Contains(t, err.Error(), "need at least 8 bytes")

	_, err = ParseProgramRequest(short)
	assert.ErrorAs(t, err, &frameErr)

	_, err = ParseJumpRequest(short)
	assert.ErrorAs(t, err, &frameErr)
}

func TestParseVersionResponse(t *testing.T) {
	frame := make([]byte, FrameSize)
	copy(frame, []byte{1, 0, 7})

	v, err := ParseVersionResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 0, Patch: 7}, v)
	assert.Equal(t, "1.0.7", v.String())

	_, err = ParseVersionResponse([]byte{1})
	assert.Error(t, err)
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{cmd: CmdGetVersion, want: "GetVersion"},
		{cmd: CmdEraseSectors, want: "EraseSectors"},
		{cmd: CmdWriteProgram, want: "WriteProgram"},
		{cmd: CmdJumpToAddress, want: "JumpToAddress"},
		{cmd: WaitForAck, want: "WaitForAck"},
		{cmd: 0x42, want: "Command(0x42)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cmd.String())
	}

	assert.True(t, Command(CmdJumpToAddress).Dispatchable())
	assert.False(t, Command(Repeated).Dispatchable())
}

func TestCommandError(t *testing.T) {
	err := &CommandError{Code: 0x09}
	assert.Equal(t, "unknown command 0x09", err.Error())
	assert.True(t, IsCommandError(err))
	assert.False(t, IsCommandError(&FrameError{}))
}
