package protocol

import "fmt"

// Command identifies the operation carried by a command frame.
type Command byte

// String returns the command name used in logs.
func (c Command) String() string {
	switch c {
	case CmdGetVersion:
		return "GetVersion"
	case CmdEraseSectors:
		return "EraseSectors"
	case CmdWriteProgram:
		return "WriteProgram"
	case CmdJumpToAddress:
		return "JumpToAddress"
	case WaitForAck:
		return "WaitForAck"
	case Repeated:
		return "Repeated"
	default:
		return fmt.Sprintf("Command(0x%02X)", byte(c))
	}
}

// Dispatchable reports whether c names a command handler rather than a
// handshake marker or an unknown code.
func (c Command) Dispatchable() bool {
	return c <= CmdJumpToAddress
}

// Version is the (major, minor, patch) triple of an application image.
type Version struct {
	Major byte
	Minor byte
	Patch byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// EraseRequest is the payload of an EraseSectors command.
type EraseRequest struct {
	// StartSector is the first sector to erase, or MassErase
	StartSector byte

	// Count is the number of sectors to erase (ignored for mass erase)
	Count byte
}

// Mass reports whether the request asks for a mass erase.
func (r EraseRequest) Mass() bool {
	return r.StartSector == MassErase
}

// ProgramRequest is the payload of a WriteProgram command.
type ProgramRequest struct {
	// Version is committed to the version record after a complete transfer
	Version Version

	// Address is the flash address of the first image byte
	Address uint32

	// Size is the total number of image bytes that follow in chunk frames
	Size uint32
}

// Chunks returns the number of chunk frames the transfer takes.
func (r ProgramRequest) Chunks() int {
	return int((uint64(r.Size) + ChunkSize - 1) / ChunkSize)
}

// JumpRequest is the payload of a JumpToAddress command.
type JumpRequest struct {
	// Address is the image base to launch, or JumpToLastFlashed
	Address uint32

	// NextBoot is persisted to the boot flag when launching the last
	// flashed application; other values leave the flag untouched
	NextBoot byte
}

// LastFlashed reports whether the request targets the last flashed image.
func (r JumpRequest) LastFlashed() bool {
	return r.Address == JumpToLastFlashed
}
