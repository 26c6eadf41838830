package protocol

// Frame structure constants.
const (
	// FrameSize is the fixed size of every exchange over the link (256 bytes)
	FrameSize = 256

	// LengthIndex is the position of the total frame length
	LengthIndex = 0

	// CommandIndex is the position of the command code
	CommandIndex = 1

	// PayloadIndex is the position of the first payload byte
	PayloadIndex = 2

	// ChecksumSize is the size of the big-endian checksum trailer
	ChecksumSize = 4

	// MinFrameSize is the smallest frame that can carry a command:
	// LEN(1) + CMD(1) + CHECKSUM(4)
	MinFrameSize = 6

	// MaxFrameSize is the largest value the length byte can describe
	MaxFrameSize = FrameSize - 1

	// ChunkSize is the number of image bytes carried by a full chunk frame.
	// A chunk frame is [DATA(252)][CHECKSUM(4)] and fills the exchange unit.
	ChunkSize = FrameSize - ChecksumSize
)

// Command codes.
const (
	// CmdGetVersion reads the version record of the installed application
	CmdGetVersion = 0x00

	// CmdEraseSectors erases a sector range or the whole application area
	CmdEraseSectors = 0x01

	// CmdWriteProgram starts a chunked image transfer
	CmdWriteProgram = 0x02

	// CmdJumpToAddress transfers control to an application
	CmdJumpToAddress = 0x03
)

// Handshake markers.
//
// Ack and Nack are sent by the bootloader as the first byte of an otherwise
// zeroed frame. WaitForAck and Repeated are sent by the host to tell the
// bootloader it is ready to clock out the pending ACK/NACK or data response.
const (
	Ack        = 0xFF
	Nack       = 0x01
	WaitForAck = 0x04
	Repeated   = 0x05
)

// Boot flag values persisted in flash.
const (
	// BootNeeded keeps the device in the bootloader (erased flash reads 0xFF)
	BootNeeded = 0xFF

	// BootNotNeeded makes the bootloader launch the application at reset
	BootNotNeeded = 0xAA
)

// Erase request constants.
const (
	// MassErase as start sector erases the whole application area
	MassErase = 0xFF

	// SectorCount is the number of physical flash sectors
	SectorCount = 6
)

// JumpToLastFlashed as jump target selects the most recently written image.
const JumpToLastFlashed = 0xFFFFFFFF

// Frame lengths of the fixed-size commands.
const (
	// GetVersionFrameLength is LEN + CMD + CHECKSUM
	GetVersionFrameLength = MinFrameSize

	// EraseFrameLength is LEN + CMD + START(1) + COUNT(1) + CHECKSUM
	EraseFrameLength = MinFrameSize + 2

	// WriteProgramFrameLength is LEN + CMD + VERSION(3) + ADDR(4) + SIZE(4) + CHECKSUM
	WriteProgramFrameLength = MinFrameSize + 11

	// JumpFrameLength is LEN + CMD + ADDR(4) + NEXT_BOOT(1) + CHECKSUM
	JumpFrameLength = MinFrameSize + 5

	// VersionResponseSize is the data size of a version response (3 bytes)
	VersionResponseSize = 3
)
