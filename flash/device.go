package flash

import "github.com/pkg/errors"

// Device is the flash controller the bootloader programs through.
//
// Mutating calls are only valid between Unlock and Lock. Programming can
// only clear bits; erase restores sectors to ErasedByte.
type Device interface {
	// Unlock enables program and erase operations
	Unlock() error

	// Lock disables program and erase operations
	Lock() error

	// ProgramByte programs one byte
	ProgramByte(addr uint32, v byte) error

	// ProgramWord programs a little-endian 32-bit word
	ProgramWord(addr uint32, v uint32) error

	// Erase erases the sectors described by cfg. The returned status is
	// EraseOK when every sector erased, otherwise the failing sector.
	Erase(cfg EraseConfig) (status uint32, err error)

	// ReadByteAt reads one byte
	ReadByteAt(addr uint32) (byte, error)

	// ReadWord reads a little-endian 32-bit word
	ReadWord(addr uint32) (uint32, error)
}

// EraseConfig selects the sectors an Erase call clears.
type EraseConfig struct {
	// Mass erases the application and metadata sectors in one operation
	Mass bool

	// Sector and Count select a sector range when Mass is false
	Sector int
	Count  int
}

// Errors reported by Device implementations.
var (
	ErrLocked       = errors.New("flash is locked")
	ErrOutOfRange   = errors.New("address outside flash")
	ErrProgramFault = errors.New("flash program failed")
	ErrEraseFault   = errors.New("flash erase failed")
	ErrUnlockFault  = errors.New("flash unlock failed")
	ErrLockFault    = errors.New("flash lock failed")
)
