package flash

// Default memory map of a 256 KiB STM32F401-class part.
const (
	// DefaultBase is the first flash address
	DefaultBase = 0x08000000

	// DefaultApplicationStart is the first address above the bootloader's own code
	DefaultApplicationStart = 0x0800C000

	// DefaultLastFlashedAddr holds the entry address of the last written image (word)
	DefaultLastFlashedAddr = 0x0803FFF8

	// DefaultVersionAddr holds the major, minor, patch bytes
	DefaultVersionAddr = 0x0803FFFC

	// DefaultBootFlagAddr holds the boot flag byte
	DefaultBootFlagAddr = 0x0803FFFF

	// DefaultApplicationEnd is the exclusive end of the application region,
	// just below the metadata block
	DefaultApplicationEnd = DefaultLastFlashedAddr
)

// Sentinels read back from erased flash.
const (
	// ErasedByte is the value of an erased flash byte
	ErasedByte = 0xFF

	// ErasedWord is the value of an erased flash word. It doubles as the
	// "no application" and "no program" markers.
	ErasedWord = 0xFFFFFFFF

	// EraseOK is the erase status word reported when every sector erased
	EraseOK = 0xFFFFFFFF
)

// Layout describes the flash geometry and the fixed metadata offsets.
type Layout struct {
	// Base is the address of sector 0
	Base uint32

	// Sectors holds the size of each physical sector in order
	Sectors []uint32

	// ApplicationStart and ApplicationEnd bound the programmable region [start, end)
	ApplicationStart uint32
	ApplicationEnd   uint32

	// BootFlagAddr, VersionAddr and LastFlashedAddr locate the metadata block
	BootFlagAddr    uint32
	VersionAddr     uint32
	LastFlashedAddr uint32

	// RecoveryStart and RecoveryCount name the sectors erased when an image
	// write cannot complete
	RecoveryStart int
	RecoveryCount int
}

// DefaultLayout returns the layout the bootloader ships with: six sectors of
// 16, 16, 16, 16, 64 and 128 KiB, application from sector 3 up.
func DefaultLayout() Layout {
	return Layout{
		Base: DefaultBase,
		Sectors: []uint32{
			16 * 1024, 16 * 1024, 16 * 1024, 16 * 1024,
			64 * 1024,
			128 * 1024,
		},
		ApplicationStart: DefaultApplicationStart,
		ApplicationEnd:   DefaultApplicationEnd,
		BootFlagAddr:     DefaultBootFlagAddr,
		VersionAddr:      DefaultVersionAddr,
		LastFlashedAddr:  DefaultLastFlashedAddr,
		RecoveryStart:    3,
		RecoveryCount:    3,
	}
}

// Size returns the total flash size in bytes.
func (l Layout) Size() uint32 {
	var n uint32
	for _, s := range l.Sectors {
		n += s
	}
	return n
}

// End returns the exclusive end address of flash.
func (l Layout) End() uint32 {
	return l.Base + l.Size()
}

// Contains reports whether [addr, addr+n) lies inside flash.
func (l Layout) Contains(addr uint32, n int) bool {
	end := uint64(addr) + uint64(n)
	return addr >= l.Base && end <= uint64(l.End())
}

// Sector returns the start address and size of sector i.
func (l Layout) Sector(i int) (start, size uint32, ok bool) {
	if i < 0 || i >= len(l.Sectors) {
		return 0, 0, false
	}
	start = l.Base
	for _, s := range l.Sectors[:i] {
		start += s
	}
	return start, l.Sectors[i], true
}

// SectorOf returns the index of the sector containing addr.
func (l Layout) SectorOf(addr uint32) (int, bool) {
	if !l.Contains(addr, 1) {
		return 0, false
	}
	start := l.Base
	for i, s := range l.Sectors {
		if addr < start+s {
			return i, true
		}
		start += s
	}
	return 0, false
}

// ApplicationSectors returns the first sector and the number of sectors
// covering the application region and the metadata above it. A mass erase
// clears exactly these.
func (l Layout) ApplicationSectors() (first, count int) {
	first, _ = l.SectorOf(l.ApplicationStart)
	return first, len(l.Sectors) - first
}

// InApplication reports whether the image [addr, addr+size) fits inside the
// application region.
func (l Layout) InApplication(addr, size uint32) bool {
	end := uint64(addr) + uint64(size)
	return addr >= l.ApplicationStart &&
		addr < l.ApplicationEnd &&
		end <= uint64(l.ApplicationEnd)
}
