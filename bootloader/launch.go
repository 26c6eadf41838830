package bootloader

import (
	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/protocol"
)

// launchUnconditional is the fast boot path: launch the last flashed image
// without validating it and without touching the boot flag.
func (b *Bootloader) launchUnconditional() error {
	base, err := b.lastFlashed()
	if err != nil {
		return err
	}
	entry, err := b.entryAt(base)
	if err != nil {
		return err
	}
	return b.transfer(entry)
}

// jump runs a JumpToAddress request.
func (b *Bootloader) jump(req protocol.JumpRequest) error {
	if req.LastFlashed() {
		return b.launchLastFlashed(req.NextBoot)
	}
	return b.launchAt(req.Address)
}

// launchLastFlashed launches the most recently written image, persisting
// nextBoot to the boot flag first when it is a boot flag value.
func (b *Bootloader) launchLastFlashed(nextBoot byte) error {
	base, err := b.lastFlashed()
	if err != nil {
		return err
	}
	entry, err := b.entryAt(base)
	if err != nil {
		return err
	}

	if nextBoot == protocol.BootNeeded || nextBoot == protocol.BootNotNeeded {
		if err := b.persistBootFlag(nextBoot); err != nil {
			return err
		}
	}
	return b.transfer(entry)
}

// launchAt launches the image based at addr. The address must lie in the
// application region, not below the last flashed image, and must not read
// as erased flash.
func (b *Bootloader) launchAt(addr uint32) error {
	layout := b.config.Layout

	floor := layout.ApplicationStart
	if last, err := b.store.LastFlashed(); err == nil && last != flash.ErasedWord && last > floor {
		floor = last
	}
	if addr < floor || addr >= layout.ApplicationEnd {
		return &AddressRangeError{
			Operation: "jump",
			Address:   addr,
			Min:       floor,
			Max:       layout.ApplicationEnd,
		}
	}

	entry, err := b.entryAt(addr)
	if err != nil {
		return err
	}
	if entry.StackPointer == flash.ErasedWord {
		return ErrNoProgram
	}
	return b.transfer(entry)
}

// lastFlashed returns the last flashed image base, or ErrNoApplication.
func (b *Bootloader) lastFlashed() (uint32, error) {
	base, err := b.store.LastFlashed()
	if err != nil {
		return 0, &FlashError{Operation: "read", Address: b.config.Layout.LastFlashedAddr, Err: err}
	}
	if base == flash.ErasedWord {
		return 0, ErrNoApplication
	}
	return base, nil
}

func (b *Bootloader) entryAt(base uint32) (flash.Entry, error) {
	entry, err := b.store.EntryAt(base)
	if err != nil {
		return flash.Entry{}, &FlashError{Operation: "read", Address: base, Err: err}
	}
	return entry, nil
}

// persistBootFlag programs the boot flag inside an unlock/lock bracket and
// reads it back. Going from BootNotNeeded to BootNeeded sets bits, which
// only an erase of the metadata sector can do; that fails with ErrReadback.
func (b *Bootloader) persistBootFlag(v byte) error {
	if err := b.dev.Unlock(); err != nil {
		return &FlashError{Operation: "unlock", Err: err}
	}
	at := b.config.Layout.BootFlagAddr
	var err error
	if progErr := b.store.ProgramBootFlag(v); progErr != nil {
		err = &FlashError{Operation: "program", Address: at, Err: progErr}
	} else if got, readErr := b.store.BootFlag(); readErr != nil {
		err = &FlashError{Operation: "read", Address: at, Err: readErr}
	} else if got != v {
		b.logError("boot flag not erased", "want", v, "got", got)
		err = &FlashError{Operation: "verify", Address: at, Err: ErrReadback}
	}
	if lockErr := b.lock(); err == nil {
		err = lockErr
	}
	if err == nil {
		b.logDebug("next boot persisted", "flag", v)
	}
	return err
}

// transfer deinitialises the platform and hands control to entry.
func (b *Bootloader) transfer(entry flash.Entry) error {
	b.logInfo("jumping to application", "entry", entry.String())

	if err := b.platform.Deinit(); err != nil {
		return &LaunchError{Entry: entry, Err: err}
	}
	if err := b.platform.Transfer(entry); err != nil {
		return &LaunchError{Entry: entry, Err: err}
	}
	b.setState(StateTerminated)
	return nil
}
