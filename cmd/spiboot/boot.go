package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-spiboot/bootloader"
	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/internal/logging"
	"github.com/moffa90/go-spiboot/protocol"
	"github.com/moffa90/go-spiboot/transport"
)

func newBootCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Reset the emulated device",
		Long: `Show the metadata of the flash dump given with --sim and replay the reset
time decision: with the boot flag set the device stays in the bootloader,
otherwise it starts the last flashed application.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sim == "" {
				return errors.New("boot needs --sim")
			}
			layout := flash.DefaultLayout()
			mem, err := flash.OpenMemory(opts.sim, layout)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			store := flash.NewStore(mem, layout)
			flag, err := printStatus(out, store)
			if err != nil {
				return err
			}
			if flag == protocol.BootNeeded {
				fmt.Fprintln(out, "boot flag set: device stays in the bootloader")
				return nil
			}

			log := logging.New(cmd.ErrOrStderr(), opts.verbose)
			board := &emulatedBoard{log: log.With("board")}
			bus := transport.NewBus()
			defer func() { _ = bus.Close() }()

			bl := bootloader.New(bus.Master(), mem, board,
				bootloader.WithLayout(layout),
				bootloader.WithLogger(log.With("device")),
				bootloader.WithoutDelays(),
			)
			if err := bl.Boot(cmd.Context()); err != nil {
				return errors.Wrap(err, "boot")
			}
			fmt.Fprintln(out, board)
			return nil
		},
	}
}

// printStatus writes the metadata block and returns the boot flag.
func printStatus(out io.Writer, store *flash.Store) (byte, error) {
	flag, err := store.BootFlag()
	if err != nil {
		return 0, err
	}
	v, err := store.Version()
	if err != nil {
		return 0, err
	}
	last, err := store.LastFlashed()
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(out, "boot flag:    0x%02X\n", flag)
	if v == erasedVersion {
		fmt.Fprintln(out, "version:      none")
	} else {
		fmt.Fprintf(out, "version:      %s\n", v)
	}
	if last == flash.ErasedWord {
		fmt.Fprintln(out, "last flashed: none")
	} else {
		fmt.Fprintf(out, "last flashed: 0x%08X\n", last)
	}
	return flag, nil
}
