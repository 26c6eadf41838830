package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-spiboot/protocol"
)

// nextBootValues maps --next-boot names to boot flag bytes. "keep" sends a
// value the device does not persist.
var nextBootValues = map[string]byte{
	"bootloader":  protocol.BootNeeded,
	"application": protocol.BootNotNeeded,
	"keep":        0x00,
}

func newJumpCmd(opts *options) *cobra.Command {
	var (
		app      bool
		nextBoot string
	)

	cmd := &cobra.Command{
		Use:   "jump [address]",
		Short: "Start an application",
		Long: `Start the image based at address, or with --app the last flashed image.
With --app, --next-boot selects what the device runs after its next reset:
the bootloader, the application, or whatever the boot flag already says.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if app == (len(args) == 1) {
				return errors.New("give either an address or --app")
			}
			flag, ok := nextBootValues[nextBoot]
			if !ok {
				return errors.Errorf("invalid --next-boot %q: want bootloader, application or keep", nextBoot)
			}

			var addr uint32
			if !app {
				if addr, err = parseAddress(args[0]); err != nil {
					return err
				}
			}

			s, err := opts.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			if app {
				if err := s.prog.JumpToApplication(cmd.Context(), flag); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "jump to last flashed application requested")
				return nil
			}

			if err := s.prog.JumpToAddress(cmd.Context(), addr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "jump to 0x%08X requested\n", addr)
			return nil
		},
	}

	cmd.Flags().BoolVar(&app, "app", false, "start the last flashed application")
	cmd.Flags().StringVar(&nextBoot, "next-boot", "application", "with --app: bootloader, application or keep")
	return cmd
}
