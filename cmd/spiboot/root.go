package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-spiboot/transport"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	port     string
	baud     int
	sim      string
	verbose  bool
	timeout  time.Duration
	retries  int
	assumeOK bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "spiboot",
		Short: "SPI bootloader host tool",
		Long: `spiboot drives the STM32 SPI bootloader: it reads the installed
application version, erases sectors, writes firmware images and starts
applications.

The device is reached through a USB-serial SPI bridge (--port), or emulated
in process on a flash dump file (--sim). A missing dump file starts as
erased flash and is written back after every command.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.port, "port", "p", "", "serial port of the SPI bridge")
	flags.IntVarP(&opts.baud, "baud", "b", transport.DefaultBaudRate, "serial baud rate")
	flags.StringVar(&opts.sim, "sim", "", "emulate the device on this flash dump file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log protocol details")
	flags.DurationVar(&opts.timeout, "timeout", transport.DefaultReadTimeout, "per-exchange timeout")
	flags.IntVar(&opts.retries, "retries", 3, "resends of a NACKed frame")
	flags.BoolVarP(&opts.assumeOK, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(
		newVersionCmd(opts),
		newEraseCmd(opts),
		newWriteCmd(opts),
		newJumpCmd(opts),
		newBootCmd(opts),
		newPortsCmd(),
	)
	return rootCmd
}
