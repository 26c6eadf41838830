package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/moffa90/go-spiboot/protocol"
)

func newEraseCmd(opts *options) *cobra.Command {
	var (
		mass  bool
		start uint8
		count uint8
	)

	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase flash sectors",
		Long: `Erase a range of sectors, or with --mass the whole application area
including the version record and boot flag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !mass && !cmd.Flags().Changed("start") {
				return errors.New("set --start (and --count) or --mass")
			}
			if mass && !opts.assumeOK {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Erase the whole application area?")
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			}

			s, err := opts.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			if mass {
				if err := s.prog.MassErase(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "mass erase done")
				return nil
			}

			if err := s.prog.EraseSectors(cmd.Context(), start, count); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "erased sectors %d to %d\n", start, int(start)+int(count)-1)
			return nil
		},
	}

	cmd.Flags().BoolVar(&mass, "mass", false, "erase the whole application area")
	cmd.Flags().Uint8Var(&start, "start", 0, fmt.Sprintf("first sector (0-%d)", protocol.SectorCount-1))
	cmd.Flags().Uint8Var(&count, "count", 1, "number of sectors")
	return cmd
}

// confirm asks a yes/no question when in is an interactive terminal. Non
// interactive input is never asked and counts as consent.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return true, nil
	}

	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "read answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
