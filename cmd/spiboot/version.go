package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-spiboot/protocol"
)

// erasedVersion is what the version record reads before the first commit.
var erasedVersion = protocol.Version{Major: 0xFF, Minor: 0xFF, Patch: 0xFF}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Read the installed application version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := opts.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			v, err := s.prog.GetVersion(cmd.Context())
			if err != nil {
				return err
			}
			if v == erasedVersion {
				fmt.Fprintln(cmd.OutOrStdout(), "no application version recorded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "application version %s\n", v)
			return nil
		},
	}
}

// closeSession closes s and reports the close error unless an earlier one
// is already pending.
func closeSession(s *session, err *error) {
	if cerr := s.Close(); *err == nil {
		*err = cerr
	}
}
