package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-spiboot/flash"
	"github.com/moffa90/go-spiboot/host"
	"github.com/moffa90/go-spiboot/image"
	"github.com/moffa90/go-spiboot/protocol"
)

func newWriteCmd(opts *options) *cobra.Command {
	var (
		version  string
		address  string
		format   string
		erase    bool
		noVerify bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "write <image>",
		Short: "Write a firmware image",
		Long: `Write a raw binary or Intel HEX image to the application area. Unless
--erase=false, the sectors from the image up to the metadata block are
erased first. The version record is committed only when every chunk was
programmed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			v, err := parseVersion(version)
			if err != nil {
				return err
			}
			f, err := image.ParseFormat(format)
			if err != nil {
				return err
			}

			var loadOpts []image.Option
			if address != "" {
				base, err := parseAddress(address)
				if err != nil {
					return err
				}
				loadOpts = append(loadOpts, image.WithBase(base))
			}
			img, err := loadImage(args[0], f, loadOpts...)
			if err != nil {
				return err
			}

			var hostOpts []host.Option
			if noVerify {
				hostOpts = append(hostOpts, host.WithVerifyAfterWrite(false))
			}
			var bar *progressbar.ProgressBar
			if !quiet {
				bar = progressbar.NewOptions(len(img.Data),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("Writing"),
					progressbar.OptionShowBytes(true),
					progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
				)
				hostOpts = append(hostOpts, host.WithProgressCallback(func(p host.Progress) {
					switch p.Phase {
					case host.PhaseWriting:
						_ = bar.Set(p.BytesWritten)
					case host.PhaseVerifying:
						bar.Describe("Verifying")
					case host.PhaseComplete:
						_ = bar.Finish()
					}
				}))
			}

			s, err := opts.openSession(cmd.Context(), cmd.ErrOrStderr(), hostOpts...)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			if !img.Fits(s.layout) {
				return errors.Errorf("image 0x%08X-0x%08X is outside the application area 0x%08X-0x%08X",
					img.Base, img.End(), s.layout.ApplicationStart, s.layout.ApplicationEnd)
			}

			if erase {
				start, count, err := sectorsFor(s.layout, img)
				if err != nil {
					return err
				}
				if err := s.prog.EraseSectors(cmd.Context(), start, count); err != nil {
					return errors.Wrap(err, "erase before write")
				}
			}

			if err := s.prog.WriteProgram(cmd.Context(), img.Data, v, img.Base); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes at 0x%08X, version %s\n", len(img.Data), img.Base, v)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "version to record, major.minor.patch (required)")
	cmd.Flags().StringVar(&address, "address", "", "base address of a raw binary image (default application start)")
	cmd.Flags().StringVar(&format, "format", "auto", "image format: auto, bin or hex")
	cmd.Flags().BoolVar(&erase, "erase", true, "erase the image and metadata sectors first")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip reading the version back")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress bar")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func loadImage(path string, format image.Format, opts ...image.Option) (*image.Image, error) {
	if format == image.FormatAuto {
		return image.Load(path, opts...)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer func() { _ = f.Close() }()
	return image.ParseReader(f, format, opts...)
}

// sectorsFor returns the sectors to erase before writing img: from its
// first sector through the sector holding the metadata block, which has to
// be erased for a new version or image address to program.
func sectorsFor(layout flash.Layout, img *image.Image) (start, count byte, err error) {
	first, ok := layout.SectorOf(img.Base)
	if !ok {
		return 0, 0, errors.Errorf("address 0x%08X is not in flash", img.Base)
	}
	last, ok := layout.SectorOf(img.End() - 1)
	if !ok {
		return 0, 0, errors.Errorf("address 0x%08X is not in flash", img.End()-1)
	}
	if meta, ok := layout.SectorOf(layout.LastFlashedAddr); ok && meta > last {
		last = meta
	}
	return byte(first), byte(last - first + 1), nil
}

// parseVersion parses "major.minor.patch"; missing parts are zero.
func parseVersion(s string) (protocol.Version, error) {
	parts := strings.Split(s, ".")
	if s == "" || len(parts) > 3 {
		return protocol.Version{}, errors.Errorf("invalid version %q: want major.minor.patch", s)
	}

	var fields [3]byte
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return protocol.Version{}, errors.Errorf("invalid version %q: %q is not a number 0-255", s, p)
		}
		fields[i] = byte(n)
	}
	return protocol.Version{Major: fields[0], Minor: fields[1], Patch: fields[2]}, nil
}

// parseAddress accepts decimal, 0x hex and 0o octal addresses.
func parseAddress(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Errorf("invalid address %q", s)
	}
	return uint32(n), nil
}
