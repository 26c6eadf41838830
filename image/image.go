package image

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/moffa90/go-spiboot/flash"
)

// Format identifies an image file encoding.
type Format int

const (
	// FormatAuto detects the encoding from the content
	FormatAuto Format = iota

	// FormatBinary is a raw flash image
	FormatBinary

	// FormatIntelHex is an Intel HEX record file
	FormatIntelHex
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatBinary:
		return "binary"
	case FormatIntelHex:
		return "ihex"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name as printed by String back to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return FormatAuto, nil
	case "bin", "binary":
		return FormatBinary, nil
	case "hex", "ihex":
		return FormatIntelHex, nil
	}
	return FormatAuto, errors.Errorf("unknown image format %q", name)
}

// FormatOf guesses the format from a file extension. Unknown extensions
// yield FormatAuto.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin":
		return FormatBinary
	case ".hex", ".ihex", ".ihx":
		return FormatIntelHex
	default:
		return FormatAuto
	}
}

// MaxSize bounds the flattened image. Sparse HEX files spanning more than
// this are rejected instead of allocated.
const MaxSize = 16 << 20

// Errors returned while loading images.
var (
	ErrEmpty      = errors.New("image contains no data")
	ErrChecksum   = errors.New("record checksum mismatch")
	ErrMissingEOF = errors.New("missing end of file record")
	ErrTooLarge   = errors.New("image exceeds maximum size")
)

// Image is a contiguous block of flash content.
type Image struct {
	// Base is the flash address of Data[0]
	Base uint32

	// Data is the content to program
	Data []byte

	// Entry is the start address carried by a HEX file (record 03 or 05),
	// zero when absent
	Entry uint32
}

// Size returns the image length in bytes.
func (img *Image) Size() uint32 {
	return uint32(len(img.Data))
}

// End returns the exclusive end address.
func (img *Image) End() uint32 {
	return img.Base + img.Size()
}

// Fits reports whether the image lies inside the application region of layout.
func (img *Image) Fits(layout flash.Layout) bool {
	return layout.InApplication(img.Base, img.Size())
}

type config struct {
	base uint32
}

// Option configures loading.
type Option func(*config)

// WithBase sets the flash address of a raw binary image. Ignored for HEX
// files, which carry their own addresses.
func WithBase(addr uint32) Option {
	return func(c *config) {
		c.base = addr
	}
}

// Load reads an image file. The format comes from the extension and falls
// back to content detection.
//
// Example:
//
//	img, err := image.Load("app.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string, opts ...Option) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer func() { _ = f.Close() }()

	img, err := ParseReader(f, FormatOf(path), opts...)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return img, nil
}

// ParseReader reads an image in the given format from r.
//
// Example:
//
//	img, err := image.ParseReader(strings.NewReader(hexText), image.FormatIntelHex)
func ParseReader(r io.Reader, format Format, opts ...Option) (*Image, error) {
	cfg := config{base: flash.DefaultApplicationStart}
	for _, opt := range opts {
		opt(&cfg)
	}

	br := bufio.NewReader(r)
	if format == FormatAuto {
		format = sniff(br)
	}

	switch format {
	case FormatBinary:
		return parseBinary(br, cfg.base)
	case FormatIntelHex:
		return parseIntelHex(br)
	default:
		return nil, errors.Errorf("unsupported image format %s", format)
	}
}

// sniff peeks past leading whitespace: a ':' starts an Intel HEX file.
func sniff(br *bufio.Reader) Format {
	for n := 1; ; n++ {
		p, err := br.Peek(n)
		if len(p) < n || err != nil {
			return FormatBinary
		}
		switch p[n-1] {
		case ' ', '\t', '\r', '\n':
			continue
		case ':':
			return FormatIntelHex
		default:
			return FormatBinary
		}
	}
}

func parseBinary(r io.Reader, base uint32) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read binary image")
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}
	return &Image{Base: base, Data: data}, nil
}
