package mugen

import (
	"io"

	"github.com/pborges/mugen/internal/rom"
)

// RomSpecs is the physical geometry of the ROM set.
type RomSpecs struct {
	WordCount   int
	BitsPerWord int
	RomCount    int
	AddressBits int
}

// BitField is one logical field of the address word: its width and the
// least-significant bit position it starts at.
type BitField struct {
	Bits      int
	BitsStart int
}

// AddressMapping is the logical layout of the address lines. Fields occupy
// contiguous bit ranges from bit 0 upward, in the order they appear in the
// address section. FlagLabels, when present, names the flag bits from most
// significant downward.
type AddressMapping struct {
	Cycle   BitField
	Opcode  BitField
	Flags   BitField
	Segment BitField

	FlagLabels       []string
	TotalAddressBits int
}

// Signals is the ordered list of control signal names. A signal's position
// is its bit index in the packed bitvector.
type Signals []string

// Index returns the position of the named signal, or -1.
func (s Signals) Index(name string) int {
	for i, sig := range s {
		if sig == name {
			return i
		}
	}
	return -1
}

// Opcodes maps opcode names to their values.
type Opcodes map[string]uint64

// Padding selects how images are brought up to the full ROM capacity.
type Padding int

const (
	PadNone Padding = iota
	PadValue
	PadCatch
)

// Options controls compilation.
type Options struct {
	LSBFirst bool
	Pad      Padding
	PadValue byte

	// Warnings receives WARNING diagnostics; nil means os.Stderr.
	Warnings io.Writer
}

// Result is a compiled specification: one image per physical chip plus
// everything the debugger and the writers need to interpret them.
type Result struct {
	Images []rom.Image

	Rom      RomSpecs
	Address  AddressMapping
	Signals  Signals
	Opcodes  Opcodes
	LSBFirst bool
	Layout   string

	SpecFile string
}

// Packing returns the signal packing scheme of the compiled result.
func (r *Result) Packing() rom.Packing {
	return rom.Packing{
		RomCount:    r.Rom.RomCount,
		SegmentBits: r.Address.Segment.Bits,
		LSBFirst:    r.LSBFirst,
	}
}

// Spec is a tokenized specification file: the five section bodies keyed by
// name, each tagged with the line its body starts on.
type Spec struct {
	File     string
	sections map[string]section
}

type section struct {
	body string
	line int
}
