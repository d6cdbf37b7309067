package mugen

import (
	"sort"
	"strconv"

	"github.com/pborges/mugen/internal/rom"
)

// Compile runs the section parsers in their fixed order, expands the
// microcode rules into the ROM images, and applies padding.
func Compile(spec *Spec, opt Options) (*Result, error) {
	d := newDiag(spec.File, opt.Warnings)

	romSpecs, err := parseRomSpecs(d, spec.sections["rom"])
	if err != nil {
		return nil, err
	}
	address, err := parseAddressMapping(d, spec.sections["address"], romSpecs)
	if err != nil {
		return nil, err
	}
	signals, err := parseSignals(d, spec.sections["signals"], romSpecs, address)
	if err != nil {
		return nil, err
	}
	opcodes, err := parseOpcodes(d, spec.sections["opcodes"], address)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Rom:      romSpecs,
		Address:  address,
		Signals:  signals,
		Opcodes:  opcodes,
		LSBFirst: opt.LSBFirst,
		SpecFile: spec.File,
	}
	res.Layout = LayoutReport(res)

	res.Images, err = expandRules(d, spec.sections["microcode"], res, opt)
	if err != nil {
		return nil, err
	}

	if opt.Pad == PadValue {
		for i := range res.Images {
			res.Images[i] = res.Images[i].Pad(romSpecs.WordCount, opt.PadValue)
		}
	}
	return res, nil
}

// Generate is the one-call entry point: tokenize, compile, pad.
func Generate(name string, src []byte, opt Options) (*Result, error) {
	spec, err := Parse(name, src, opt)
	if err != nil {
		return nil, err
	}
	return Compile(spec, opt)
}

// expandRules turns each microcode rule into the set of addresses it
// matches and writes the packed signal bytes into the images. The first
// rule to claim an address owns it: later explicit rules error out, the
// catch rule silently skips.
func expandRules(d *diag, sec section, res *Result, opt Options) ([]rom.Image, error) {
	address := res.Address
	signals := res.Signals

	// Under catch-padding the pattern spans every address line of the chip,
	// so the catch rule also fills the region above total_address_bits.
	addrWidth := address.TotalAddressBits
	if opt.Pad == PadCatch {
		addrWidth = res.Rom.AddressBits
	}

	imageSize := 1 << addrWidth
	images := make([]rom.Image, res.Rom.RomCount)
	for i := range images {
		images[i] = make(rom.Image, imageSize)
	}

	visited := make([]int, imageSize)
	signalUsed := make([]bool, len(signals))
	opcodeUsed := make(map[string]bool, len(res.Opcodes))
	catchRuleDefined := false
	pack := res.Packing()

	err := eachLine(d, sec, func(line string) error {
		operands := split(line, "->", true)
		if len(operands) == 1 {
			return d.errorf(`expected "->" in microcode rule.`)
		}
		if len(operands) != 2 {
			return d.errorf("invalid format in microcode definition, should be (<OPCODE>:<CYCLE>:<FLAGS> | catch) -> <SIG1>, ...")
		}

		pattern := make([]byte, addrWidth)
		for i := range pattern {
			pattern[i] = 'x'
		}
		// Fields sit at fixed distances from the low end of the pattern, so
		// extra wildcard width on the high side is preserved.
		insert := func(bits string, bitsStart int) {
			copy(pattern[len(pattern)-bitsStart-len(bits):], bits)
		}

		catchAll := operands[0] == "catch"
		if !catchAll {
			lhs := split(operands[0], ":", false)
			if len(lhs) < 2 || len(lhs) > 3 {
				return d.errorf("expected ':' before '->' in rule definition.")
			}
			if len(lhs) == 2 {
				lhs = append(lhs, "")
			}

			if spec := lhs[0]; spec != "x" && spec != "X" {
				value, ok := res.Opcodes[spec]
				if !ok {
					return d.errorf("opcode %q not declared in opcode section.", spec)
				}
				opcodeUsed[spec] = true
				insert(toBinaryString(value, address.Opcode.Bits), address.Opcode.BitsStart)
			}

			if spec := lhs[1]; spec != "x" && spec != "X" {
				value, ok := parseUint(spec, 10)
				if !ok {
					return d.errorf("cycle number (%s) is not a valid decimal number.", spec)
				}
				cycleStr := toBinaryString(value, address.Cycle.Bits)
				if len(cycleStr) > address.Cycle.Bits {
					return d.errorf("cycle number (%d) does not fit inside %d bits.", value, address.Cycle.Bits)
				}
				insert(cycleStr, address.Cycle.BitsStart)
			}

			flagStr := lhs[2]
			if len(flagStr) != address.Flags.Bits {
				return d.errorf("number of flag bits (%d) does not match number of flag bits "+
					"defined in the address section (%d).", len(flagStr), address.Flags.Bits)
			}
			if flagStr != "" {
				for i := 0; i < len(flagStr); i++ {
					c := flagStr[i]
					if c != '0' && c != '1' && c != 'x' && c != 'X' {
						return d.errorf("invalid flag bit '%c'; can only be 0, 1 or x (wildcard).", c)
					}
				}
				insert(flagStr, address.Flags.BitsStart)
			}

			catchAll = true
			for i := range pattern {
				if pattern[i] == 'X' {
					pattern[i] = 'x'
				}
				if pattern[i] != 'x' {
					catchAll = false
				}
			}
		}
		if catchAll {
			catchRuleDefined = true
		}

		var bitvector uint64
		for _, name := range split(operands[1], ",", false) {
			idx := signals.Index(name)
			if idx < 0 {
				return d.errorf("signal %q not declared in signal section.", name)
			}
			bitvector |= 1 << idx
			signalUsed[idx] = true
		}

		for segment := 0; segment < pack.Segments(); segment++ {
			if pack.Segments() > 1 {
				insert(toBinaryString(uint64(segment), address.Segment.Bits), address.Segment.BitsStart)
			}

			err := forEachMatch(pattern, func(addr int) error {
				if visited[addr] != 0 {
					if !catchAll {
						return d.errorf("rule overlaps with rule previously defined on line %d.", visited[addr])
					}
					return nil
				}
				for chip := 0; chip < res.Rom.RomCount; chip++ {
					images[chip][addr] = pack.ChunkByte(bitvector, chip, segment)
				}
				visited[addr] = d.line
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	unused := make([]string, 0)
	for name := range res.Opcodes {
		if !opcodeUsed[name] {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	for _, name := range unused {
		d.warnf("unused opcode %q.", name)
	}
	for idx, name := range signals {
		if !signalUsed[idx] {
			d.warnf("unused signal %q.", name)
		}
	}

	if opt.Pad == PadCatch && !catchRuleDefined {
		return nil, d.errorf("no catch rule defined. This is mandatory when using '--pad catch'.")
	}

	return images, nil
}

// forEachMatch calls fn with every address matching the pattern, expanding
// wildcard positions in place and restoring them afterwards.
func forEachMatch(pattern []byte, fn func(addr int) error) error {
	var walk func(idx int) error
	walk = func(idx int) error {
		if idx == len(pattern) {
			addr, err := strconv.ParseUint(string(pattern), 2, 64)
			if err != nil {
				return err
			}
			return fn(int(addr))
		}
		if pattern[idx] != 'x' {
			return walk(idx + 1)
		}
		pattern[idx] = '0'
		if err := walk(idx + 1); err != nil {
			pattern[idx] = 'x'
			return err
		}
		pattern[idx] = '1'
		err := walk(idx + 1)
		pattern[idx] = 'x'
		return err
	}
	return walk(0)
}
