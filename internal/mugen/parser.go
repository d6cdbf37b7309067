package mugen

import "strings"

// eachLine feeds the non-empty lines of a section body to fn, keeping the
// diagnostic line counter in step with the source.
func eachLine(d *diag, sec section, fn func(line string) error) error {
	d.line = sec.line
	for _, ln := range strings.Split(sec.body, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			if err := fn(ln); err != nil {
				return err
			}
		}
		d.line++
	}
	return nil
}

func checkIdentifier(d *diag, ident string) error {
	if ident == "" {
		return d.errorf("empty identifier.")
	}
	c := ident[0]
	if !isAlpha(c) && c != '_' {
		return d.errorf("identifier %q does not start with a letter or underscore.", ident)
	}
	for i := 0; i < len(ident); i++ {
		c := ident[i]
		if isSpace(c) {
			return d.errorf("identifier %q can not contain whitespace.", ident)
		}
		if !isAlpha(c) && !isDigit(c) && c != '_' {
			return d.errorf("identifier %q contains invalid character: '%c'.", ident, c)
		}
	}
	if ident == "x" || ident == "X" {
		return d.errorf(`"x" and "X" may not be used as identifiers.`)
	}
	return nil
}

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func parseRomSpecs(d *diag, sec section) (RomSpecs, error) {
	specs := RomSpecs{RomCount: 1}
	done := false

	err := eachLine(d, sec, func(line string) error {
		if done {
			return d.errorf("rom specification can only contain at most 1 non-empty line.")
		}

		values := split(line, "x", false)
		if len(values) < 2 || len(values) > 3 {
			return d.errorf("invalid format for rom specification, should be <NUMBER OF WORDS> x <BITS PER WORD> " +
				"or <NUMBER OF WORDS> x <BITS PER WORD> x <NUMBER OF CHIPS>.")
		}

		words, ok := parseUint(values[0], 10)
		if !ok {
			return d.errorf("specified number of words (%s) is not a valid decimal number.", values[0])
		}
		if words == 0 {
			return d.errorf("specified number of words (%d) must be a positive integer.", words)
		}
		if !isPowerOfTwo(words) {
			return d.errorf("specified number of words (%d) must be a power of two.", words)
		}

		bitsPerWord, ok := parseUint(values[1], 10)
		if !ok {
			return d.errorf("specified number of bits per word (%s) is not a valid decimal number.", values[1])
		}
		if bitsPerWord != 8 {
			return d.errorf("only 8 bit words are currently supported.")
		}

		if len(values) == 3 {
			chips, ok := parseUint(values[2], 10)
			if !ok {
				return d.errorf("specified number of rom chips (%s) is not a valid decimal number.", values[2])
			}
			if chips == 0 {
				return d.errorf("number of rom chips (%d) must be a positive integer.", chips)
			}
			specs.RomCount = int(chips)
		}

		specs.WordCount = int(words)
		specs.BitsPerWord = int(bitsPerWord)
		done = true
		return nil
	})
	if err != nil {
		return RomSpecs{}, err
	}
	if !done {
		return RomSpecs{}, d.errorf("missing rom specification, expected <NUMBER OF WORDS> x <BITS PER WORD>.")
	}

	specs.AddressBits = bitsNeeded(uint64(specs.WordCount))
	return specs, nil
}

func parseAddressMapping(d *diag, sec section, romSpecs RomSpecs) (AddressMapping, error) {
	var address AddressMapping
	count := 0

	// assign claims the next count bits for one field. minBits is 1 for the
	// mandatory fields, 0 for flags and segment.
	assign := func(field *BitField, ident string, bits int, minBits int) error {
		if field.Bits > 0 {
			return d.errorf("multiple definitions of %q bits.", ident)
		}
		if bits < minBits {
			return d.errorf("number of bits must be a positive integer.")
		}
		field.Bits = bits
		field.BitsStart = count
		count += bits
		return nil
	}

	rhsError := func(ident, rhs string) error {
		return d.errorf("right hand side of %q (%s) is not valid. "+
			"Should be either a number or a list of identifiers (when specifying the flag bits).", ident, rhs)
	}

	err := eachLine(d, sec, func(line string) error {
		operands := split(line, ":", false)
		if len(operands) != 2 {
			return d.errorf("invalid format for address specifier, should be <IDENTIFIER>: <NUMBER OF BITS>.")
		}
		ident, rhs := operands[0], operands[1]

		switch ident {
		case "cycle", "opcode":
			v, ok := parseUint(rhs, 10)
			if !ok {
				return rhsError(ident, rhs)
			}
			field := &address.Cycle
			if ident == "opcode" {
				field = &address.Opcode
			}
			return assign(field, ident, int(v), 1)

		case "flags":
			if v, ok := parseUint(rhs, 10); ok {
				return assign(&address.Flags, ident, int(v), 0)
			}
			labels := split(rhs, ",", false)
			if len(labels) == 0 {
				return rhsError(ident, rhs)
			}
			seen := make(map[string]bool, len(labels))
			for _, label := range labels {
				if err := checkIdentifier(d, label); err != nil {
					return err
				}
				if seen[label] {
					d.warnf("duplicate flag %q.", label)
				}
				seen[label] = true
			}
			address.FlagLabels = labels
			return assign(&address.Flags, ident, len(labels), 0)

		case "segment":
			v, ok := parseUint(rhs, 10)
			if !ok {
				return rhsError(ident, rhs)
			}
			return assign(&address.Segment, ident, int(v), 0)

		default:
			return d.errorf("unknown address field %q.", ident)
		}
	})
	if err != nil {
		return AddressMapping{}, err
	}

	if count > romSpecs.AddressBits {
		return AddressMapping{}, d.errorf("Total number of bits used in address specification (%d) "+
			"exceeds number of address lines of the ROM (%d).", count, romSpecs.AddressBits)
	}
	if address.Opcode.Bits == 0 {
		return AddressMapping{}, d.errorf("number of opcode bits must be specified.")
	}
	if address.Cycle.Bits == 0 {
		return AddressMapping{}, d.errorf("number of cycle bits must be specified.")
	}

	address.TotalAddressBits = count
	return address, nil
}

func parseSignals(d *diag, sec section, romSpecs RomSpecs, address AddressMapping) (Signals, error) {
	var signals Signals

	err := eachLine(d, sec, func(line string) error {
		if err := checkIdentifier(d, line); err != nil {
			return err
		}
		if signals.Index(line) >= 0 {
			return d.errorf("duplicate definition of signal %q.", line)
		}
		signals = append(signals, line)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(signals) > 64 {
		return nil, d.errorf("more than 64 signals declared.")
	}

	romCount := romSpecs.RomCount
	segmentBits := address.Segment.Bits
	chunks := (len(signals) + 7) / 8

	warned := false
	if chunks < romCount {
		d.warnf("for %d signals, only %d roms are necessary to store all of them.", len(signals), chunks)
	}
	if chunks == romCount && segmentBits > 0 {
		d.warnf("for %d signals and %d rom chips, using segmented roms is not necessary.", len(signals), romCount)
		warned = true
	}
	segmentBitsRequired := bitsNeeded(uint64((chunks + romCount - 1) / romCount))
	if segmentBitsRequired < segmentBits && !warned {
		d.warnf("for %d signals, it is sufficient to use only %d segment bit(s) (when using %d ROM chips).",
			len(signals), segmentBitsRequired, romCount)
	}

	partsAvailable := romCount << segmentBits
	if chunks > partsAvailable {
		return nil, d.errorf("too many signals declared (%d). In this configuration (%d rom chip(s), %d segment bit(s)), "+
			"a maximum of %d signals can be declared.", len(signals), romCount, segmentBits, partsAvailable*8)
	}

	return signals, nil
}

func parseOpcodes(d *diag, sec section, address AddressMapping) (Opcodes, error) {
	opcodes := make(Opcodes)
	var order []string

	err := eachLine(d, sec, func(line string) error {
		operands := split(line, "=", false)
		if len(operands) == 1 {
			return d.errorf(`expected "=" in opcode definition.`)
		}
		if len(operands) != 2 {
			return d.errorf("incorrect opcode format, should be of the form <OPCODE> = <HEX VALUE>.")
		}

		ident, rhs := operands[0], operands[1]
		if err := checkIdentifier(d, ident); err != nil {
			return err
		}
		value, ok := parseUint(rhs, 16)
		if !ok {
			return d.errorf("value assigned to opcode %q (%s) is not a valid hexadecimal number.", ident, rhs)
		}

		maxBits := address.Opcode.Bits
		if value >= 1<<maxBits {
			return d.errorf("value assigned to opcode %q (%d) does not fit inside %d bits.", ident, value, maxBits)
		}

		if _, dup := opcodes[ident]; dup {
			return d.errorf("duplicate definition of opcode %q.", ident)
		}
		for _, other := range order {
			if opcodes[other] == value {
				d.warnf("opcodes %q and %q are defined with the same value (%d).", ident, other, value)
			}
		}

		opcodes[ident] = value
		order = append(order, ident)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return opcodes, nil
}
