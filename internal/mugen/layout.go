package mugen

import (
	"fmt"
	"strings"
)

// LayoutReport renders the signal-to-bit assignment of every chip and
// segment, followed by the role of each address line.
func LayoutReport(res *Result) string {
	var b strings.Builder
	pack := res.Packing()

	for chip := 0; chip < res.Rom.RomCount; chip++ {
		for segment := 0; segment < pack.Segments(); segment++ {
			fmt.Fprintf(&b, "[ROM %d, Segment %d] {\n", chip, segment)
			for bit := 0; bit < 8; bit++ {
				idx := pack.SignalIndex(chip, segment, bit)
				name := "UNUSED"
				if idx < len(res.Signals) {
					name = res.Signals[idx]
				}
				fmt.Fprintf(&b, "  %d: %s\n", bit, name)
			}
			b.WriteString("}\n\n")
		}
	}

	address := res.Address
	roles := make([]string, res.Rom.AddressBits)
	for bit := 0; bit < address.Opcode.Bits; bit++ {
		roles[address.Opcode.BitsStart+bit] = fmt.Sprintf("OPCODE BIT %d", bit)
	}
	for bit := 0; bit < address.Cycle.Bits; bit++ {
		roles[address.Cycle.BitsStart+bit] = fmt.Sprintf("CYCLE BIT %d", bit)
	}
	for bit := 0; bit < address.Flags.Bits; bit++ {
		if len(address.FlagLabels) > 0 {
			roles[address.Flags.BitsStart+bit] = address.FlagLabels[len(address.FlagLabels)-bit-1]
		} else {
			roles[address.Flags.BitsStart+bit] = fmt.Sprintf("FLAG BIT %d", bit)
		}
	}
	for bit := 0; bit < address.Segment.Bits; bit++ {
		roles[address.Segment.BitsStart+bit] = fmt.Sprintf("SEGMENT BIT %d", bit)
	}

	b.WriteString("[Address Layout] {\n")
	for bit, role := range roles {
		if role == "" {
			role = "UNUSED"
		}
		fmt.Fprintf(&b, "  %d: %s\n", bit, role)
	}
	b.WriteString("}\n")

	return b.String()
}
