package mugen

import (
	"bytes"
	"strings"
	"testing"
)

func generate(t *testing.T, src string, opt Options) *Result {
	t.Helper()
	if opt.Warnings == nil {
		opt.Warnings = &bytes.Buffer{}
	}
	res, err := Generate("test.mu", []byte(src), opt)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func generateErr(t *testing.T, src string, opt Options) error {
	t.Helper()
	if opt.Warnings == nil {
		opt.Warnings = &bytes.Buffer{}
	}
	_, err := Generate("test.mu", []byte(src), opt)
	if err == nil {
		t.Fatal("expected error")
	}
	return err
}

const basicSpec = `[rom] { 256x8 }
[address] {
    cycle: 4
    opcode: 4
}
[signals] {
    A
    B
    C
}
[opcodes] { OP = 0 }
[microcode] {
    OP:0: -> A, C
}
`

func TestCompileBasic(t *testing.T) {
	res := generate(t, basicSpec, Options{LSBFirst: true})
	if len(res.Images) != 1 {
		t.Fatalf("images = %d", len(res.Images))
	}
	img := res.Images[0]
	if len(img) != 256 {
		t.Fatalf("image size = %d", len(img))
	}
	if img[0] != 0x05 {
		t.Errorf("image[0] = %#02x, want 0x05", img[0])
	}
	for addr := 1; addr < 256; addr++ {
		if img[addr] != 0 {
			t.Fatalf("image[%d] = %#02x, want 0", addr, img[addr])
		}
	}
}

func TestCompileMSBFirst(t *testing.T) {
	res := generate(t, basicSpec, Options{LSBFirst: false})
	if got := res.Images[0][0]; got != 0xa0 {
		t.Errorf("image[0] = %#02x, want 0xa0", got)
	}
}

func TestBitOrderDuality(t *testing.T) {
	lsb := generate(t, basicSpec, Options{LSBFirst: true})
	msb := generate(t, basicSpec, Options{LSBFirst: false})
	for chip := range lsb.Images {
		for addr := range lsb.Images[chip] {
			want := reverseByte(lsb.Images[chip][addr])
			if got := msb.Images[chip][addr]; got != want {
				t.Fatalf("chip %d addr %d: msb %#02x, reversed lsb %#02x", chip, addr, got, want)
			}
		}
	}
}

func reverseByte(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out = out<<1 | b>>i&1
	}
	return out
}

func TestCompileWildcardCycle(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 4
    opcode: 4
}
[signals] { A }
[opcodes] { OP = 0 }
[microcode] {
    OP:x: -> A
}
`
	res := generate(t, src, Options{LSBFirst: true})
	img := res.Images[0]
	for addr := 0; addr < 16; addr++ {
		if img[addr] != 0x01 {
			t.Fatalf("image[%d] = %#02x, want 0x01", addr, img[addr])
		}
	}
	for addr := 16; addr < 256; addr++ {
		if img[addr] != 0x00 {
			t.Fatalf("image[%d] = %#02x, want 0x00", addr, img[addr])
		}
	}
}

func TestCompileOverlap(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 4
    opcode: 4
}
[signals] {
    A
    B
}
[opcodes] { OP = 0 }
[microcode] {
    OP:0: -> A
    OP:x: -> B
}
`
	err := generateErr(t, src, Options{LSBFirst: true})
	want := "test.mu:13: ERROR: rule overlaps with rule previously defined on line 12."
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestCompileCatchFill(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 4
    opcode: 4
}
[signals] {
    A
    B
}
[opcodes] { OP = 0 }
[microcode] {
    OP:0: -> A
    catch -> B
}
`
	res := generate(t, src, Options{LSBFirst: true})
	img := res.Images[0]
	if img[0] != 0x01 {
		t.Errorf("image[0] = %#02x, want 0x01", img[0])
	}
	for addr := 1; addr < 256; addr++ {
		if img[addr] != 0x02 {
			t.Fatalf("image[%d] = %#02x, want 0x02", addr, img[addr])
		}
	}
}

func TestCompileAllWildcardRuleBecomesCatch(t *testing.T) {
	// A rule that is all wildcards after substitution must behave exactly
	// like catch: it fills the rest and never reports an overlap.
	src := `[rom] { 256x8 }
[address] {
    cycle: 4
    opcode: 4
}
[signals] {
    A
    B
}
[opcodes] { OP = 0 }
[microcode] {
    OP:0: -> A
    x:X: -> B
}
`
	res := generate(t, src, Options{LSBFirst: true})
	img := res.Images[0]
	if img[0] != 0x01 || img[1] != 0x02 {
		t.Errorf("image[0..2] = %#02x %#02x", img[0], img[1])
	}
}

func TestCompileSegmentedPacking(t *testing.T) {
	src := `[rom] { 256x8x1 }
[address] {
    opcode: 2
    cycle: 2
    segment: 1
}
[signals] {
    S0
    S1
    S2
    S3
    S4
    S5
    S6
    S7
    S8
    S9
    S10
    S11
    S12
    S13
    S14
    S15
}
[opcodes] { OP = 0 }
[microcode] { OP:0: -> S8 }
`
	res := generate(t, src, Options{LSBFirst: true})
	if len(res.Images) != 1 {
		t.Fatalf("images = %d", len(res.Images))
	}
	img := res.Images[0]
	if len(img) != 32 {
		t.Fatalf("image size = %d, want 32", len(img))
	}
	// Segment 0 half holds chunk 0 (S0-S7): S8 is not in it.
	if img[0] != 0x00 {
		t.Errorf("segment 0 byte = %#02x, want 0x00", img[0])
	}
	// Segment 1 half holds chunk 1 (S8-S15): S8 is bit 0.
	if img[16] != 0x01 {
		t.Errorf("segment 1 byte = %#02x, want 0x01", img[16])
	}
}

func TestCompileMultiChip(t *testing.T) {
	src := `[rom] { 256x8x2 }
[address] {
    cycle: 4
    opcode: 4
}
[signals] {
    S0
    S1
    S2
    S3
    S4
    S5
    S6
    S7
    S8
    S9
}
[opcodes] { OP = 3 }
[microcode] { OP:1: -> S0, S9 }
`
	res := generate(t, src, Options{LSBFirst: true})
	if len(res.Images) != 2 {
		t.Fatalf("images = %d", len(res.Images))
	}
	// opcode 3 sits in the high nibble, cycle 1 in the low nibble.
	addr := 3<<4 | 1
	if got := res.Images[0][addr]; got != 0x01 {
		t.Errorf("chip 0 byte = %#02x, want 0x01", got)
	}
	if got := res.Images[1][addr]; got != 0x02 {
		t.Errorf("chip 1 byte = %#02x, want 0x02", got)
	}
}

func TestCompileFlags(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 2
    opcode: 2
    flags: C, Z
}
[signals] {
    A
    B
}
[opcodes] { JC = 2 }
[microcode] {
    JC:0:1x -> A
    JC:0:0x -> B
}
`
	res := generate(t, src, Options{LSBFirst: true})
	img := res.Images[0]
	// Address: [flags C Z][opcode][cycle], C at bit 5, Z at bit 4.
	base := 2 << 2 // opcode 2, cycle 0
	for _, z := range []int{0, 1} {
		withC := base | 1<<5 | z<<4
		withoutC := base | z<<4
		if img[withC] != 0x01 {
			t.Errorf("image[%#02x] = %#02x, want 0x01", withC, img[withC])
		}
		if img[withoutC] != 0x02 {
			t.Errorf("image[%#02x] = %#02x, want 0x02", withoutC, img[withoutC])
		}
	}
}

func TestCompilePadValue(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 2
    opcode: 2
}
[signals] { A }
[opcodes] { OP = 0 }
[microcode] { OP:0: -> A }
`
	res := generate(t, src, Options{LSBFirst: true, Pad: PadValue, PadValue: 0xea})
	img := res.Images[0]
	if len(img) != 256 {
		t.Fatalf("image size = %d, want 256", len(img))
	}
	if img[0] != 0x01 {
		t.Errorf("image[0] = %#02x", img[0])
	}
	for addr := 16; addr < 256; addr++ {
		if img[addr] != 0xea {
			t.Fatalf("image[%d] = %#02x, want 0xea", addr, img[addr])
		}
	}
}

func TestCompilePadCatch(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 2
    opcode: 2
}
[signals] {
    A
    B
}
[opcodes] { OP = 1 }
[microcode] {
    OP:0: -> A
    catch -> B
}
`
	res := generate(t, src, Options{LSBFirst: true, Pad: PadCatch})
	img := res.Images[0]
	if len(img) != 256 {
		t.Fatalf("image size = %d, want 256", len(img))
	}
	// The explicit rule expands over the unused high address bits too.
	for high := 0; high < 16; high++ {
		addr := high<<4 | 1<<2
		if img[addr] != 0x01 {
			t.Fatalf("image[%#02x] = %#02x, want 0x01", addr, img[addr])
		}
	}
	// Everything else is the catch value.
	if img[0] != 0x02 || img[255] != 0x02 {
		t.Errorf("catch bytes = %#02x %#02x, want 0x02", img[0], img[255])
	}
}

func TestCompilePadCatchRequiresCatchRule(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 2
    opcode: 2
}
[signals] { A }
[opcodes] { OP = 0 }
[microcode] { OP:0: -> A }
`
	err := generateErr(t, src, Options{LSBFirst: true, Pad: PadCatch})
	if !strings.Contains(err.Error(), "no catch rule defined") {
		t.Errorf("error = %q", err)
	}
}

func TestCompileRuleErrors(t *testing.T) {
	header := `[rom] { 256x8 }
[address] {
    cycle: 2
    opcode: 2
    flags: 1
}
[signals] { A }
[opcodes] { OP = 0 }
`
	cases := []struct {
		name, rule, wantErr string
	}{
		{"no arrow", "OP:0:x", `expected "->" in microcode rule`},
		{"two arrows", "OP:0:x -> A -> A", "invalid format in microcode definition"},
		{"no colon", "OP -> A", "expected ':' before '->'"},
		{"unknown opcode", "NOP:0:x -> A", `opcode "NOP" not declared`},
		{"bad cycle", "OP:abc:x -> A", "is not a valid decimal number"},
		{"cycle too large", "OP:4:x -> A", "does not fit inside 2 bits"},
		{"flag length", "OP:0:xx -> A", "number of flag bits (2) does not match"},
		{"missing flags", "OP:0: -> A", "number of flag bits (0) does not match"},
		{"bad flag char", "OP:0:2 -> A", "invalid flag bit '2'"},
		{"unknown signal", "OP:0:x -> A, NOPE", `signal "NOPE" not declared`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := generateErr(t, header+"[microcode] { "+tc.rule+" }\n", Options{LSBFirst: true})
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestCompileEmptyActionClaimsAddress(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 2
    opcode: 2
}
[signals] { A }
[opcodes] { OP = 0 }
[microcode] {
    OP:0: ->
    OP:x: -> A
}
`
	err := generateErr(t, src, Options{LSBFirst: true})
	if !strings.Contains(err.Error(), "rule overlaps") {
		t.Errorf("error = %q", err)
	}
}

func TestCompileUnusedWarnings(t *testing.T) {
	src := `[rom] { 256x8 }
[address] {
    cycle: 2
    opcode: 2
}
[signals] {
    A
    B
}
[opcodes] {
    OP = 0
    NOP = 1
}
[microcode] { OP:0: -> A }
`
	var warnings bytes.Buffer
	generate(t, src, Options{LSBFirst: true, Warnings: &warnings})
	got := warnings.String()
	if !strings.Contains(got, `unused opcode "NOP".`) {
		t.Errorf("warnings = %q, missing unused opcode", got)
	}
	if !strings.Contains(got, `unused signal "B".`) {
		t.Errorf("warnings = %q, missing unused signal", got)
	}
}

func TestCompileAddressCoverage(t *testing.T) {
	// Without a catch rule the written addresses are exactly the union of
	// the rules' expansions: sum of 2^(wildcards) addresses.
	src := `[rom] { 256x8 }
[address] {
    cycle: 3
    opcode: 4
    flags: 1
}
[signals] { A }
[opcodes] { OP = 5 }
[microcode] {
    OP:x:1 -> A
    x:0:0 -> A
}
`
	res := generate(t, src, Options{LSBFirst: true})
	nonZero := 0
	for _, b := range res.Images[0] {
		if b != 0 {
			nonZero++
		}
	}
	// First rule: 2^3 = 8 addresses (cycle wild). Second: 2^4 = 16
	// (opcode wild). Disjoint flag bits, so the union is 24.
	if nonZero != 24 {
		t.Errorf("wrote %d addresses, want 24", nonZero)
	}
}

func TestLayoutReport(t *testing.T) {
	src := `[rom] { 256x8x1 }
[address] {
    opcode: 2
    cycle: 2
    segment: 1
}
[signals] {
    S0
    S1
    S2
    S3
    S4
    S5
    S6
    S7
    S8
}
[opcodes] { OP = 0 }
[microcode] { OP:0: -> S8 }
`
	res := generate(t, src, Options{LSBFirst: true})
	want := `[ROM 0, Segment 0] {
  0: S0
  1: S1
  2: S2
  3: S3
  4: S4
  5: S5
  6: S6
  7: S7
}

[ROM 0, Segment 1] {
  0: S8
  1: UNUSED
  2: UNUSED
  3: UNUSED
  4: UNUSED
  5: UNUSED
  6: UNUSED
  7: UNUSED
}

[Address Layout] {
  0: OPCODE BIT 0
  1: OPCODE BIT 1
  2: CYCLE BIT 0
  3: CYCLE BIT 1
  4: SEGMENT BIT 0
  5: UNUSED
  6: UNUSED
  7: UNUSED
}
`
	if res.Layout != want {
		t.Errorf("layout = %q, want %q", res.Layout, want)
	}
}

func TestLayoutReportFlagLabelsAndMSB(t *testing.T) {
	src := `[rom] { 16x8 }
[address] {
    cycle: 1
    opcode: 1
    flags: C, Z
}
[signals] {
    A
    B
}
[opcodes] { OP = 0 }
[microcode] { OP:0:xx -> A, B }
`
	res := generate(t, src, Options{LSBFirst: false})
	if !strings.Contains(res.Layout, "  6: B\n") || !strings.Contains(res.Layout, "  7: A\n") {
		t.Errorf("layout does not honor MSB-first packing:\n%s", res.Layout)
	}
	if !strings.Contains(res.Layout, "  2: Z\n  3: C\n") {
		t.Errorf("layout flag labels wrong:\n%s", res.Layout)
	}
}
