package rom

// Image is the byte buffer written to a single ROM chip.
type Image []byte

// Packing describes how the signal bitvector is distributed across the
// physical chips and their time-segments. Signals are packed eight to a
// byte; byte n lands on chip n%RomCount in segment n/RomCount.
type Packing struct {
	RomCount    int
	SegmentBits int
	LSBFirst    bool
}

// Segments returns the number of time-segments per chip.
func (p Packing) Segments() int {
	return 1 << p.SegmentBits
}

// Parts returns the total number of signal bytes available, chips times
// segments.
func (p Packing) Parts() int {
	return p.RomCount * p.Segments()
}

// Chunk returns the byte index holding signal i.
func (p Packing) Chunk(i int) int {
	return i / 8
}

// Slot maps signal index i to its (chip, segment, bit) triple. The bit is
// the position within the stored byte, honoring LSBFirst.
func (p Packing) Slot(i int) (chip, segment, bit int) {
	chunk := i / 8
	bit = i % 8
	if !p.LSBFirst {
		bit = 7 - bit
	}
	return chunk % p.RomCount, chunk / p.RomCount, bit
}

// SignalIndex is the inverse of Slot: it returns the signal index stored at
// the given bit of the byte chip holds for segment. The bit argument is the
// physical bit position within the stored byte.
func (p Packing) SignalIndex(chip, segment, bit int) int {
	if !p.LSBFirst {
		bit = 7 - bit
	}
	return (segment*p.RomCount+chip)*8 + bit
}

// ChunkByte extracts the byte for the given chip and segment from a packed
// signal bitvector, applying bit reversal when packing MSB-first.
func (p Packing) ChunkByte(bitvector uint64, chip, segment int) byte {
	chunk := segment*p.RomCount + chip
	b := byte(bitvector >> (8 * chunk))
	if !p.LSBFirst {
		b = ReverseBits(b)
	}
	return b
}

// ReverseBits reverses the eight bits of a byte.
func ReverseBits(b byte) byte {
	b = b>>4 | b<<4
	b = b>>2&0x33 | b<<2&0xcc
	b = b>>1&0x55 | b<<1&0xaa
	return b
}

// Pad extends the image to n bytes with the value v. Images already at
// least n bytes long are returned unchanged.
func (img Image) Pad(n int, v byte) Image {
	for len(img) < n {
		img = append(img, v)
	}
	return img
}
