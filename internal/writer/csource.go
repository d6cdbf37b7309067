package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pborges/mugen/internal/mugen"
)

// CSource writes a single C/C++ source file declaring one byte array per
// chip, for projects that compile the microcode straight into a firmware
// or emulator build.
type CSource struct {
	filename string
}

func NewCSource(filename string) *CSource {
	return &CSource{filename: filename}
}

func (w *CSource) Extensions() []string {
	return []string{".c", ".cc", ".cpp", ".cxx"}
}

func (w *CSource) Write(res *mugen.Result) (string, error) {
	src := Render(w.filename, res)
	if err := os.WriteFile(w.filename, []byte(src), 0644); err != nil {
		return "", errors.Wrapf(err, "could not write output file %q", w.filename)
	}

	var report strings.Builder
	fmt.Fprintf(&report, "Successfully generated %d images from %s:\n\n", len(res.Images), res.SpecFile)
	for idx := range res.Images {
		fmt.Fprintf(&report, "  ROM %d: %s (%s, %d bytes)\n", idx, w.filename, ArrayName(w.filename, idx, len(res.Images)), len(res.Images[idx]))
	}
	return report.String(), nil
}

// Render produces the source text without touching the filesystem.
func Render(filename string, res *mugen.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/* Generated by mugen from %s. */\n\n", res.SpecFile)
	b.WriteString("#include <stddef.h>\n")

	for idx, img := range res.Images {
		name := ArrayName(filename, idx, len(res.Images))
		fmt.Fprintf(&b, "\nunsigned char const %s[%d] = {\n", name, len(img))
		for i, v := range img {
			if i%12 == 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "0x%02x,", v)
			if i%12 == 11 || i == len(img)-1 {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString("};\n")
		fmt.Fprintf(&b, "size_t const %s_size = %d;\n", name, len(img))
	}
	return b.String()
}

// ArrayName derives the C identifier for chip idx from the output
// filename: the base name with non-identifier characters replaced, plus a
// chip suffix when there is more than one image.
func ArrayName(filename string, idx, count int) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var b strings.Builder
	for i, r := range base {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		name = "rom"
	}
	if count > 1 {
		name = fmt.Sprintf("%s_%d", name, idx)
	}
	return name
}
