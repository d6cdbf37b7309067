package writer

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/pborges/mugen/internal/mugen"
)

// Binary writes one raw image file per chip. A single chip writes to the
// filename as given; multiple chips append .0, .1, ...
type Binary struct {
	filename string
}

func NewBinary(filename string) *Binary {
	return &Binary{filename: filename}
}

func (w *Binary) Extensions() []string {
	return []string{".bin", ".rom"}
}

func (w *Binary) Write(res *mugen.Result) (string, error) {
	files := make([]string, 0, len(res.Images))
	for idx, img := range res.Images {
		filename := w.filename
		if len(res.Images) > 1 {
			filename = fmt.Sprintf("%s.%d", w.filename, idx)
		}
		if err := os.WriteFile(filename, img, 0644); err != nil {
			return "", errors.Wrapf(err, "could not write output file %q", filename)
		}
		files = append(files, filename)
	}

	var report strings.Builder
	fmt.Fprintf(&report, "Successfully generated %d images from %s:\n\n", len(res.Images), res.SpecFile)
	for idx, filename := range files {
		fmt.Fprintf(&report, "  ROM %d: %s (%d bytes)\n", idx, filename, len(res.Images[idx]))
	}
	return report.String(), nil
}
