// Package writer persists compiled results. The output format is selected
// by the extension of the output filename; extensions nobody claims fall
// back to raw binary.
package writer

import (
	"path/filepath"

	"github.com/pborges/mugen/internal/mugen"
)

// A Writer emits a compiled result in one output format. Write returns a
// human-readable report of what was produced.
type Writer interface {
	Extensions() []string
	Write(res *mugen.Result) (report string, err error)
}

// For selects the writer handling the extension of filename.
func For(filename string) Writer {
	ext := filepath.Ext(filename)
	for _, w := range []Writer{NewBinary(filename), NewCSource(filename)} {
		for _, e := range w.Extensions() {
			if e == ext {
				return w
			}
		}
	}
	return NewBinary(filename)
}
