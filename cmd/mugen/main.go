// Command mugen compiles a microcode specification (.mu) into binary ROM
// images or C source, with an optional interactive debug session.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pborman/getopt/v2"

	"github.com/pborges/mugen/internal/debug"
	"github.com/pborges/mugen/internal/mugen"
	"github.com/pborges/mugen/internal/writer"
)

func main() {
	os.Exit(run())
}

func run() int {
	getopt.SetParameters("<specification-file (.mu)> <output-file>")
	helpFlag := getopt.BoolLong("help", 'h', "display this help message and exit")
	layoutFlag := getopt.BoolLong("layout", 'l', "print the ROM layout report after generation")
	msbFirst := getopt.BoolLong("msb-first", 'm', "store signals starting from the most significant bit")
	padFlag := getopt.StringLong("pad", 'p', "", "pad images to the full ROM size with a hex byte, or \"catch\" to use the catch rule", "value")
	debugFlag := getopt.BoolLong("debug", 'd', "enter an interactive debug session before writing")
	versionFlag := getopt.BoolLong("version", 'v', "print the mugen version and exit")
	getopt.Parse()

	if *helpFlag {
		usage(os.Stdout)
		return 0
	}
	if *versionFlag {
		fmt.Println(mugen.Version())
		return 0
	}
	args := getopt.Args()
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "ERROR: Invalid number of arguments.\n\n")
		usage(os.Stderr)
		return 1
	}

	opt := mugen.Options{LSBFirst: !*msbFirst}
	switch pad := *padFlag; {
	case pad == "":
	case strings.EqualFold(pad, "catch"):
		opt.Pad = mugen.PadCatch
	default:
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(pad, "0x"), "0X"), 16, 8)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: invalid pad value %q, must be a hex byte or \"catch\".\n", pad)
			return 1
		}
		opt.Pad = mugen.PadValue
		opt.PadValue = byte(v)
	}

	specFile, outFile := args[0], args[1]
	src, err := os.ReadFile(specFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not open file %q.\n", specFile)
		return 1
	}

	res, err := mugen.Generate(specFile, src, opt)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *layoutFlag {
		fmt.Println(res.Layout)
	}

	if *debugFlag {
		write, err := debug.Session(res, outFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			return 1
		}
		if !write {
			return 0
		}
	}

	report, err := writer.For(outFile).Write(res)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return 1
	}
	fmt.Print(report)
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Mugen is a microcode generator that converts a specification file\n"+
		"into microcode images suitable for flashing onto ROM chips.\n\n")
	getopt.PrintUsage(w)
	fmt.Fprintf(w, "\nExample:\n  mugen myspec.mu microcode.bin --msb-first --layout\n")
}
