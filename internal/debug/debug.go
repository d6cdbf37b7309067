// Package debug implements the interactive session that lets a user poke
// at a compiled result before it is written: inspect layout, toggle flag
// bits, and watch which signals fire for an opcode cycle by cycle.
package debug

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/peterh/liner"

	"github.com/pborges/mugen/internal/mugen"
	"github.com/pborges/mugen/internal/rom"
)

// action is what a command tells the loop to do next.
type action int

const (
	actContinue action = iota
	actQuit            // leave without writing
	actWrite           // leave and write the images
)

type command struct {
	names []string
	desc  string
	help  string
	run   func(s *session, args []string) action
}

type session struct {
	res     *mugen.Result
	outBase string
	out     io.Writer
	state   []bool // flag state, index 0 = least significant flag bit
	cmds    []*command
	byName  map[string]*command
}

// Session runs the interactive debugger on a compiled result. It returns
// true when the user asked for the images to be written to disk.
func Session(res *mugen.Result, outBase string) (bool, error) {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	s := newSession(res, outBase, nil)
	fmt.Fprintf(s.out, "<Mugen Debug> Type \"help\" for a list of available commands.\n\n")

	prompt := "[" + res.SpecFile + "]$ "
	for {
		input, err := ln.Prompt(prompt)
		if err == liner.ErrPromptAborted || err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		args := strings.Fields(input)
		if len(args) == 0 {
			continue
		}
		ln.AppendHistory(input)

		switch s.exec(args) {
		case actQuit:
			return false, nil
		case actWrite:
			return true, nil
		}
	}
}

func newSession(res *mugen.Result, outBase string, out io.Writer) *session {
	if out == nil {
		out = os.Stdout
	}
	s := &session{
		res:     res,
		outBase: outBase,
		out:     out,
		state:   make([]bool, res.Address.Flags.Bits),
		byName:  make(map[string]*command),
	}
	s.register()
	return s
}

func (s *session) exec(args []string) action {
	cmd, ok := s.byName[args[0]]
	if !ok {
		s.usage(args[0], "Unknown command.")
		return actContinue
	}
	return cmd.run(s, args)
}

func (s *session) usage(cmd string, format string, args ...interface{}) {
	fmt.Fprintf(s.out, "Invalid use of %q: ", cmd)
	fmt.Fprintf(s.out, format+"\n", args...)
	fmt.Fprintf(s.out, "Type \"help\" for more information.\n")
}

func (s *session) register() {
	add := func(c *command) {
		s.cmds = append(s.cmds, c)
		for _, name := range c.names {
			s.byName[name] = c
		}
	}

	add(&command{
		names: []string{"help", "h"},
		desc:  "Display this text.",
		run: func(s *session, args []string) action {
			switch {
			case len(args) == 1:
				s.printHelp()
			case len(args) > 2:
				s.usage(args[0], "command expects at most 1 argument.")
			default:
				s.printCommandHelp(args[1])
			}
			return actContinue
		},
	})

	add(&command{
		names: []string{"info", "i"},
		desc:  "Display image information.",
		run: func(s *session, args []string) action {
			if len(args) != 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			s.printInfo()
			return actContinue
		},
	})

	add(&command{
		names: []string{"flags", "f"},
		desc:  "Display current flag-state.",
		run: func(s *session, args []string) action {
			if len(args) > 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			s.printState()
			return actContinue
		},
	})

	add(&command{
		names: []string{"set", "s"},
		desc:  "Set a flag to 1.",
		help: "  This command accepts one or more flags, separated by a space.\n" +
			"  The flags can be names (if the specification file uses named flags) or indices: (0 - #flag-bits).\n" +
			"  Alternatively, a '*' can be used to set all flags at once.\n" +
			"  \n" +
			"  Examples:\n" +
			"    set Z\n" +
			"    set Z C\n" +
			"    set 0 1 2\n" +
			"    set *\n",
		run: func(s *session, args []string) action {
			if len(args) < 2 {
				s.usage(args[0], "command expects at least 1 flag name, index or \"*\".")
				return actContinue
			}
			if s.setOrReset(args, true) {
				s.printState()
			}
			return actContinue
		},
	})

	add(&command{
		names: []string{"reset", "r"},
		desc:  "Reset a flag to 0.",
		help: "  This command resets the given flags to 0 in the same way \"set\" sets flags.\n" +
			"  See \"help set\" for more details.\n",
		run: func(s *session, args []string) action {
			if len(args) < 2 {
				s.usage(args[0], "command expects at least 1 flag name, index or \"*\".")
				return actContinue
			}
			if s.setOrReset(args, false) {
				s.printState()
			}
			return actContinue
		},
	})

	add(&command{
		names: []string{"run", "exec", "x"},
		desc:  "Run an opcode.",
		help: "  This command simulates running an opcode in the current state (see set/reset).\n" +
			"  The opcode is passed as its first argument: \"run ADD\".\n" +
			"  When no additional argument is passed, all available cycles (limited by the number of cycle bits)\n" +
			"  will be handled. Alternatively, a second argument can be provided to limit this number.\n" +
			"  For example, to simulate the ADD opcode for 2 cycles:\n" +
			"     run ADD 2\n",
		run: func(s *session, args []string) action {
			if len(args) < 2 {
				s.usage(args[0], "command expects at least one argument (run <opcode>).")
				return actContinue
			}
			if len(args) > 3 {
				s.usage(args[0], "command expects at most two arguments (run <opcode> <cycles>).")
				return actContinue
			}

			maxCycles := 1 << s.res.Address.Cycle.Bits
			cycles := maxCycles
			if len(args) == 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil || n < 0 {
					s.usage(args[0], "cycle number %q is not a number.", args[2])
					return actContinue
				}
				if n > maxCycles {
					s.usage(args[0], "cycle number (%d) exceeds the maximum number of allowed cycles (%d).", n, maxCycles)
					return actContinue
				}
				cycles = n
			}
			s.runOpcode(args[1], cycles)
			return actContinue
		},
	})

	add(&command{
		names: []string{"signals", "S"},
		desc:  "Display the list of signals.",
		run: func(s *session, args []string) action {
			if len(args) != 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			for _, signal := range s.res.Signals {
				fmt.Fprintf(s.out, "  %s\n", signal)
			}
			return actContinue
		},
	})

	add(&command{
		names: []string{"opcodes", "o"},
		desc:  "Display the list of opcodes and their values.",
		run: func(s *session, args []string) action {
			if len(args) != 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			s.printOpcodes()
			return actContinue
		},
	})

	add(&command{
		names: []string{"layout", "l"},
		desc:  "Display the memory layout of the images.",
		run: func(s *session, args []string) action {
			if len(args) != 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			fmt.Fprint(s.out, s.res.Layout)
			return actContinue
		},
	})

	add(&command{
		names: []string{"dump"},
		desc:  "Dump the compiled result structure.",
		run: func(s *session, args []string) action {
			if len(args) != 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			printer := pp.New()
			printer.SetOutput(s.out)
			printer.Println(s.res)
			return actContinue
		},
	})

	add(&command{
		names: []string{"write", "w"},
		desc:  "Write the results to disk.",
		run: func(s *session, args []string) action {
			if len(args) != 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			return actWrite
		},
	})

	add(&command{
		names: []string{"exit", "quit", "q"},
		desc:  "Exit without writing the results to disk.",
		run: func(s *session, args []string) action {
			if len(args) != 1 {
				s.usage(args[0], "command does not expect any arguments.")
				return actContinue
			}
			return actQuit
		},
	})
}

func (s *session) printHelp() {
	type entry struct{ names, desc string }
	entries := make([]entry, 0, len(s.cmds))
	maxLen := 0
	for _, c := range s.cmds {
		names := strings.Join(c.names, "|")
		if len(names) > maxLen {
			maxLen = len(names)
		}
		entries = append(entries, entry{names, c.desc})
	}

	fmt.Fprintf(s.out, "\nAvailable commands:\n")
	for _, e := range entries {
		fmt.Fprintf(s.out, "%*s - %s\n", maxLen+2, e.names, e.desc)
	}
	fmt.Fprintf(s.out, "\nType \"help <command>\" for more information about a specific command.\n\n")
}

func (s *session) printCommandHelp(name string) {
	cmd, ok := s.byName[name]
	if !ok {
		s.usage(name, "Unknown command.")
		return
	}
	if cmd.help == "" {
		fmt.Fprintf(s.out, "No additional help available for command %q.\n", name)
		return
	}
	fmt.Fprintf(s.out, "\n%s\n", cmd.help)
}

func (s *session) printInfo() {
	property := func(name string) {
		fmt.Fprintf(s.out, "%15s: ", name)
	}

	n := len(s.res.Images)
	property("#images")
	fmt.Fprintf(s.out, "%d -> ", n)
	for idx := 0; idx < n; idx++ {
		name := s.outBase
		if n > 1 {
			name = fmt.Sprintf("%s.%d", s.outBase, idx)
		}
		fmt.Fprint(s.out, name)
		if idx != n-1 {
			fmt.Fprint(s.out, ", ")
		}
	}
	fmt.Fprintln(s.out)

	property("image size")
	size := len(s.res.Images[0])
	padded := "padded"
	if size <= 1<<s.res.Address.TotalAddressBits {
		padded = "not padded"
	}
	fmt.Fprintf(s.out, "%d bytes (%s)\n", size, padded)

	property("segmented")
	if bits := s.res.Address.Segment.Bits; bits > 0 {
		fmt.Fprintf(s.out, "yes, %d segments per image.\n", 1<<bits)
	} else {
		fmt.Fprintln(s.out, "no")
	}

	property("#signals")
	fmt.Fprintln(s.out, len(s.res.Signals))
	property("#opcodes")
	fmt.Fprintln(s.out, len(s.res.Opcodes))
}

func (s *session) printOpcodes() {
	sorted := make([]string, 1<<s.res.Address.Opcode.Bits)
	maxWidth := 0
	for name, value := range s.res.Opcodes {
		sorted[value] = name
		if len(name) > maxWidth {
			maxWidth = len(name)
		}
	}
	for value, name := range sorted {
		if name == "" {
			continue
		}
		fmt.Fprintf(s.out, "%*s = 0x%02x\n", maxWidth+2, name, value)
	}
}

// printState renders the flag state as a table, most significant flag
// first, matching the order of the flag labels.
func (s *session) printState() {
	flagBits := s.res.Address.Flags.Bits
	var labels, values, delims strings.Builder
	labels.WriteString("  |")
	values.WriteString("  |")
	delims.WriteString("  +")

	for idx := 0; idx < flagBits; idx++ {
		label := " " + s.flagLabel(idx) + " "
		value := []byte(strings.Repeat(" ", len(label)))
		digit := byte('0')
		if s.state[flagBits-idx-1] {
			digit = '1'
		}
		value[len(label)/2] = digit

		labels.WriteString(label + "|")
		values.WriteString(string(value) + "|")
		delims.WriteString(strings.Repeat("-", len(label)) + "+")
	}

	fmt.Fprintln(s.out, delims.String())
	fmt.Fprintln(s.out, labels.String())
	fmt.Fprintln(s.out, delims.String())
	fmt.Fprintln(s.out, values.String())
	fmt.Fprintln(s.out, delims.String())
}

// flagLabel returns the display label of display column idx (0 = most
// significant flag bit).
func (s *session) flagLabel(idx int) string {
	if len(s.res.Address.FlagLabels) > 0 {
		return s.res.Address.FlagLabels[idx]
	}
	return fmt.Sprintf("FLAG %d", s.res.Address.Flags.Bits-idx-1)
}

// setOrReset applies value to every flag named in args[1:]. Arguments are
// flag labels, bit indices, or * for all. Reports usage errors itself and
// returns false on the first bad argument.
func (s *session) setOrReset(args []string, value bool) bool {
	flagBits := s.res.Address.Flags.Bits
	for _, arg := range args[1:] {
		if arg == "*" {
			for i := range s.state {
				s.state[i] = value
			}
			return true
		}

		bit := -1
		if n, err := strconv.Atoi(arg); err == nil {
			bit = n
		} else {
			if len(s.res.Address.FlagLabels) == 0 {
				s.usage(args[0], "Specification file does not name its flags, "+
					"so arguments must be bit indices (0 - %d) or \"*\".", flagBits-1)
				return false
			}
			for idx, label := range s.res.Address.FlagLabels {
				if label == arg {
					bit = flagBits - idx - 1
					break
				}
			}
		}
		if bit < 0 || bit >= flagBits {
			s.usage(args[0], "Invalid flag %q.", arg)
			return false
		}
		s.state[bit] = value
	}
	return true
}

// runOpcode prints, for each cycle, the signals the images assert for the
// given opcode under the current flag state.
func (s *session) runOpcode(opcode string, cycles int) {
	if _, ok := s.res.Opcodes[opcode]; !ok {
		fmt.Fprintf(s.out, "Opcode %q not specified in specification file.\n", opcode)
		return
	}
	for cycle := 0; cycle < cycles; cycle++ {
		fmt.Fprintf(s.out, "  %d: %s\n", cycle, strings.Join(signalsAt(s.res, opcode, s.state, cycle), ", "))
	}
}

// signalsAt decodes the image bytes for (opcode, flag state, cycle) back
// into signal names, in declaration order, deduplicated across segments
// and chips.
func signalsAt(res *mugen.Result, opcode string, state []bool, cycle int) []string {
	address := res.Address
	pack := res.Packing()

	pattern := []byte(strings.Repeat("0", address.TotalAddressBits))
	insert := func(bits string, bitsStart int) {
		copy(pattern[len(pattern)-bitsStart-len(bits):], bits)
	}

	insert(binaryString(res.Opcodes[opcode], address.Opcode.Bits), address.Opcode.BitsStart)

	flagBits := make([]byte, address.Flags.Bits)
	for idx := 0; idx < address.Flags.Bits; idx++ {
		digit := byte('0')
		if state[idx] {
			digit = '1'
		}
		flagBits[len(flagBits)-idx-1] = digit
	}
	insert(string(flagBits), address.Flags.BitsStart)

	insert(binaryString(uint64(cycle), address.Cycle.Bits), address.Cycle.BitsStart)

	seen := make(map[int]bool)
	var active []int
	for segment := 0; segment < pack.Segments(); segment++ {
		if pack.Segments() > 1 {
			insert(binaryString(uint64(segment), address.Segment.Bits), address.Segment.BitsStart)
		}
		addr, _ := strconv.ParseUint(string(pattern), 2, 64)

		for chip := 0; chip < res.Rom.RomCount; chip++ {
			word := res.Images[chip][addr]
			if !res.LSBFirst {
				word = rom.ReverseBits(word)
			}
			for bit := 0; bit < 8; bit++ {
				if word&(1<<bit) == 0 {
					continue
				}
				idx := (segment*res.Rom.RomCount+chip)*8 + bit
				if idx < len(res.Signals) && !seen[idx] {
					seen[idx] = true
					active = append(active, idx)
				}
			}
		}
	}
	sort.Ints(active)

	names := make([]string, 0, len(active))
	for _, idx := range active {
		names = append(names, res.Signals[idx])
	}
	return names
}

func binaryString(n uint64, minBits int) string {
	s := strconv.FormatUint(n, 2)
	if len(s) < minBits {
		s = strings.Repeat("0", minBits-len(s)) + s
	}
	return s
}
