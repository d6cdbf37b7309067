package mugen

import (
	"sort"
	"strings"
)

// The five sections every specification must define.
var requiredSections = []string{"rom", "address", "signals", "opcodes", "microcode"}

// Parse carves the source into named sections and checks that all required
// sections are present. Unknown sections are reported as warnings and
// dropped. The name parameter is used in diagnostics only.
func Parse(name string, src []byte, opt Options) (*Spec, error) {
	return parseSpec(newDiag(name, opt.Warnings), src)
}

func parseSpec(d *diag, src []byte) (*Spec, error) {
	sections, order, err := tokenize(d, src)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(requiredSections))
	for _, name := range requiredSections {
		known[name] = true
	}
	for _, name := range order {
		if !known[name] {
			d.line = sections[name].line
			d.warnf("ignoring unknown section %q.", name)
			delete(sections, name)
		}
	}

	d.line = 0
	missing := make([]string, 0)
	for _, name := range requiredSections {
		if _, ok := sections[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		return nil, d.errorf("missing section: %q.", missing[0])
	}

	return &Spec{File: d.file, sections: sections}, nil
}

type tokenizerState int

const (
	stateTopLevel tokenizerState = iota
	stateSectionHeader
	stateWantBrace
	stateSectionBody
	stateComment
)

// tokenize runs the character state machine over the source. Comments run
// from # to end of line; inside a section body the newline is kept so line
// numbers in later diagnostics stay accurate. Returns the section map and
// the order in which sections appeared.
func tokenize(d *diag, src []byte) (map[string]section, []string, error) {
	state := stateTopLevel
	beforeComment := state

	d.line = 1
	sections := make(map[string]section)
	var order []string
	var name, body strings.Builder
	bodyLine := 0
	firstOfBody := false

	for _, ch := range src {
		if ch == '\n' {
			d.line++
		}

		switch state {
		case stateTopLevel:
			switch {
			case ch == '[':
				state = stateSectionHeader
			case ch == '#':
				beforeComment = state
				state = stateComment
			case !isSpace(ch):
				return nil, nil, d.errorf("only comments (use #) may appear outside sections.")
			}

		case stateSectionHeader:
			switch {
			case ch == '{' || ch == '}':
				return nil, nil, d.errorf("expected ']' before '%c' in section header.", ch)
			case ch == '#':
				return nil, nil, d.errorf("cannot place comments inside a section header.")
			case ch == ']':
				state = stateWantBrace
			default:
				name.WriteByte(ch)
			}

		case stateWantBrace:
			switch {
			case isSpace(ch):
			case ch == '#':
				beforeComment = state
				state = stateComment
			case ch == '{':
				state = stateSectionBody
				firstOfBody = true
			default:
				return nil, nil, d.errorf("expected '{' before '%c' in section definition.", ch)
			}

		case stateSectionBody:
			switch {
			case ch == '[':
				return nil, nil, d.errorf("expected '}' before '[' in section definition.")
			case ch == '#':
				beforeComment = state
				state = stateComment
			case ch == '}':
				sec := strings.TrimSpace(name.String())
				if _, dup := sections[sec]; dup {
					return nil, nil, d.errorf("multiple definitions of section %q.", sec)
				}
				sections[sec] = section{body: strings.TrimSpace(body.String()), line: bodyLine}
				order = append(order, sec)
				name.Reset()
				body.Reset()
				state = stateTopLevel
			default:
				if !isSpace(ch) && firstOfBody {
					bodyLine = d.line
					firstOfBody = false
				}
				body.WriteByte(ch)
			}

		case stateComment:
			if ch == '\n' {
				state = beforeComment
				if state == stateSectionBody {
					body.WriteByte('\n')
				}
			}
		}
	}

	if state == stateComment {
		state = beforeComment
	}
	switch state {
	case stateSectionHeader:
		return nil, nil, d.errorf("expected closing bracket ']' in section header.")
	case stateWantBrace:
		return nil, nil, d.errorf("expected opening brace '{' in section definition.")
	case stateSectionBody:
		return nil, nil, d.errorf("expecting closing brace '}' in section definition.")
	}

	return sections, order, nil
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
