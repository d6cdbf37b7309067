// Package testutil parses the output of the C source writer back into raw
// bytes so tests can compare emitted arrays against expected images.
package testutil

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCArrays extracts every `unsigned char const NAME[...] = { ... };`
// declaration from C source and returns the byte contents keyed by NAME.
func ParseCArrays(data []byte) (map[string][]byte, error) {
	arrays := make(map[string][]byte)
	src := string(data)

	for {
		start := strings.Index(src, "unsigned char const ")
		if start < 0 {
			break
		}
		src = src[start+len("unsigned char const "):]

		bracket := strings.Index(src, "[")
		if bracket < 0 {
			return nil, fmt.Errorf("missing [ after array name")
		}
		name := strings.TrimSpace(src[:bracket])

		open := strings.Index(src, "{")
		if open < 0 {
			return nil, fmt.Errorf("array %s: missing {", name)
		}
		end := strings.Index(src, "};")
		if end < 0 || end < open {
			return nil, fmt.Errorf("array %s: missing };", name)
		}

		var bytes []byte
		for _, tok := range strings.Split(src[open+1:end], ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			v, err := strconv.ParseUint(tok, 0, 8)
			if err != nil {
				return nil, fmt.Errorf("array %s: bad byte %q: %v", name, tok, err)
			}
			bytes = append(bytes, byte(v))
		}
		arrays[name] = bytes
		src = src[end+2:]
	}

	if len(arrays) == 0 {
		return nil, fmt.Errorf("no arrays found")
	}
	return arrays, nil
}
