package coursexml

import (
	"strings"
	"unicode"
)

// DeriveForkFamily extracts a fork family and label from a course name.
// Precedence: a ":"-separated suffix ("Elite: A" -> "Elite"/"A"), then a
// trailing letter or number separated from the base by a space, dash or a
// digit ("Course 5A" -> "Course 5"/"A", "Relay - 2" -> "Relay"/"2"), else no
// family at all. Explicit family attributes in the source XML take priority
// over this heuristic and are handled by the callers.
func DeriveForkFamily(name string) (family, label string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		family = strings.TrimSpace(name[:idx])
		label = strings.TrimSpace(name[idx+1:])
		if family != "" && label != "" {
			return family, label
		}
		return "", ""
	}

	runes := []rune(name)
	last := runes[len(runes)-1]

	// Trailing single letter: "5A", "Long A", "H21-B".
	if unicode.IsLetter(last) && len(runes) >= 2 {
		prev := runes[len(runes)-2]
		if unicode.IsDigit(prev) || prev == ' ' || prev == '-' {
			family = strings.TrimRight(string(runes[:len(runes)-1]), " -")
			if family != "" {
				return family, string(last)
			}
		}
	}

	// Trailing number run: "Relay 1", "Open-2".
	if unicode.IsDigit(last) {
		i := len(runes)
		for i > 0 && unicode.IsDigit(runes[i-1]) {
			i--
		}
		if i > 0 && (runes[i-1] == ' ' || runes[i-1] == '-') {
			family = strings.TrimRight(string(runes[:i]), " -")
			if family != "" {
				return family, string(runes[i:])
			}
		}
	}

	return "", ""
}

// forkLetter yields positional fork labels A, B, ... Z, AA, AB, ...
func forkLetter(i int) string {
	var b []byte
	for {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
		if i < 0 {
			return string(b)
		}
	}
}
