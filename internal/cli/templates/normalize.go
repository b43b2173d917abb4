package templates

import "strings"

const indentation = "  "

// Example returns s without leading or trailing whitespace and with every
// non-blank line indented by two spaces, ready for cobra.Command.Example.
func Example(s string) string {
	return indent(strings.TrimSpace(s))
}

// LongDesc returns s without leading or trailing whitespace and with the
// indentation common to its lines removed, ready for cobra.Command.Long.
func LongDesc(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	prefix := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if prefix < 0 || n < prefix {
			prefix = n
		}
	}
	for i, line := range lines {
		if len(line) >= prefix && prefix > 0 {
			lines[i] = line[prefix:]
		} else {
			lines[i] = strings.TrimSpace(line)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func indent(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines[i] = indentation + trimmed
		} else {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}
