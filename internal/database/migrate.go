package database

import "strings"

// SplitStatements breaks a migration file into executable statements,
// dropping "--" comment lines and empty statements. Semicolons inside string
// literals are not supported.
func SplitStatements(src string) []string {
	var out []string
	for stmt := range strings.SplitSeq(src, ";") {
		var lines []string
		for line := range strings.SplitSeq(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
	}
	return out
}
