package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Escaper turns an arbitrary name into a token that a tool's input format accepts.
type Escaper func(string) string

// Escapers are made available to templates under their key.
var Escapers = map[string]Escaper{
	"tcl_escape":   TclEscape,
	"ascii_escape": ASCIIEscape,
	"sh_quote":     ShQuote,
}

var tclSpecial = regexp.MustCompile(`([{}\\])`)

// TclEscape quotes a string as a braced TCL word.
func TclEscape(s string) string {
	return "{" + tclSpecial.ReplaceAllString(s, `\$1`) + "}"
}

// ASCIIEscape replaces every character outside [A-Za-z0-9_] with `_xx_`, xx being its hex code.
func ASCIIEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%02x_", r)
		}
	}
	return b.String()
}

var shSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// ShQuote quotes a word for POSIX sh.
func ShQuote(s string) string {
	if shSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Period converts a frequency in Hz into a clock period in units of 10 ns, using the shortest decimal
// representation that round-trips.
func Period(frequency float64) string {
	return strconv.FormatFloat(1e8/frequency, 'f', -1, 64)
}
