package style

import (
	"fmt"
	"strconv"
	"strings"
)

// Position properties managed on absolutely positioned elements.
const (
	Top    Property = "top"
	Left   Property = "left"
	Right  Property = "right"
	Bottom Property = "bottom"
)

// Offsets lists the four directional properties in lock order.
var Offsets = []Property{Top, Left, Right, Bottom}

// LeadingNumber extracts the first numeric value of a declaration value and the unit
// that directly follows it, e.g. "10px" -> (10, "px"), "-4.5in auto" -> (-4.5, "in").
func LeadingNumber(value Value) (float64, string, bool) {
	s := strings.TrimSpace(string(value))
	end := numericPrefix(s)
	if end == 0 {
		return 0, "", false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, "", false
	}
	unitEnd := end
	for unitEnd < len(s) && isUnitChar(s[unitEnd]) {
		unitEnd++
	}
	return f, strings.ToLower(s[end:unitEnd]), true
}

// FormatNumber renders f without a trailing fraction when it is integral.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Pixels renders f as a pixel value, e.g. 50 -> "50px".
func Pixels(f float64) Value {
	return Value(fmt.Sprintf("%spx", FormatNumber(f)))
}

// numericPrefix returns the length of the leading [+-]digits[.digits] run.
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digits := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits = true
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := false
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac = true
		}
		if frac {
			i = j
			digits = true
		}
	}
	if !digits {
		return 0
	}
	return i
}

func isUnitChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '%'
}
