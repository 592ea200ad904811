package announcement

import (
	"fmt"
	"strconv"
	"strings"
)

// Substitute replaces every {key} occurrence in text for each entry in vars.
// Placeholders without a matching entry are left verbatim.
func Substitute(text string, vars map[string]any) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", formatValue(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// formatValue renders a variable the way an operator would type it:
// JSON numbers arrive as float64 and 15.0 must read "15".
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
