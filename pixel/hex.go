package pixel

import (
	"fmt"
	"strings"
)

// ParseHex reads a color written as #RGB, #RGBA, #RRGGBB or #RRGGBBAA.
// Alpha defaults to 0xFF.
func ParseHex(s string) (RGBA, error) {
	c := RGBA{A: 0xFF}
	args := []any{&c.R, &c.G, &c.B}
	var format string
	switch len(s) {
	case 4:
		format = "#%1x%1x%1x"
	case 5:
		format = "#%1x%1x%1x%1x"
		args = append(args, &c.A)
	case 7:
		format = "#%2x%2x%2x"
	case 9:
		format = "#%2x%2x%2x%2x"
		args = append(args, &c.A)
	default:
		return RGBA{}, fmt.Errorf("invalid color %q, should be #RGB, #RGBA, #RRGGBB or #RRGGBBAA", s)
	}
	if !strings.HasPrefix(s, "#") || strings.Trim(s[1:], "0123456789abcdefABCDEF") != "" {
		return RGBA{}, fmt.Errorf("invalid color %q, not a hex value", s)
	}

	if _, err := fmt.Sscanf(s, format, args...); err != nil {
		return RGBA{}, fmt.Errorf("could not read color %q: %w", s, err)
	}

	if len(s) < 7 {
		c.R |= c.R << 4
		c.G |= c.G << 4
		c.B |= c.B << 4
		if len(args) == 4 {
			c.A |= c.A << 4
		}
	}
	return c, nil
}
