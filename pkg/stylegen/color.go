package stylegen

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// AdjustBrightness adds steps to each RGB channel of a "#rrggbb" or
// "#rrggbbaa" color, clamping to [0,255]. The alpha pair is kept.
// An unparseable color is returned unchanged.
func AdjustBrightness(hex string, steps int) string {
	rgb, alpha := hex, ""
	if len(hex) == 9 {
		rgb, alpha = hex[:7], strings.ToLower(hex[7:])
	}
	c, err := colorful.Hex(rgb)
	if err != nil {
		return hex
	}
	r, g, b := c.RGB255()
	return fmt.Sprintf("#%02x%02x%02x%s", clamp(int(r)+steps), clamp(int(g)+steps), clamp(int(b)+steps), alpha)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
