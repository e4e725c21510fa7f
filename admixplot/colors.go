package admixplot

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Tab10 is the ten color categorical palette used for ancestry
// components by default.
var Tab10 = []color.Color{
	color.RGBA{0x1f, 0x77, 0xb4, 0xff},
	color.RGBA{0xff, 0x7f, 0x0e, 0xff},
	color.RGBA{0x2c, 0xa0, 0x2c, 0xff},
	color.RGBA{0xd6, 0x27, 0x28, 0xff},
	color.RGBA{0x94, 0x67, 0xbd, 0xff},
	color.RGBA{0x8c, 0x56, 0x4b, 0xff},
	color.RGBA{0xe3, 0x77, 0xc2, 0xff},
	color.RGBA{0x7f, 0x7f, 0x7f, 0xff},
	color.RGBA{0xbc, 0xbd, 0x22, 0xff},
	color.RGBA{0x17, 0xbe, 0xcf, 0xff},
}

// ParseColor parses a color given as #rrggbb or as an SVG color
// name.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return nil, fmt.Errorf("wrong color format: %q", s)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("wrong color format: %q", s)
		}
		return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, nil
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown color: %q", s)
}

// palette returns k colors: the custom ones first, then the default
// palette (wrapping around).
func palette(k int, custom []color.Color) []color.Color {
	colors := make([]color.Color, k)
	for i := range colors {
		if i < len(custom) {
			colors[i] = custom[i]
		} else {
			colors[i] = Tab10[i%len(Tab10)]
		}
	}
	return colors
}
