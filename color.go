package flowline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

// RGBA returns the color as four bytes with full alpha, the layout of the
// vertex color attribute.
func (c RGB) RGBA() [4]uint8 {
	return [4]uint8{c.R, c.G, c.B, 255}
}

// Hex returns the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorKind tags the variant held by a ColorValue.
type ColorKind uint8

const (
	ColorUnset ColorKind = iota // no color supplied
	ColorHex                    // "#rrggbb" string, parsed on Resolve
	ColorRGB                    // explicit 8-bit triple
)

// ColorValue is a graphic's color attribute as supplied by the data source:
// either a hex string or an RGB triple. It is resolved to an RGB before
// triangulation.
type ColorValue struct {
	Kind ColorKind
	Hex  string
	RGB  RGB
}

// HexColor returns a ColorValue holding a hex string such as "#ff8800".
func HexColor(s string) ColorValue {
	return ColorValue{Kind: ColorHex, Hex: s}
}

// RGBColor returns a ColorValue holding an explicit triple.
func RGBColor(r, g, b uint8) ColorValue {
	return ColorValue{Kind: ColorRGB, RGB: RGB{r, g, b}}
}

// Resolve returns the RGB value. ok is false for unset colors and for hex
// strings that do not parse.
func (c ColorValue) Resolve() (RGB, bool) {
	switch c.Kind {
	case ColorRGB:
		return c.RGB, true
	case ColorHex:
		return ParseHex(c.Hex)
	default:
		return RGB{}, false
	}
}

// String implements fmt.Stringer.
func (c ColorValue) String() string {
	switch c.Kind {
	case ColorRGB:
		return fmt.Sprintf("rgb(%d,%d,%d)", c.RGB.R, c.RGB.G, c.RGB.B)
	case ColorHex:
		return c.Hex
	default:
		return "unset"
	}
}

// ParseHex parses "#rrggbb" or "rrggbb" (case-insensitive). Shorthand and
// alpha forms are rejected.
func ParseHex(s string) (RGB, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

var errBadColor = errors.New("flowline: color must be a hex string or an [r,g,b] array")

// UnmarshalJSON accepts a hex string, an [r,g,b] or [r,g,b,a] array, or null.
func (c *ColorValue) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*c = ColorValue{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = HexColor(s)
		return nil
	case '[':
		var comps []float64
		if err := json.Unmarshal(data, &comps); err != nil {
			return err
		}
		if len(comps) != 3 && len(comps) != 4 {
			return fmt.Errorf("%w: got %d components", errBadColor, len(comps))
		}
		*c = RGBColor(clampByte(comps[0]), clampByte(comps[1]), clampByte(comps[2]))
		return nil
	}
	return errBadColor
}

// MarshalJSON writes hex colors as strings and RGB colors as arrays.
func (c ColorValue) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ColorRGB:
		return json.Marshal([3]int{int(c.RGB.R), int(c.RGB.G), int(c.RGB.B)})
	case ColorHex:
		return json.Marshal(c.Hex)
	default:
		return []byte("null"), nil
	}
}

// colorFromProperty converts a loosely typed property value (as decoded by
// encoding/json into a GeoJSON property map) into a ColorValue.
func colorFromProperty(v any) ColorValue {
	switch t := v.(type) {
	case string:
		return HexColor(t)
	case []any:
		if len(t) != 3 && len(t) != 4 {
			return ColorValue{}
		}
		var comps [3]uint8
		for i := 0; i < 3; i++ {
			f, ok := t[i].(float64)
			if !ok {
				return ColorValue{}
			}
			comps[i] = clampByte(f)
		}
		return RGBColor(comps[0], comps[1], comps[2])
	default:
		return ColorValue{}
	}
}

func clampByte(f float64) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f + 0.5)
}
