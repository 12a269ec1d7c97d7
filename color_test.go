package flowline

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want RGB
		ok   bool
	}{
		{"#ff8800", RGB{255, 136, 0}, true},
		{"FF8800", RGB{255, 136, 0}, true},
		{"#00aAfF", RGB{0, 170, 255}, true},
		{"#fff", RGB{}, false},
		{"#ff880011", RGB{}, false},
		{"#gg0000", RGB{}, false},
		{"", RGB{}, false},
		{"#+12345", RGB{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseHex(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseHex(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestColorResolve(t *testing.T) {
	if _, ok := (ColorValue{}).Resolve(); ok {
		t.Error("unset color resolved")
	}
	if c, ok := RGBColor(1, 2, 3).Resolve(); !ok || c != (RGB{1, 2, 3}) {
		t.Errorf("RGBColor resolve = %v, %v", c, ok)
	}
	if c, ok := HexColor("#010203").Resolve(); !ok || c != (RGB{1, 2, 3}) {
		t.Errorf("HexColor resolve = %v, %v", c, ok)
	}
	if _, ok := HexColor("red").Resolve(); ok {
		t.Error("named color resolved")
	}
	if got := (RGB{255, 16, 0}).Hex(); got != "#ff1000" {
		t.Errorf("Hex = %q, want #ff1000", got)
	}
}

func TestColorUnmarshalJSON(t *testing.T) {
	var v struct {
		A ColorValue `json:"a"`
		B ColorValue `json:"b"`
		C ColorValue `json:"c"`
		D ColorValue `json:"d"`
	}
	data := `{"a": "#336699", "b": [10, 20, 300], "c": null, "d": [1, 2, 3, 0.5]}`
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != HexColor("#336699") {
		t.Errorf("a = %+v", v.A)
	}
	if v.B != RGBColor(10, 20, 255) {
		t.Errorf("b = %+v, want clamped rgb", v.B)
	}
	if v.C.Kind != ColorUnset {
		t.Errorf("c = %+v, want unset", v.C)
	}
	if v.D != RGBColor(1, 2, 3) {
		t.Errorf("d = %+v", v.D)
	}
}

func TestColorUnmarshalJSONErrors(t *testing.T) {
	var c ColorValue
	if err := c.UnmarshalJSON([]byte(`{"r": 1}`)); !errors.Is(err, errBadColor) {
		t.Errorf("object: err = %v, want errBadColor", err)
	}
	if err := c.UnmarshalJSON([]byte(`[1, 2]`)); !errors.Is(err, errBadColor) {
		t.Errorf("two components: err = %v, want errBadColor", err)
	}
}

func TestColorMarshalJSON(t *testing.T) {
	got, err := json.Marshal([]ColorValue{HexColor("#abcdef"), RGBColor(1, 2, 3), {}})
	if err != nil {
		t.Fatal(err)
	}
	if want := `["#abcdef",[1,2,3],null]`; string(got) != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestColorFromProperty(t *testing.T) {
	if c := colorFromProperty("#102030"); c != HexColor("#102030") {
		t.Errorf("string = %+v", c)
	}
	if c := colorFromProperty([]any{1.0, 2.0, 3.0}); c != RGBColor(1, 2, 3) {
		t.Errorf("array = %+v", c)
	}
	if c := colorFromProperty([]any{1.0, "x", 3.0}); c.Kind != ColorUnset {
		t.Errorf("mixed array = %+v, want unset", c)
	}
	if c := colorFromProperty(42.0); c.Kind != ColorUnset {
		t.Errorf("number = %+v, want unset", c)
	}
	if c := colorFromProperty(nil); c.Kind != ColorUnset {
		t.Errorf("nil = %+v, want unset", c)
	}
}
