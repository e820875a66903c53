package indicators

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultLineSize  = 1
	defaultLineStyle = "solid"
)

// LineStyle is the rendering style of one indicator line.
type LineStyle struct {
	Color string `json:"color,omitempty" doc:"Hex color, e.g. #2962FF"`
	Size  int    `json:"size,omitempty" doc:"Line width in pixels"`
	Style string `json:"style,omitempty" doc:"solid, dashed or dotted"`
}

// Styles groups per-line styles.
type Styles struct {
	Lines []LineStyle `json:"lines,omitempty"`
}

// Options are the caller-facing indicator options. Any part may be omitted.
type Options struct {
	CalcParams []float64 `json:"calc_params,omitempty" doc:"Calculation parameters, e.g. periods"`
	Styles     *Styles   `json:"styles,omitempty"`
}

// Clone returns a deep copy of o. A nil receiver yields nil.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	out := &Options{CalcParams: cloneParams(o.CalcParams)}
	if o.Styles != nil {
		out.Styles = &Styles{Lines: append([]LineStyle(nil), o.Styles.Lines...)}
	}
	return out
}

// Label renders the indicator with its params, e.g. "EMA(9,21,50)".
func Label(name string, params []float64) string {
	if len(params) == 0 {
		return name
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = strconv.FormatFloat(p, 'f', -1, 64)
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// Normalize resolves calc params and line styles for an indicator request.
// It never fails: unknown indicators get a generic single-line default.
//
// Params come from the caller, then the trading profile, then the registry.
// The result always has max(1, len(params)) lines, each with a concrete
// color, size and style, and no two lines share a color.
func (r *Registry) Normalize(name string, opts *Options, profile string) Options {
	def, known := r.Lookup(name)

	var params []float64
	switch {
	case opts != nil && opts.CalcParams != nil:
		params = cloneParams(opts.CalcParams)
	default:
		if p, ok := r.ProfileParams(profile, name); ok {
			params = p
		} else if known {
			params = def.Params
		}
	}
	if params == nil {
		params = []float64{}
	}

	n := len(params)
	if n < 1 {
		n = 1
	}

	lines := make([]LineStyle, n)
	for i := range lines {
		lines[i] = LineStyle{
			Color: r.defaultColor(def, known, i),
			Size:  defaultLineSize,
			Style: defaultLineStyle,
		}
	}

	// Supplied styles override by position; extra entries are ignored and
	// missing ones keep the defaults.
	if opts != nil && opts.Styles != nil {
		for i, s := range opts.Styles.Lines {
			if i >= n {
				break
			}
			if c := strings.TrimSpace(s.Color); c != "" {
				lines[i].Color = c
			}
			if s.Size > 0 {
				lines[i].Size = s.Size
			}
			if st := strings.TrimSpace(s.Style); st != "" {
				lines[i].Style = st
			}
		}
	}

	seen := make(map[string]bool, n)
	for i := range lines {
		key := strings.ToLower(lines[i].Color)
		if seen[key] {
			lines[i].Color = r.unusedColor(i, seen)
			key = strings.ToLower(lines[i].Color)
		}
		seen[key] = true
	}

	return Options{CalcParams: params, Styles: &Styles{Lines: lines}}
}

// Colors returns the closed color vocabulary: the palette followed by any
// definition colors not already in it.
func (r *Registry) Colors() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		k := strings.ToLower(c)
		if c == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, c)
	}
	for _, c := range r.palette {
		add(c)
	}
	for _, name := range r.Names() {
		add(r.defs[name].Color)
	}
	return out
}

func (r *Registry) defaultColor(def Definition, known bool, i int) string {
	if i == 0 && known && def.Color != "" {
		return def.Color
	}
	return r.palette[i%len(r.palette)]
}

// unusedColor picks the palette color for index i, walking forward through
// the palette when that color is taken. Once the palette is exhausted it
// derives shifted hex values until one is free.
func (r *Registry) unusedColor(i int, seen map[string]bool) string {
	for k := 0; k < len(r.palette); k++ {
		c := r.palette[(i+k)%len(r.palette)]
		if !seen[strings.ToLower(c)] {
			return c
		}
	}
	base := hexValue(r.palette[i%len(r.palette)])
	for step := 1; ; step++ {
		c := fmt.Sprintf("#%06X", (base+step*0x1F3D5B)&0xFFFFFF)
		if !seen[strings.ToLower(c)] {
			return c
		}
	}
}

func hexValue(color string) int {
	v, err := strconv.ParseUint(strings.TrimPrefix(color, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
