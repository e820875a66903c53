// Package indicators holds the immutable indicator registry and the options
// normalizer that turns loose indicator requests into fully specified lines.
package indicators

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var builtinRegistry []byte

// Definition describes one indicator known to the chart.
type Definition struct {
	Name        string    `yaml:"name" json:"name"`
	Aliases     []string  `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Description string    `yaml:"description" json:"description"`
	Params      []float64 `yaml:"params" json:"params"`
	Color       string    `yaml:"color" json:"color"`
	Overlay     bool      `yaml:"overlay" json:"overlay"`
}

type registryFile struct {
	Palette    []string                        `yaml:"palette"`
	Indicators []Definition                    `yaml:"indicators"`
	Profiles   map[string]map[string][]float64 `yaml:"profiles"`
}

// Registry is a read-only lookup table of indicator definitions, trading
// profile defaults and the fallback color palette. Build it once and share it.
type Registry struct {
	defs     map[string]Definition
	aliases  map[string]string
	profiles map[string]map[string][]float64
	palette  []string
}

// profileAliases maps short trading-mode names onto profile keys.
var profileAliases = map[string]string{
	"day":   "day_trade",
	"swing": "swing_trade",
}

// DefaultRegistry returns the registry compiled into the binary.
func DefaultRegistry() *Registry {
	reg, err := ParseRegistry(builtinRegistry)
	if err != nil {
		panic(fmt.Sprintf("indicators: builtin registry: %v", err))
	}
	return reg
}

// LoadRegistry reads a registry YAML file from disk.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("indicators: read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a Registry from YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("indicators: parse registry: %w", err)
	}
	if len(f.Palette) == 0 {
		return nil, fmt.Errorf("indicators: registry palette is empty")
	}

	reg := &Registry{
		defs:     make(map[string]Definition, len(f.Indicators)),
		aliases:  make(map[string]string),
		profiles: make(map[string]map[string][]float64, len(f.Profiles)),
		palette:  append([]string(nil), f.Palette...),
	}
	for _, d := range f.Indicators {
		key := canonical(d.Name)
		if key == "" {
			return nil, fmt.Errorf("indicators: definition with empty name")
		}
		if _, dup := reg.defs[key]; dup {
			return nil, fmt.Errorf("indicators: duplicate definition %q", d.Name)
		}
		d.Name = key
		d.Params = cloneParams(d.Params)
		reg.defs[key] = d
		for _, a := range d.Aliases {
			reg.aliases[canonical(a)] = key
		}
	}
	for profile, byName := range f.Profiles {
		m := make(map[string][]float64, len(byName))
		for name, params := range byName {
			m[reg.resolve(name)] = cloneParams(params)
		}
		reg.profiles[strings.ToLower(profile)] = m
	}
	return reg, nil
}

// Lookup returns the definition for name or one of its aliases.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[r.resolve(name)]
	if !ok {
		return Definition{}, false
	}
	d.Params = cloneParams(d.Params)
	d.Aliases = append([]string(nil), d.Aliases...)
	return d, true
}

// Names returns canonical indicator names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Profiles returns the trading profile names in sorted order.
func (r *Registry) Profiles() []string {
	out := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Palette returns a copy of the fallback color palette.
func (r *Registry) Palette() []string {
	return append([]string(nil), r.palette...)
}

// ProfileParams returns the calc params a profile prescribes for name.
func (r *Registry) ProfileParams(profile, name string) ([]float64, bool) {
	byName, ok := r.profiles[r.resolveProfile(profile)]
	if !ok {
		return nil, false
	}
	params, ok := byName[r.resolve(name)]
	if !ok {
		return nil, false
	}
	return cloneParams(params), true
}

// HasProfile reports whether profile (or its alias) is known.
func (r *Registry) HasProfile(profile string) bool {
	_, ok := r.profiles[r.resolveProfile(profile)]
	return ok
}

func (r *Registry) resolve(name string) string {
	key := canonical(name)
	if target, ok := r.aliases[key]; ok {
		return target
	}
	return key
}

func (r *Registry) resolveProfile(profile string) string {
	p := strings.ToLower(strings.TrimSpace(profile))
	if alias, ok := profileAliases[p]; ok {
		return alias
	}
	return p
}

func canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func cloneParams(p []float64) []float64 {
	if p == nil {
		return nil
	}
	return append([]float64(nil), p...)
}
