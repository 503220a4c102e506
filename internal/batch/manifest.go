package batch

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// Manifest lists the variations to render from one text.
type Manifest struct {
	Text      string    `yaml:"text"`
	Input     string    `yaml:"input,omitempty"`
	OutputDir string    `yaml:"output_dir,omitempty"`
	Defaults  Variant   `yaml:"defaults,omitempty"`
	Variants  []Variant `yaml:"variants"`
}

// Variant is one output file. Zero fields inherit from Manifest.Defaults,
// except Semitones which is always per variant.
type Variant struct {
	Name      string  `yaml:"name,omitempty"`
	Provider  string  `yaml:"provider,omitempty"`
	Language  string  `yaml:"language,omitempty"`
	Accent    string  `yaml:"accent,omitempty"`
	Voice     string  `yaml:"voice,omitempty"`
	Slow      *bool   `yaml:"slow,omitempty"`
	Speed     float64 `yaml:"speed,omitempty"`
	Semitones float64 `yaml:"semitones,omitempty"`
	Normalize string  `yaml:"normalize,omitempty"`
	Output    string  `yaml:"output,omitempty"`
}

// IsSlow reports the effective slow flag.
func (v Variant) IsSlow() bool {
	return v.Slow != nil && *v.Slow
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %q: %w", path, err)
	}
	defer f.Close()

	m, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse %q: %w", path, err)
	}
	return m, nil
}

// LoadFromReader decodes a YAML manifest from r and validates it.
func LoadFromReader(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Preset returns one of the built-in manifests.
func Preset(name string) (*Manifest, error) {
	data, err := presetFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return LoadFromReader(bytes.NewReader(data))
}

// PresetNames lists the built-in manifests.
func PresetNames() []string {
	entries, _ := presetFS.ReadDir("presets")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Validate checks the manifest and returns every problem found.
func (m *Manifest) Validate() error {
	var errs []error

	if len(m.Variants) == 0 {
		errs = append(errs, errors.New("variants: at least one variant is required"))
	}

	outputs := make(map[string]int, len(m.Variants))
	for i, v := range m.Resolved() {
		prefix := fmt.Sprintf("variants[%d]", i)
		if v.Output == "" {
			errs = append(errs, fmt.Errorf("%s.output is required", prefix))
		} else {
			if prev, ok := outputs[v.Output]; ok {
				errs = append(errs, fmt.Errorf("%s.output %q is a duplicate of variants[%d]", prefix, v.Output, prev))
			}
			outputs[v.Output] = i
		}
		if math.IsNaN(v.Semitones) || math.IsInf(v.Semitones, 0) {
			errs = append(errs, fmt.Errorf("%s.semitones must be a finite number", prefix))
		}
		if v.Speed < 0 {
			errs = append(errs, fmt.Errorf("%s.speed must not be negative", prefix))
		}
	}
	return errors.Join(errs...)
}

// Resolved returns the variants with defaults applied and outputs placed
// under OutputDir.
func (m *Manifest) Resolved() []Variant {
	out := make([]Variant, len(m.Variants))
	for i, v := range m.Variants {
		r := merge(m.Defaults, v)
		if r.Name == "" {
			r.Name = fmt.Sprintf("Variant %d", i+1)
		}
		if r.Output != "" && m.OutputDir != "" && !filepath.IsAbs(r.Output) {
			r.Output = filepath.Join(m.OutputDir, r.Output)
		}
		out[i] = r
	}
	return out
}

func merge(def, v Variant) Variant {
	if v.Provider == "" {
		v.Provider = def.Provider
	}
	if v.Language == "" {
		v.Language = def.Language
	}
	if v.Accent == "" {
		v.Accent = def.Accent
	}
	if v.Voice == "" {
		v.Voice = def.Voice
	}
	if v.Slow == nil {
		v.Slow = def.Slow
	}
	if v.Speed == 0 {
		v.Speed = def.Speed
	}
	if v.Normalize == "" {
		v.Normalize = def.Normalize
	}
	return v
}

func (m *Manifest) clone() *Manifest {
	c := *m
	c.Variants = append([]Variant(nil), m.Variants...)
	return &c
}
