// Package pipeline wires layers into a runnable network described in YAML.
// Each layer reads the previous layer's output unless it names another
// source; binary layers also name their second operand.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/qnn/internal/tensor"
)

var (
	ErrUnknownKind   = errors.New("pipeline: unknown layer kind")
	ErrInvalidConfig = errors.New("pipeline: invalid config")
)

// Layer kinds understood by New.
const (
	KindGlobalMaxPool2D = "global_max_pool2d"
	KindGlobalMinPool2D = "global_min_pool2d"
	KindGlobalAvgPool2D = "global_avg_pool2d"
	KindMax2D           = "max2d"
	KindMin2D           = "min2d"
)

// InputRef names the pipeline input in From and With.
const InputRef = "input"

// Kinds lists the accepted layer kinds.
func Kinds() []string {
	return []string{KindGlobalMaxPool2D, KindGlobalMinPool2D, KindGlobalAvgPool2D, KindMax2D, KindMin2D}
}

func isBinary(kind string) bool {
	return kind == KindMax2D || kind == KindMin2D
}

// LayerConfig describes one layer.
type LayerConfig struct {
	Kind   string `yaml:"kind" json:"kind"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Filter []int  `yaml:"filter,omitempty" json:"filter,omitempty"`
	// Exponent is the output exponent; only global_avg_pool2d uses it.
	Exponent *int `yaml:"exponent,omitempty" json:"exponent,omitempty"`
	// From names the layer whose output this one reads, or "input". Empty
	// means the previous layer.
	From string `yaml:"from,omitempty" json:"from,omitempty"`
	// With is the second operand of max2d and min2d.
	With string `yaml:"with,omitempty" json:"with,omitempty"`
}

// Config describes a pipeline.
type Config struct {
	Name     string        `yaml:"name" json:"name"`
	DType    string        `yaml:"dtype" json:"dtype"`
	Autoload bool          `yaml:"autoload" json:"autoload"`
	Layers   []LayerConfig `yaml:"layers" json:"layers"`
}

// LoadConfig reads and validates a pipeline description.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML, fills default names and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DType = strings.ToLower(strings.TrimSpace(c.DType))
	if c.DType == "" {
		c.DType = tensor.DTypeInt8
	}
	if c.Name == "" {
		c.Name = "pipeline"
	}
	for i := range c.Layers {
		l := &c.Layers[i]
		l.Kind = strings.ToLower(strings.TrimSpace(l.Kind))
		l.From = strings.TrimSpace(l.From)
		l.With = strings.TrimSpace(l.With)
		if l.Name == "" {
			l.Name = fmt.Sprintf("%s_%d", l.Kind, i)
		}
	}
}

// Validate checks the dtype, every layer entry and the references between
// layers.
func (c *Config) Validate() error {
	if tensor.ElemSizeOf(c.DType) == 0 {
		return fmt.Errorf("%w: dtype %q (want int8 or int16)", ErrInvalidConfig, c.DType)
	}
	if len(c.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidConfig)
	}
	for i, l := range c.Layers {
		switch l.Kind {
		case KindGlobalMaxPool2D, KindGlobalMinPool2D, KindMax2D, KindMin2D:
			if l.Exponent != nil {
				return fmt.Errorf("%w: layer %d (%s) keeps the input exponent", ErrInvalidConfig, i, l.Kind)
			}
		case KindGlobalAvgPool2D:
			if l.Exponent == nil {
				return fmt.Errorf("%w: layer %d (%s) needs an exponent", ErrInvalidConfig, i, l.Kind)
			}
		default:
			return fmt.Errorf("%w: layer %d: %q", ErrUnknownKind, i, l.Kind)
		}
		for _, d := range l.Filter {
			if d <= 0 {
				return fmt.Errorf("%w: layer %d filter %v", ErrInvalidConfig, i, l.Filter)
			}
		}
	}
	_, err := resolve(c.Layers)
	return err
}

type route struct {
	from, with int
}

// resolve turns From and With names into stage indices.
func resolve(layers []LayerConfig) ([]route, error) {
	index := make(map[string]int, len(layers))
	lookup := func(i int, field, ref string) (int, error) {
		if ref == InputRef {
			return Input, nil
		}
		j, ok := index[ref]
		if !ok {
			return 0, fmt.Errorf("%w: layer %d %s %q is not an earlier layer", ErrInvalidConfig, i, field, ref)
		}
		return j, nil
	}

	routes := make([]route, len(layers))
	for i, l := range layers {
		r := route{from: i - 1, with: Input}
		var err error
		if l.From != "" {
			if r.from, err = lookup(i, "from", l.From); err != nil {
				return nil, err
			}
		}
		switch {
		case isBinary(l.Kind) && l.With == "":
			return nil, fmt.Errorf("%w: layer %d (%s) needs a with operand", ErrInvalidConfig, i, l.Kind)
		case !isBinary(l.Kind) && l.With != "":
			return nil, fmt.Errorf("%w: layer %d (%s) takes one input", ErrInvalidConfig, i, l.Kind)
		case l.With != "":
			if r.with, err = lookup(i, "with", l.With); err != nil {
				return nil, err
			}
		}
		routes[i] = r

		if l.Name == InputRef {
			return nil, fmt.Errorf("%w: layer %d may not be named %q", ErrInvalidConfig, i, InputRef)
		}
		if _, dup := index[l.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate layer name %q", ErrInvalidConfig, l.Name)
		}
		index[l.Name] = i
	}
	return routes, nil
}
