// Package sizepolicy validates requested thumbnail dimensions against the
// configured policy. Two modes exist: "strict" checks the resolved pair
// against a finite allow-list, "bounded" checks each axis against numeric
// limits. Bounded mode rejects out-of-range values instead of clamping so a
// request maps to exactly one cache key.
package sizepolicy

import (
	"errors"
	"fmt"

	"github.com/thumb-hub/thumb-hub/internal/config"
)

var (
	// ErrInvalidDimensions marks structurally broken dimensions: only one of
	// width/height present, or a non-positive value.
	ErrInvalidDimensions = errors.New("invalid thumbnail dimensions")

	// ErrViolation marks well-formed dimensions that the policy does not allow.
	ErrViolation = errors.New("size policy violation")
)

// Dimensions is a resolved (width, height) pair.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Bounds holds the per-axis limits used in bounded mode.
type Bounds struct {
	MinWidth  int `json:"min_width"`
	MaxWidth  int `json:"max_width"`
	MinHeight int `json:"min_height"`
	MaxHeight int `json:"max_height"`
}

// Description is the introspection payload served by the diagnostics route.
type Description struct {
	Mode    string       `json:"mode"`
	Default Dimensions   `json:"default"`
	Allowed []Dimensions `json:"allowed,omitempty"`
	Bounds  *Bounds      `json:"bounds,omitempty"`
}

// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	mode    string
	def     Dimensions
	allowed map[Dimensions]struct{}
	list    []Dimensions
	bounds  Bounds
}

// FromConfig builds a Policy from the validated global config. Config
// validation has already guaranteed mode/bounds/allow-list consistency, so
// the only error here is an unknown mode slipping past the loader.
func FromConfig(g config.GlobalConfig, sizes []config.SizeConfig) (*Policy, error) {
	p := &Policy{
		mode: g.SizeMode,
		def:  Dimensions{Width: g.DefaultWidth, Height: g.DefaultHeight},
	}

	switch g.SizeMode {
	case config.SizeModeStrict:
		p.allowed = make(map[Dimensions]struct{}, len(sizes))
		p.list = make([]Dimensions, 0, len(sizes))
		for _, s := range sizes {
			d := Dimensions{Width: s.Width, Height: s.Height}
			if _, dup := p.allowed[d]; dup {
				continue
			}
			p.allowed[d] = struct{}{}
			p.list = append(p.list, d)
		}
	case config.SizeModeBounded:
		p.bounds = Bounds{
			MinWidth:  g.MinWidth,
			MaxWidth:  g.MaxWidth,
			MinHeight: g.MinHeight,
			MaxHeight: g.MaxHeight,
		}
	default:
		return nil, fmt.Errorf("unknown size mode: %s", g.SizeMode)
	}

	return p, nil
}

// Normalize resolves optional width/height into a concrete pair. Both absent
// resolves to the configured default; exactly one absent is invalid.
func (p *Policy) Normalize(width, height *int) (Dimensions, error) {
	if width == nil && height == nil {
		return p.def, nil
	}
	if width == nil || height == nil {
		return Dimensions{}, fmt.Errorf("%w: width and height must be provided together", ErrInvalidDimensions)
	}
	if *width <= 0 || *height <= 0 {
		return Dimensions{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, *width, *height)
	}

	d := Dimensions{Width: *width, Height: *height}
	switch p.mode {
	case config.SizeModeStrict:
		if _, ok := p.allowed[d]; !ok {
			return Dimensions{}, fmt.Errorf("%w: %s is not in the allow-list", ErrViolation, d)
		}
	case config.SizeModeBounded:
		b := p.bounds
		if d.Width < b.MinWidth || d.Width > b.MaxWidth ||
			d.Height < b.MinHeight || d.Height > b.MaxHeight {
			return Dimensions{}, fmt.Errorf("%w: %s is outside %d-%dx%d-%d", ErrViolation,
				d, b.MinWidth, b.MaxWidth, b.MinHeight, b.MaxHeight)
		}
	}
	return d, nil
}

// Default returns the pair applied when both dimensions are omitted.
func (p *Policy) Default() Dimensions {
	return p.def
}

// Describe returns the policy in a serializable form.
func (p *Policy) Describe() Description {
	desc := Description{
		Mode:    p.mode,
		Default: p.def,
	}
	switch p.mode {
	case config.SizeModeStrict:
		desc.Allowed = append([]Dimensions(nil), p.list...)
	case config.SizeModeBounded:
		bounds := p.bounds
		desc.Bounds = &bounds
	}
	return desc
}
