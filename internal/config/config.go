// Package config loads viewer settings from layered JSONC files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"imgview/internal/catalog/backend"
	"imgview/internal/core/order"
	"imgview/internal/core/scroll"
)

const FileName = ".iv.json"

var (
	ErrConfigInvalid  = errors.New("invalid config")
	ErrConfigNotFound = errors.New("config file not found")
)

type Config struct {
	Sort           string  `json:"sort"`
	Cycle          bool    `json:"cycle"`
	Recursive      bool    `json:"recursive"`
	Radius         int     `json:"radius"`
	Workers        int     `json:"workers"`
	Step           int     `json:"step"`
	ScrollPolicy   string  `json:"scroll_policy"`
	ScrollCapacity int     `json:"scroll_capacity"`
	SettleMS       int     `json:"settle_ms"`
	ScrollFPS      float64 `json:"scroll_fps"`
	SlideShowMS    int     `json:"slideshow_ms"`
	Background     string  `json:"background"`
	ScaleToFit     bool    `json:"scale_to_fit"`
	ColorManage    bool    `json:"color_manage"`
	Rotate         int     `json:"rotate"`
	Profile        string  `json:"profile,omitempty"`
	CatalogStore   string  `json:"catalog_store"`
	UseCatalog     bool    `json:"use_catalog"`
}

// Layer is one config source. Nil fields leave the lower layer untouched.
type Layer struct {
	Sort           *string  `json:"sort"`
	Cycle          *bool    `json:"cycle"`
	Recursive      *bool    `json:"recursive"`
	Radius         *int     `json:"radius"`
	Workers        *int     `json:"workers"`
	Step           *int     `json:"step"`
	ScrollPolicy   *string  `json:"scroll_policy"`
	ScrollCapacity *int     `json:"scroll_capacity"`
	SettleMS       *int     `json:"settle_ms"`
	ScrollFPS      *float64 `json:"scroll_fps"`
	SlideShowMS    *int     `json:"slideshow_ms"`
	Background     *string  `json:"background"`
	ScaleToFit     *bool    `json:"scale_to_fit"`
	ColorManage    *bool    `json:"color_manage"`
	Rotate         *int     `json:"rotate"`
	Profile        *string  `json:"profile"`
	CatalogStore   *string  `json:"catalog_store"`
	UseCatalog     *bool    `json:"use_catalog"`
}

type Sources struct {
	Global  string
	Project string
}

func Default() Config {
	return Config{
		Sort:         string(order.Name),
		Cycle:        true,
		Radius:       1,
		Step:         10,
		ScrollPolicy: "strict",
		SettleMS:     500,
		ScrollFPS:    30,
		SlideShowMS:  3000,
		Background:   "#000000",
		ScaleToFit:   true,
		CatalogStore: "sqlite",
		UseCatalog:   true,
	}
}

// GlobalPath is $XDG_CONFIG_HOME/iv/config.json, falling back to
// ~/.config/iv/config.json. Empty when neither can be determined.
func GlobalPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok && after != "" {
			return filepath.Join(after, "iv", "config.json")
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "iv", "config.json")
	}
	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "iv", "config.json")
	}
	return ""
}

// Load merges, lowest first: defaults, the global file, the project file in
// workDir (or explicitPath when set, which must exist), then overrides.
func Load(workDir, explicitPath string, overrides Layer, env []string) (Config, Sources, error) {
	cfg := Default()
	var src Sources

	if p := GlobalPath(env); p != "" {
		l, ok, err := loadFile(p, false)
		if err != nil {
			return Config{}, Sources{}, err
		}
		if ok {
			cfg = Merge(cfg, l)
			src.Global = p
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false
	if strings.TrimSpace(explicitPath) != "" {
		projectPath = explicitPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
		mustExist = true
	}
	l, ok, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, Sources{}, err
	}
	if ok {
		cfg = Merge(cfg, l)
		src.Project = projectPath
	}

	cfg = Merge(cfg, overrides)
	if err := Validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}
	return cfg, src, nil
}

func loadFile(path string, mustExist bool) (Layer, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Layer{}, false, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return Layer{}, false, nil
		}
		return Layer{}, false, err
	}
	l, err := Parse(data)
	if err != nil {
		return Layer{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return l, true, nil
}

// Parse reads one JSONC layer. Comments and trailing commas are allowed.
func Parse(data []byte) (Layer, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Layer{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var l Layer
	dec := json.NewDecoder(strings.NewReader(string(std)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&l); err != nil {
		return Layer{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return l, nil
}

func Merge(base Config, l Layer) Config {
	setS(&base.Sort, l.Sort)
	setB(&base.Cycle, l.Cycle)
	setB(&base.Recursive, l.Recursive)
	setI(&base.Radius, l.Radius)
	setI(&base.Workers, l.Workers)
	setI(&base.Step, l.Step)
	setS(&base.ScrollPolicy, l.ScrollPolicy)
	setI(&base.ScrollCapacity, l.ScrollCapacity)
	setI(&base.SettleMS, l.SettleMS)
	if l.ScrollFPS != nil {
		base.ScrollFPS = *l.ScrollFPS
	}
	setI(&base.SlideShowMS, l.SlideShowMS)
	setS(&base.Background, l.Background)
	setB(&base.ScaleToFit, l.ScaleToFit)
	setB(&base.ColorManage, l.ColorManage)
	setI(&base.Rotate, l.Rotate)
	setS(&base.Profile, l.Profile)
	setS(&base.CatalogStore, l.CatalogStore)
	setB(&base.UseCatalog, l.UseCatalog)
	return base
}

func setS(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setB(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setI(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func Validate(c Config) error {
	if _, err := order.Parse(c.Sort); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if _, err := scroll.ParsePolicy(c.ScrollPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if c.Radius < 1 {
		return fmt.Errorf("%w: radius must be >= 1", ErrConfigInvalid)
	}
	if c.Workers < 0 || c.ScrollCapacity < 0 || c.SettleMS < 0 || c.ScrollFPS < 0 || c.SlideShowMS < 0 {
		return fmt.Errorf("%w: negative value", ErrConfigInvalid)
	}
	if c.Step < 1 {
		return fmt.Errorf("%w: step must be >= 1", ErrConfigInvalid)
	}
	if c.Rotate%90 != 0 {
		return fmt.Errorf("%w: rotate must be a multiple of 90", ErrConfigInvalid)
	}
	if _, err := ParseColor(c.Background); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	switch backend.NormalizeName(c.CatalogStore) {
	case "sqlite", "bolt":
	default:
		return fmt.Errorf("%w: unknown catalog_store %q", ErrConfigInvalid, c.CatalogStore)
	}
	return nil
}

func (c Config) Order() order.Order {
	o, _ := order.Parse(c.Sort)
	return o
}

func (c Config) Policy() scroll.Policy {
	p, _ := scroll.ParsePolicy(c.ScrollPolicy)
	return p
}

func (c Config) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

func (c Config) SlideShow() time.Duration {
	return time.Duration(c.SlideShowMS) * time.Millisecond
}

func (c Config) BackgroundColor() color.Color {
	col, err := ParseColor(c.Background)
	if err != nil {
		return color.Black
	}
	return col
}

// ParseColor accepts #rgb and #rrggbb.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func Format(c Config) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
