// Package registry holds the versioned, externally-supplied site selector
// configuration and the per-selector success statistics used to order it.
package registry

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SiteSelectors are the configured selector lists for one hostname.
type SiteSelectors struct {
	Primary  []string `yaml:"primary" json:"primary"`
	Fallback []string `yaml:"fallback" json:"fallback"`
	Semantic []string `yaml:"semantic" json:"semantic"`
}

// Config is the top-level selector registry document.
type Config struct {
	Version int                      `yaml:"version"`
	Sites   map[string]SiteSelectors `yaml:"sites"`
	Generic []string                 `yaml:"generic"`
}

// Registry resolves selector configuration by hostname.
type Registry struct {
	cfg Config
}

// defaultGeneric is the cross-site semantic selector list used when the
// registry supplies none. Ordered most- to least-specific.
var defaultGeneric = []string{
	`[data-testid*="total-price"]`,
	`[data-testid*="price"]`,
	`[data-test*="total"]`,
	`[itemprop="price"]`,
	`[aria-label*="total"]`,
	`[class*="total-price"]`,
	`[class*="totalPrice"]`,
	`[class*="grand-total"]`,
	`[class*="price-total"]`,
}

// Load reads a selector registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "registry: parse config")
	}
	return New(cfg), nil
}

// New builds a Registry from an in-memory config.
func New(cfg Config) *Registry {
	if len(cfg.Generic) == 0 {
		cfg.Generic = defaultGeneric
	}
	return &Registry{cfg: cfg}
}

// Default returns a registry with no site entries and the generic list.
func Default() *Registry {
	return New(Config{})
}

// Version returns the registry document version.
func (r *Registry) Version() int {
	return r.cfg.Version
}

// ForHost returns the selector lists for a hostname. Lookup tries the exact
// host, then the host without a leading "www.", then parent-domain suffixes,
// so "m.shop.example.com" inherits an "example.com" entry.
func (r *Registry) ForHost(hostname string) SiteSelectors {
	hostname = strings.ToLower(hostname)
	if s, ok := r.cfg.Sites[hostname]; ok {
		return s
	}
	if trimmed, ok := strings.CutPrefix(hostname, "www."); ok {
		if s, ok := r.cfg.Sites[trimmed]; ok {
			return s
		}
	}
	parts := strings.Split(hostname, ".")
	for i := 1; i < len(parts)-1; i++ {
		if s, ok := r.cfg.Sites[strings.Join(parts[i:], ".")]; ok {
			return s
		}
	}
	return SiteSelectors{}
}

// Generic returns the cross-site semantic selector list.
func (r *Registry) Generic() []string {
	return r.cfg.Generic
}
