package config

import (
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/lodge/pkg/registry"
)

// Defaults applied by Validate when the corresponding field is omitted.
const (
	DefaultKnowledgeRoot        = "knowledge"
	DefaultDuplicationThreshold = 0.75
	DefaultUpdateThreshold      = 0.25
	DefaultGrantTTL             = 24 * time.Hour
	DefaultIntentTTL            = 30 * time.Second
)

// LodgeConfig represents the top-level lodge.yml configuration
type LodgeConfig struct {
	Version      string              `yaml:"version"`
	Knowledge    *KnowledgeConfig    `yaml:"knowledge,omitempty"`
	Producers    map[string]Producer `yaml:"producers"`
	Coordination *CoordinationConfig `yaml:"coordination,omitempty"`
	Services     *ServicesConfig     `yaml:"services,omitempty"`

	// Parsed TTLs, populated by Validate
	grantTTL  time.Duration
	intentTTL time.Duration
}

// KnowledgeConfig locates the knowledge tree inside the workspace
type KnowledgeConfig struct {
	Root string `yaml:"root,omitempty"` // Relative to the Git root, default "knowledge"
}

// Producer represents a single producer identity
type Producer struct {
	Description string   `yaml:"description"`
	Beats       []string `yaml:"beats,omitempty"` // Optional topic globs this producer usually covers (informational)
}

// CoordinationConfig tunes the consultation policy
type CoordinationConfig struct {
	DuplicationThreshold *float64 `yaml:"duplication_threshold,omitempty"` // Scope containment at or above this yields avoid_duplication
	UpdateThreshold      *float64 `yaml:"update_threshold,omitempty"`      // Same-producer overlap at or above this yields update_existing
	GrantTTL             string   `yaml:"grant_ttl,omitempty"`             // Go duration, default "24h"
	IntentTTL            string   `yaml:"intent_ttl,omitempty"`            // Go duration, default "30s"
}

// ServicesConfig specifies service-level overrides
type ServicesConfig struct {
	Redis *ServiceOverride `yaml:"redis,omitempty"`
}

// ServiceOverride allows overriding default service images
type ServiceOverride struct {
	Image string `yaml:"image,omitempty"`
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted fields.
func (c *LodgeConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: at least one producer
	if len(c.Producers) == 0 {
		return fmt.Errorf("no producers defined")
	}

	// Validate each producer
	for name, producer := range c.Producers {
		if err := producer.Validate(name); err != nil {
			return err
		}
	}

	// Apply knowledge root default
	if c.Knowledge == nil {
		c.Knowledge = &KnowledgeConfig{Root: DefaultKnowledgeRoot}
	} else if c.Knowledge.Root == "" {
		c.Knowledge.Root = DefaultKnowledgeRoot
	}
	if err := registry.ValidateRelPath(c.Knowledge.Root); err != nil {
		return fmt.Errorf("invalid knowledge.root: %w", err)
	}

	// Apply coordination defaults
	if c.Coordination == nil {
		c.Coordination = &CoordinationConfig{}
	}
	if c.Coordination.DuplicationThreshold == nil {
		v := DefaultDuplicationThreshold
		c.Coordination.DuplicationThreshold = &v
	}
	if c.Coordination.UpdateThreshold == nil {
		v := DefaultUpdateThreshold
		c.Coordination.UpdateThreshold = &v
	}

	dup := *c.Coordination.DuplicationThreshold
	upd := *c.Coordination.UpdateThreshold
	if dup < 0 || dup > 1 {
		return fmt.Errorf("coordination.duplication_threshold must be within [0, 1], got %v", dup)
	}
	if upd < 0 || upd > 1 {
		return fmt.Errorf("coordination.update_threshold must be within [0, 1], got %v", upd)
	}
	if dup < upd {
		return fmt.Errorf("coordination.duplication_threshold (%v) must be >= update_threshold (%v)", dup, upd)
	}

	// Parse TTLs
	c.grantTTL = DefaultGrantTTL
	if c.Coordination.GrantTTL != "" {
		ttl, err := time.ParseDuration(c.Coordination.GrantTTL)
		if err != nil {
			return fmt.Errorf("invalid coordination.grant_ttl: %w", err)
		}
		if ttl <= 0 {
			return fmt.Errorf("coordination.grant_ttl must be positive, got %s", ttl)
		}
		c.grantTTL = ttl
	}

	c.intentTTL = DefaultIntentTTL
	if c.Coordination.IntentTTL != "" {
		ttl, err := time.ParseDuration(c.Coordination.IntentTTL)
		if err != nil {
			return fmt.Errorf("invalid coordination.intent_ttl: %w", err)
		}
		if ttl <= 0 {
			return fmt.Errorf("coordination.intent_ttl must be positive, got %s", ttl)
		}
		c.intentTTL = ttl
	}

	return nil
}

// Validate performs validation on a single producer configuration
func (p *Producer) Validate(name string) error {
	if err := registry.ValidateSlug(name); err != nil {
		return fmt.Errorf("producer '%s': invalid name: %w", name, err)
	}

	// Required: description
	if p.Description == "" {
		return fmt.Errorf("producer '%s': description is required", name)
	}

	// Beats are optional but must be well-formed glob patterns
	for _, beat := range p.Beats {
		if _, err := path.Match(beat, "probe"); err != nil {
			return fmt.Errorf("producer '%s': invalid beat pattern %q: %w", name, beat, err)
		}
	}

	return nil
}

// HasProducer reports whether name is a declared producer identity.
func (c *LodgeConfig) HasProducer(name string) bool {
	_, ok := c.Producers[name]
	return ok
}

// ProducerNames returns the declared producer identities, sorted.
func (c *LodgeConfig) ProducerNames() []string {
	names := make([]string, 0, len(c.Producers))
	for name := range c.Producers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnowledgeRoot returns the knowledge tree location relative to the Git root.
// Only valid after Validate.
func (c *LodgeConfig) KnowledgeRoot() string {
	if c.Knowledge == nil {
		return DefaultKnowledgeRoot
	}
	return c.Knowledge.Root
}

// DuplicationThreshold returns the containment score at or above which a
// cross-producer consultation yields avoid_duplication. Only valid after Validate.
func (c *LodgeConfig) DuplicationThreshold() float64 {
	return *c.Coordination.DuplicationThreshold
}

// UpdateThreshold returns the overlap score at or above which a same-producer
// consultation yields update_existing. Only valid after Validate.
func (c *LodgeConfig) UpdateThreshold() float64 {
	return *c.Coordination.UpdateThreshold
}

// GrantTTL returns how long a consultation grant stays live. Only valid after Validate.
func (c *LodgeConfig) GrantTTL() time.Duration {
	return c.grantTTL
}

// IntentTTL returns how long an in-flight intent marker stays live. Only valid
// after Validate.
func (c *LodgeConfig) IntentTTL() time.Duration {
	return c.intentTTL
}

// Load reads and validates lodge.yml from the specified path
func Load(path string) (*LodgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config LodgeConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
