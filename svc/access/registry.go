package access

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// RateLimit caps feature usage per account.
type RateLimit struct {
	MaxUsage int           `yaml:"max_usage" json:"max_usage"`
	Window   time.Duration `yaml:"window" json:"window"`
}

// FeatureConfig describes how one feature is gated.
type FeatureConfig struct {
	Feature              string            `yaml:"feature" json:"feature"`
	RequiresSubscription bool              `yaml:"requires_subscription" json:"requires_subscription"`
	AllowGracePeriod     bool              `yaml:"allow_grace_period" json:"allow_grace_period"`
	MinimumPlan          subscription.Plan `yaml:"minimum_plan,omitempty" json:"minimum_plan,omitempty"`
	RateLimit            *RateLimit        `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

func (f FeatureConfig) validate() error {
	if f.Feature == "" {
		return errors.New("feature name is empty")
	}
	if f.MinimumPlan != "" && !f.MinimumPlan.Valid() {
		return fmt.Errorf("feature %s: unknown minimum plan %q", f.Feature, f.MinimumPlan)
	}
	if rl := f.RateLimit; rl != nil && (rl.MaxUsage <= 0 || rl.Window <= 0) {
		return fmt.Errorf("feature %s: rate limit needs positive max_usage and window", f.Feature)
	}
	return nil
}

// Registry is an immutable set of feature configs.
type Registry struct {
	features map[string]FeatureConfig
}

// NewRegistry validates features and indexes them by name.
func NewRegistry(features ...FeatureConfig) (*Registry, error) {
	r := &Registry{features: make(map[string]FeatureConfig, len(features))}
	for _, f := range features {
		f.MinimumPlan = subscription.Plan(strings.ToUpper(string(f.MinimumPlan)))
		if err := f.validate(); err != nil {
			return nil, errors.Join(ErrInvalidRegistry, err)
		}
		if _, dup := r.features[f.Feature]; dup {
			return nil, errors.Join(ErrInvalidRegistry, fmt.Errorf("feature %s declared twice", f.Feature))
		}
		r.features[f.Feature] = f
	}
	return r, nil
}

// ParseRegistry reads a YAML document with a top-level "features" list.
func ParseRegistry(data []byte) (*Registry, error) {
	var doc struct {
		Features []FeatureConfig `yaml:"features"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidRegistry, err)
	}
	return NewRegistry(doc.Features...)
}

// LoadRegistry reads path, or returns the default registry when path is
// empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(DefaultFeatures()...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidRegistry, err)
	}
	return ParseRegistry(data)
}

// Get returns the config of feature.
func (r *Registry) Get(feature string) (FeatureConfig, bool) {
	f, ok := r.features[feature]
	return f, ok
}

// Features returns all configs sorted by name.
func (r *Registry) Features() []FeatureConfig {
	out := make([]FeatureConfig, 0, len(r.features))
	for _, f := range r.features {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b FeatureConfig) int { return strings.Compare(a.Feature, b.Feature) })
	return out
}

// DefaultFeatures is the built-in catalogue used when no file is configured.
func DefaultFeatures() []FeatureConfig {
	return []FeatureConfig{
		{Feature: "patient_records"},
		{Feature: "appointments", RateLimit: &RateLimit{MaxUsage: 500, Window: 24 * time.Hour}},
		{Feature: "document_upload", RequiresSubscription: true, AllowGracePeriod: true},
		{
			Feature:              "ai_analysis",
			RequiresSubscription: true,
			MinimumPlan:          subscription.PlanMonthly,
			RateLimit:            &RateLimit{MaxUsage: 50, Window: 24 * time.Hour},
		},
		{
			Feature:              "sms_reminders",
			RequiresSubscription: true,
			AllowGracePeriod:     true,
			RateLimit:            &RateLimit{MaxUsage: 200, Window: 24 * time.Hour},
		},
		{Feature: "data_export", RequiresSubscription: true, AllowGracePeriod: true, MinimumPlan: subscription.PlanYearly},
		{Feature: "advanced_analytics", RequiresSubscription: true, MinimumPlan: subscription.PlanYearly},
	}
}
