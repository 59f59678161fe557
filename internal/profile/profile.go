// Package profile loads per-stage overrides for the analysis pipeline from
// a YAML file.
package profile

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/locus/internal/pipeline"
	"github.com/sells-group/locus/internal/reasoner"
)

// Profile is the top-level stage profile.
type Profile struct {
	Defaults StageOverride            `yaml:"defaults"`
	Stages   map[string]StageOverride `yaml:"stages"`
}

// StageOverride adjusts one stage. Zero values keep the built-in setting.
type StageOverride struct {
	Tier        string         `yaml:"tier"` // "fast" or "pro"
	TimeoutSecs int            `yaml:"timeout_secs"`
	Grounded    *bool          `yaml:"grounded,omitempty"`
	Retry       *RetryOverride `yaml:"retry,omitempty"`
}

// RetryOverride adjusts a stage retry policy.
type RetryOverride struct {
	MaxAttempts     int `yaml:"max_attempts"`
	InitialDelaySec int `yaml:"initial_delay_secs"`
	MaxDelaySec     int `yaml:"max_delay_secs"`
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a profile. The YAML has a top-level "profile" key.
func Parse(data []byte) (*Profile, error) {
	var wrapper struct {
		Profile Profile `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "profile: parse")
	}

	p := &wrapper.Profile
	if err := p.Defaults.validate("defaults"); err != nil {
		return nil, err
	}
	for name, o := range p.Stages {
		if err := o.validate(name); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (o StageOverride) validate(name string) error {
	switch reasoner.Tier(o.Tier) {
	case "", reasoner.TierFast, reasoner.TierPro:
	default:
		return eris.Errorf("profile: stage %s: unknown tier %q", name, o.Tier)
	}
	if o.TimeoutSecs < 0 {
		return eris.Errorf("profile: stage %s: negative timeout", name)
	}
	if r := o.Retry; r != nil && (r.MaxAttempts < 0 || r.InitialDelaySec < 0 || r.MaxDelaySec < 0) {
		return eris.Errorf("profile: stage %s: negative retry setting", name)
	}
	return nil
}

// StageOverride returns the override for a stage, with defaults filled in
// for anything the stage entry leaves unset.
func (p *Profile) StageOverride(name string) StageOverride {
	o, ok := p.Stages[name]
	if !ok {
		return p.Defaults
	}
	if o.Tier == "" {
		o.Tier = p.Defaults.Tier
	}
	if o.TimeoutSecs == 0 {
		o.TimeoutSecs = p.Defaults.TimeoutSecs
	}
	if o.Grounded == nil {
		o.Grounded = p.Defaults.Grounded
	}
	if o.Retry == nil {
		o.Retry = p.Defaults.Retry
	}
	return o
}

// Apply returns a copy of stages with the profile applied. A stage name in
// the profile that matches no stage is an error.
func (p *Profile) Apply(stages []pipeline.Stage) ([]pipeline.Stage, error) {
	known := make(map[string]bool, len(stages))
	for _, st := range stages {
		known[st.Name] = true
	}
	var unknown []string
	for name := range p.Stages {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, eris.Errorf("profile: unknown stages %v", unknown)
	}

	out := make([]pipeline.Stage, len(stages))
	for i, st := range stages {
		o := p.StageOverride(st.Name)
		if o.Tier != "" {
			st.Tier = reasoner.Tier(o.Tier)
		}
		if o.TimeoutSecs > 0 {
			st.Timeout = time.Duration(o.TimeoutSecs) * time.Second
		}
		if o.Grounded != nil {
			st.Grounded = *o.Grounded
		}
		if r := o.Retry; r != nil {
			if r.MaxAttempts > 0 {
				st.Retry.MaxAttempts = r.MaxAttempts
			}
			if r.InitialDelaySec > 0 {
				st.Retry.InitialBackoff = time.Duration(r.InitialDelaySec) * time.Second
			}
			if r.MaxDelaySec > 0 {
				st.Retry.MaxBackoff = time.Duration(r.MaxDelaySec) * time.Second
			}
		}
		out[i] = st
	}
	return out, nil
}
