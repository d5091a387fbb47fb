package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veilhq/veil-backend/internal/logger"
	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
	"github.com/veilhq/veil-backend/internal/utils"
)

// PrivacyPolicy is the org-independent privacy tuning. Epsilons are policy,
// not per-org knobs; k-threshold here is only the default for new orgs.
type PrivacyPolicy struct {
	DefaultKThreshold   int     `yaml:"default_k_threshold"`
	EpsilonParticipants float64 `yaml:"epsilon_participants"`
	EpsilonThemes       float64 `yaml:"epsilon_themes"`
	JitterMinMs         int     `yaml:"jitter_min_ms"`
	JitterMaxMs         int     `yaml:"jitter_max_ms"`
	AuditCapacity       int     `yaml:"audit_capacity"`
}

func defaultPolicy() PrivacyPolicy {
	return PrivacyPolicy{
		DefaultKThreshold:   5,
		EpsilonParticipants: 0.5,
		EpsilonThemes:       0.8,
		JitterMinMs:         5000,
		JitterMaxMs:         30000,
		AuditCapacity:       10000,
	}
}

// LoadPolicy reads PRIVACY_POLICY_FILE when set, otherwise returns the
// defaults with individual env overrides applied. A non-positive epsilon is
// a setup error: the process must not start with it.
func LoadPolicy(log *logger.Logger) (PrivacyPolicy, error) {
	p := defaultPolicy()

	if path := utils.GetEnv("PRIVACY_POLICY_FILE", "", log); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return PrivacyPolicy{}, fmt.Errorf("failed to read privacy policy file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return PrivacyPolicy{}, fmt.Errorf("failed to parse privacy policy file %q: %w", path, err)
		}
	} else {
		p.DefaultKThreshold = utils.GetEnvAsInt("DEFAULT_K_THRESHOLD", p.DefaultKThreshold, log)
		p.EpsilonParticipants = utils.GetEnvAsFloat("EPSILON_PARTICIPANTS", p.EpsilonParticipants, log)
		p.EpsilonThemes = utils.GetEnvAsFloat("EPSILON_THEMES", p.EpsilonThemes, log)
		p.JitterMinMs = utils.GetEnvAsInt("JITTER_MIN_MS", p.JitterMinMs, log)
		p.JitterMaxMs = utils.GetEnvAsInt("JITTER_MAX_MS", p.JitterMaxMs, log)
		p.AuditCapacity = utils.GetEnvAsInt("AUDIT_CAPACITY", p.AuditCapacity, log)
	}

	if err := p.Validate(); err != nil {
		return PrivacyPolicy{}, err
	}
	return p, nil
}

func (p PrivacyPolicy) Validate() error {
	if p.EpsilonParticipants <= 0 || p.EpsilonThemes <= 0 {
		return pkgerrors.ErrInvalidEpsilon
	}
	if p.DefaultKThreshold < 2 {
		return fmt.Errorf("%w: default k threshold %d below 2", pkgerrors.ErrInvalidArgument, p.DefaultKThreshold)
	}
	if p.JitterMinMs < 0 || p.JitterMaxMs <= p.JitterMinMs {
		return fmt.Errorf("%w: jitter window [%d, %d] ms", pkgerrors.ErrInvalidArgument, p.JitterMinMs, p.JitterMaxMs)
	}
	return nil
}

func (p PrivacyPolicy) JitterMin() time.Duration { return time.Duration(p.JitterMinMs) * time.Millisecond }
func (p PrivacyPolicy) JitterMax() time.Duration { return time.Duration(p.JitterMaxMs) * time.Millisecond }
