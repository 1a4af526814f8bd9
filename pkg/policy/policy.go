package policy

import (
	"fmt"
	"regexp"
	"time"
)

// ContentPolicy is one immutable, versioned snapshot of the content rules in
// force. A reload never mutates an active snapshot; it builds a fresh one and
// swaps it atomically in the Store.
type ContentPolicy struct {
	Version   int64     `json:"version" mapstructure:"version"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`

	Profanity       ProfanityRules        `json:"profanity" mapstructure:"profanity"`
	PII             PIIRules              `json:"pii" mapstructure:"pii"`
	Harmful         HarmfulRules          `json:"harmful" mapstructure:"harmful"`
	Injection       InjectionRules        `json:"injection" mapstructure:"injection"`
	Compliance      []ComplianceRule      `json:"compliance" mapstructure:"compliance"`
	Input           InputRules            `json:"input" mapstructure:"input"`
	EnabledChecks   map[string]bool       `json:"enabled_checks" mapstructure:"enabled_checks"`
	compiledPII     map[string]*regexp.Regexp
	compiledComply  []*regexp.Regexp
	compiledSignals []*regexp.Regexp
}

type ProfanityRules struct {
	Terms      []string `json:"terms" mapstructure:"terms"`
	Exceptions []string `json:"exceptions" mapstructure:"exceptions"`
}

type PIIRules struct {
	// Patterns maps a PII category (email, phone, national_id, card,
	// address) to its detection regex.
	Patterns map[string]string `json:"patterns" mapstructure:"patterns"`
}

type HarmfulRules struct {
	Categories []string           `json:"categories" mapstructure:"categories"`
	Thresholds map[string]float64 `json:"thresholds" mapstructure:"thresholds"`
}

type InjectionRules struct {
	Signatures []string `json:"signatures" mapstructure:"signatures"`
	Threshold  float64  `json:"threshold" mapstructure:"threshold"`
}

type ComplianceRule struct {
	Name     string `json:"name" mapstructure:"name"`
	Pattern  string `json:"pattern" mapstructure:"pattern"`
	Severity string `json:"severity" mapstructure:"severity"`
	Message  string `json:"message" mapstructure:"message"`
}

type InputRules struct {
	MaxLength int `json:"max_length" mapstructure:"max_length"`
}

// Compile validates the snapshot and precompiles its regular expressions.
// A snapshot that fails to compile is rejected by the Store and the
// last-known-good snapshot stays active.
func (p *ContentPolicy) Compile() error {
	if p.Version <= 0 {
		return fmt.Errorf("policy version must be positive, got %d", p.Version)
	}
	if p.Input.MaxLength <= 0 {
		p.Input.MaxLength = DefaultMaxInputLength
	}
	if p.Injection.Threshold <= 0 || p.Injection.Threshold > 1 {
		p.Injection.Threshold = DefaultInjectionThreshold
	}

	p.compiledPII = make(map[string]*regexp.Regexp, len(p.PII.Patterns))
	for category, pattern := range p.PII.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid pii pattern %q: %w", category, err)
		}
		p.compiledPII[category] = re
	}

	p.compiledComply = make([]*regexp.Regexp, len(p.Compliance))
	for i, rule := range p.Compliance {
		if rule.Pattern == "" {
			return fmt.Errorf("compliance rule %q has empty pattern", rule.Name)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("invalid compliance pattern %q: %w", rule.Name, err)
		}
		p.compiledComply[i] = re
	}

	p.compiledSignals = make([]*regexp.Regexp, len(p.Injection.Signatures))
	for i, sig := range p.Injection.Signatures {
		re, err := regexp.Compile(sig)
		if err != nil {
			return fmt.Errorf("invalid injection signature %q: %w", sig, err)
		}
		p.compiledSignals[i] = re
	}
	return nil
}

// PIIPatterns returns the compiled PII regexes keyed by category.
func (p *ContentPolicy) PIIPatterns() map[string]*regexp.Regexp {
	return p.compiledPII
}

// CompliancePattern returns the compiled regex for rule index i.
func (p *ContentPolicy) CompliancePattern(i int) *regexp.Regexp {
	return p.compiledComply[i]
}

// InjectionSignatures returns the compiled prompt-injection signatures.
func (p *ContentPolicy) InjectionSignatures() []*regexp.Regexp {
	return p.compiledSignals
}

// CheckEnabled reports whether a named check is enabled. Checks default to
// enabled when the snapshot carries no explicit flag.
func (p *ContentPolicy) CheckEnabled(name string) bool {
	if p.EnabledChecks == nil {
		return true
	}
	enabled, ok := p.EnabledChecks[name]
	if !ok {
		return true
	}
	return enabled
}

const (
	DefaultMaxInputLength     = 10000
	DefaultInjectionThreshold = 0.8
)

// Default returns the built-in snapshot used when no external source has been
// loaded yet. It carries version 1 so that any externally loaded snapshot
// replaces it.
func Default() *ContentPolicy {
	p := &ContentPolicy{
		Version:   1,
		UpdatedAt: time.Now(),
		Profanity: ProfanityRules{},
		PII: PIIRules{
			Patterns: map[string]string{
				"email":       `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
				"phone":       `\b(\+?\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`,
				"national_id": `\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`,
				"card":        `\b(?:\d[ -]?){13,19}\b`,
				"address":     `\b\d+\s+[A-Za-z]+(?:\s[A-Za-z]+)*\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr)\b`,
			},
		},
		Harmful: HarmfulRules{
			Categories: []string{"medical_advice", "legal_advice", "financial_advice", "dangerous_instructions"},
			Thresholds: map[string]float64{},
		},
		Injection: InjectionRules{
			Signatures: []string{
				`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`,
				`(?i)disregard\s+(your|all|previous)\s+(instructions|rules|guidelines)`,
				`(?i)you\s+are\s+(now|no\s+longer)\s+(a|an|the)\b`,
				`(?i)act\s+as\s+(if\s+you\s+are|a|an)\b.*\b(admin|developer|system)`,
				`(?i)(system|override)\s*(prompt|mode)\s*[:=]`,
				`(?i)pretend\s+(that\s+)?(you|your)\b.*\b(restrictions|rules|guidelines)`,
				`(?i)reveal\s+(your|the)\s+(system\s+)?(prompt|instructions)`,
			},
			Threshold: DefaultInjectionThreshold,
		},
		Input: InputRules{MaxLength: DefaultMaxInputLength},
	}
	if err := p.Compile(); err != nil {
		// The built-in snapshot is static; a compile failure here is a
		// programming error.
		panic(err)
	}
	return p
}
