package types

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StepKind identifies the variant carried by a Step.
type StepKind string

const (
	StepKindUI     StepKind = "ui"
	StepKindAPI    StepKind = "api"
	StepKindAssert StepKind = "assert"
)

// Spec is one test scenario: an identifier plus an ordered sequence of
// steps. Specs are immutable once parsed.
type Spec struct {
	ID      string        `yaml:"id"`
	Tags    []string      `yaml:"tags,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Steps   []Step        `yaml:"steps"`

	// Source is the file the spec was parsed from. Populated by the
	// runner during discovery, not part of the wire format.
	Source string `yaml:"-"`
}

// UIStep drives a page object action.
type UIStep struct {
	Page   string            `yaml:"page"`
	Action string            `yaml:"action"`
	Args   map[string]string `yaml:"args,omitempty"`
}

// APIStep issues a direct HTTP call. A relative URL is resolved against the
// configured base URL. ExpectStatus, when non-zero, turns a status mismatch
// into a step failure.
type APIStep struct {
	Method       string            `yaml:"method"`
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Body         string            `yaml:"body,omitempty"`
	ExpectStatus int               `yaml:"expectStatus,omitempty"`
}

// AssertSource describes where an assertion's actual value comes from:
// either a page action (Page+Action) or an API call (Method+URL).
type AssertSource struct {
	Page   string            `yaml:"page,omitempty"`
	Action string            `yaml:"action,omitempty"`
	Args   map[string]string `yaml:"args,omitempty"`
	Method string            `yaml:"method,omitempty"`
	URL    string            `yaml:"url,omitempty"`
}

// IsUI reports whether the source probes a page action.
func (s AssertSource) IsUI() bool { return s.Page != "" }

// RetryConfig overrides the default retry policy for one assertion.
type RetryConfig struct {
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Interval      time.Duration `yaml:"interval,omitempty"`
	BackoffFactor float64       `yaml:"backoff,omitempty"`
}

// AssertStep polls a source through the retry engine until the matcher is
// satisfied or the policy budget is exhausted.
type AssertStep struct {
	Source   AssertSource `yaml:"source"`
	Matcher  string       `yaml:"matcher"`
	Expected string       `yaml:"expected"`
	Retry    *RetryConfig `yaml:"retry,omitempty"`
}

// Matchers understood by assertion steps.
const (
	MatcherEquals   = "equals"
	MatcherContains = "contains"
	MatcherStatus   = "status"
)

// ValidMatcher reports whether m names a known matcher.
func ValidMatcher(m string) bool {
	switch m {
	case MatcherEquals, MatcherContains, MatcherStatus:
		return true
	}
	return false
}

// Step is a tagged variant: exactly one of UI, API or Assert is set.
type Step struct {
	Kind   StepKind
	UI     *UIStep
	API    *APIStep
	Assert *AssertStep
}

// stepDoc is the YAML wire shape of a step. Exactly one key must be present.
type stepDoc struct {
	UI     *UIStep     `yaml:"ui,omitempty"`
	API    *APIStep    `yaml:"api,omitempty"`
	Assert *AssertStep `yaml:"assert,omitempty"`
}

// UnmarshalYAML decodes the tagged variant and rejects ambiguous steps.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var doc stepDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}

	set := 0
	if doc.UI != nil {
		set++
		s.Kind = StepKindUI
		s.UI = doc.UI
	}
	if doc.API != nil {
		set++
		s.Kind = StepKindAPI
		s.API = doc.API
	}
	if doc.Assert != nil {
		set++
		s.Kind = StepKindAssert
		s.Assert = doc.Assert
	}
	if set != 1 {
		return fmt.Errorf("step must have exactly one of 'ui', 'api' or 'assert', got %d (line %d)", set, value.Line)
	}
	return s.validate()
}

// MarshalYAML re-emits the tagged wire shape.
func (s Step) MarshalYAML() (interface{}, error) {
	return stepDoc{UI: s.UI, API: s.API, Assert: s.Assert}, nil
}

func (s *Step) validate() error {
	switch s.Kind {
	case StepKindUI:
		if s.UI.Page == "" || s.UI.Action == "" {
			return fmt.Errorf("ui step requires 'page' and 'action'")
		}
	case StepKindAPI:
		if s.API.Method == "" || s.API.URL == "" {
			return fmt.Errorf("api step requires 'method' and 'url'")
		}
	case StepKindAssert:
		a := s.Assert
		if !ValidMatcher(a.Matcher) {
			return fmt.Errorf("assert step has unknown matcher %q", a.Matcher)
		}
		if a.Source.IsUI() {
			if a.Source.Action == "" {
				return fmt.Errorf("assert source with 'page' requires 'action'")
			}
		} else if a.Source.Method == "" || a.Source.URL == "" {
			return fmt.Errorf("assert source requires either page/action or method/url")
		}
	}
	return nil
}

// ParseSpec decodes a spec document and validates its basic shape.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if spec.ID == "" {
		return nil, fmt.Errorf("spec is missing 'id'")
	}
	if len(spec.Steps) == 0 {
		return nil, fmt.Errorf("spec %q has no steps", spec.ID)
	}
	return &spec, nil
}

// HasTag reports whether the spec carries the given tag.
func (s *Spec) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
