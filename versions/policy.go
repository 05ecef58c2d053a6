package versions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Policy controls what happens when the configured, detected and expected
// releases disagree.
type Policy string

const (
	PolicyStrict Policy = "strict"
	PolicyWarn   Policy = "warn"
	PolicyIgnore Policy = "ignore"
)

// ErrVersionMismatch is matched by every *MismatchError.
var ErrVersionMismatch = errors.New("eric version mismatch")

// MismatchError is returned under PolicyStrict.
type MismatchError struct {
	Msg string
}

func (e *MismatchError) Error() string { return e.Msg }

func (e *MismatchError) Unwrap() error { return ErrVersionMismatch }

// ParsePolicy parses a policy selector. An empty string yields PolicyWarn.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyWarn, nil
	case PolicyStrict, PolicyWarn, PolicyIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("invalid version policy %q (want strict, warn or ignore)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Policy) String() string {
	if p == "" {
		return string(PolicyWarn)
	}
	return string(p)
}

// Selection collects the inputs to Resolve.
type Selection struct {
	// Requested is an explicitly configured release, if any.
	Requested string
	// Detected is the release found in the installation path, if any.
	Detected string
	// Expected is the release the operator expects to be installed, if any.
	Expected string
	Policy   Policy
}

// Resolve picks the release to use and applies the mismatch policy.
//
// The release is Requested, else Detected, else Default. Under PolicyWarn and
// PolicyIgnore an unsupported release falls back to the Default configuration.
func Resolve(sel Selection, logger zerolog.Logger) (Config, error) {
	key := sel.Requested
	if key == "" {
		key = sel.Detected
	}
	if key == "" {
		key = Default
	}

	mismatch := func(msg string) error {
		switch sel.Policy {
		case PolicyStrict:
			return &MismatchError{Msg: msg}
		case PolicyIgnore:
			return nil
		default:
			logger.Warn().Str("policy", sel.Policy.String()).Msg(msg)
			return nil
		}
	}

	if sel.Expected != "" && key != sel.Expected {
		if err := mismatch(fmt.Sprintf("configured ERiC version %q does not match expected version %q", key, sel.Expected)); err != nil {
			return Config{}, err
		}
	}
	if sel.Detected != "" && sel.Detected != key {
		if err := mismatch(fmt.Sprintf("detected ERiC version %q differs from configured %q", sel.Detected, key)); err != nil {
			return Config{}, err
		}
	}
	cfg, ok := Lookup(key)
	if !ok {
		if err := mismatch(fmt.Sprintf("ERiC version %q is not in supported set %v", key, supported)); err != nil {
			return Config{}, err
		}
		cfg = configs[Default]
	}
	return cfg, nil
}
