package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that decodes from "90s" style strings or a
// bare number of seconds, as env vars often carry.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	parsed, err := time.ParseDuration(s)
	if err != nil {
		secs, convErr := strconv.ParseFloat(s, 64)
		if convErr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		parsed = time.Duration(secs * float64(time.Second))
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// secretFilePrefix marks a secret whose value lives in a file, such as a
// mounted container secret.
const secretFilePrefix = "file:"

// Secret holds an API key or password. Every printing and marshaling path
// redacts it; only Value returns the real content.
type Secret string

const redactedSecret = "[REDACTED]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redactedSecret
}

func (s Secret) GoString() string {
	return "Secret(" + redactedSecret + ")"
}

// Value returns the secret itself.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a value was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText takes the raw value, or reads it from the named file when
// the text starts with "file:". Trailing newlines in the file are dropped.
func (s *Secret) UnmarshalText(text []byte) error {
	raw := string(text)
	if !strings.HasPrefix(raw, secretFilePrefix) {
		*s = Secret(raw)
		return nil
	}
	path := strings.TrimPrefix(raw, secretFilePrefix)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading secret file %s: %w", path, err)
	}
	*s = Secret(strings.TrimRight(string(data), "\r\n"))
	return nil
}
