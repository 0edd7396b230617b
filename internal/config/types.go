package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Value types shared by the specula config tree and the packages that
// mirror parts of it (logging sampling ticks, telemetry export intervals).

// Duration is a time.Duration that decodes from YAML and SPECULA_* env
// values. Both Go duration strings ("45s", "1m30s") and bare integers,
// read as seconds, are accepted.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		secs, convErr := strconv.Atoi(s)
		if convErr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		parsed = time.Duration(secs) * time.Second
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON renders the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

const redacted = "[REDACTED]"

// Secret holds a credential such as the database URL. Every rendering
// (fmt, JSON, text) is masked; only Value exposes the raw string.
type Secret string

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string { return s.masked() }

// GoString keeps %#v from printing the value.
func (s Secret) GoString() string {
	return "Secret(" + redacted + ")"
}

// Value returns the raw secret.
func (s Secret) Value() string {
	return string(s)
}

// Len is the length of the raw secret, for log fields that must not leak it.
func (s Secret) Len() int {
	return len(s)
}

func (s Secret) IsSet() bool {
	return s != ""
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.masked())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.masked()), nil
}

// UnmarshalJSON rejects the redacted placeholder so a dumped config cannot
// be loaded back with a fake credential.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == redacted {
		return fmt.Errorf("secret value is redacted")
	}
	*s = Secret(raw)
	return nil
}

// UnmarshalText accepts the raw value from YAML or the environment.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
