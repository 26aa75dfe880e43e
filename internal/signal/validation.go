package signal

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the maximum length of a record name in characters.
const MaxNameLength = 128

// Normalize fills defaulted fields. An empty format becomes "us"; a zero
// frequency is left alone so Validate can reject it.
func Normalize(s *Signal) {
	if s.Format == "" {
		s.Format = FormatMicroseconds
	}
}

// Validate checks a signal before it is stored or sent.
//
// Rules:
//   - Frequency within [MinFrequency, MaxFrequency]
//   - Pulses present (an empty list is accepted)
//   - No negative durations
func Validate(s Signal) error {
	if s.Frequency < MinFrequency || s.Frequency > MaxFrequency {
		return fmt.Errorf("%w: freq %d outside [%d, %d]",
			ErrInvalidSignal, s.Frequency, MinFrequency, MaxFrequency)
	}
	if s.Pulses == nil {
		return fmt.Errorf("%w: data is required", ErrInvalidSignal)
	}
	for i, p := range s.Pulses {
		if p < 0 {
			return fmt.Errorf("%w: data[%d] is negative", ErrInvalidSignal, i)
		}
	}
	return nil
}

// ValidateName checks a record name. Names are single path segments in
// both /signals/{name} and the MQTT send topics, so "/" is not allowed.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: name must not contain %q", ErrInvalidName, "/")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}
	return nil
}
