package signal

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Frequency bounds and defaults, in kHz.
const (
	MinFrequency     = 30
	MaxFrequency     = 80
	DefaultFrequency = 38
)

// FormatMicroseconds is the only pulse unit the device understands.
const FormatMicroseconds = "us"

// Signal is an infrared transmission: a carrier frequency and alternating
// on/off durations of that carrier.
//
// The JSON field names match the device's local API so a Signal can be
// sent as-is.
type Signal struct {
	// Frequency is the carrier frequency in kHz.
	Frequency int `json:"freq" yaml:"freq"`

	// Pulses are on/off durations in the unit named by Format.
	Pulses []int `json:"data" yaml:"data"`

	// Format names the unit of Pulses; always "us" in practice.
	Format string `json:"format" yaml:"format"`
}

// DefaultSignal returns a Signal carrying the default frequency and format
// and no pulses. Decoders start from it so omitted fields take defaults.
func DefaultSignal() Signal {
	return Signal{
		Frequency: DefaultFrequency,
		Format:    FormatMicroseconds,
	}
}

// Clone returns a copy that shares no memory with s.
func (s Signal) Clone() Signal {
	s.Pulses = slices.Clone(s.Pulses)
	return s
}

// Equal reports whether two signals have identical fields.
func (s Signal) Equal(o Signal) bool {
	return s.Frequency == o.Frequency &&
		s.Format == o.Format &&
		slices.Equal(s.Pulses, o.Pulses)
}

// Record is a Signal persisted under a unique name.
type Record struct {
	Name   string
	Signal Signal
}

// SendEvent describes one completed send attempt.
type SendEvent struct {
	ID       uuid.UUID
	Name     string
	Signal   Signal
	Err      error
	Duration time.Duration
	At       time.Time
}

// OK reports whether the device accepted the signal.
func (e SendEvent) OK() bool {
	return e.Err == nil
}

// SendSummary is the wire form of a SendEvent used by event publishers.
type SendSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	At         string `json:"at"`
}

// Summary converts e for JSON publishing.
func (e SendEvent) Summary() SendSummary {
	sum := SendSummary{
		ID:         e.ID.String(),
		Name:       e.Name,
		OK:         e.OK(),
		DurationMS: e.Duration.Milliseconds(),
		At:         e.At.UTC().Format(time.RFC3339Nano),
	}
	if e.Err != nil {
		sum.Error = e.Err.Error()
	}
	return sum
}
