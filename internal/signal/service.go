package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Relay transmits signals through an IR transceiver.
type Relay interface {
	// Configured reports whether a device address is set.
	Configured() bool

	// Send transmits the signal once.
	Send(ctx context.Context, s Signal) error

	// Receive returns the last signal the device captured.
	Receive(ctx context.Context) (Signal, error)
}

// SendListener is notified after every send attempt that reached the relay.
// Implementations must not block; slow work belongs in their own goroutine.
type SendListener interface {
	SignalSent(ev SendEvent)
}

// SendListenerFunc adapts a function to SendListener.
type SendListenerFunc func(ev SendEvent)

// SignalSent calls f(ev).
func (f SendListenerFunc) SignalSent(ev SendEvent) { f(ev) }

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service implements the signal use cases on top of a Repository and a Relay.
//
// All public methods are safe for concurrent use. The Service holds no
// signal state of its own; the Repository is the only source of truth.
type Service struct {
	repo   Repository
	relay  Relay
	logger Logger
	now    func() time.Time

	listenersMu sync.RWMutex
	listeners   []SendListener
}

// NewService creates a Service. relay may be nil, which behaves like an
// unconfigured relay.
func NewService(repo Repository, relay Relay) *Service {
	return &Service{
		repo:   repo,
		relay:  relay,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// AddSendListener registers l to receive every SendEvent.
func (s *Service) AddSendListener(l SendListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// RelayConfigured reports whether sends can reach a device.
func (s *Service) RelayConfigured() bool {
	return s.relay != nil && s.relay.Configured()
}

// Put creates the record or overwrites an existing one.
func (s *Service) Put(ctx context.Context, name string, sig Signal) (created bool, err error) {
	if err := checkInput(name, &sig); err != nil {
		return false, err
	}
	created, err = s.repo.Upsert(ctx, name, sig)
	if err != nil {
		return false, fmt.Errorf("storing %q: %w", name, err)
	}
	return created, nil
}

// Create stores a new record. Returns ErrSignalExists if name is taken.
func (s *Service) Create(ctx context.Context, name string, sig Signal) error {
	if err := checkInput(name, &sig); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, name, sig); err != nil {
		return fmt.Errorf("creating %q: %w", name, err)
	}
	return nil
}

// Update overwrites an existing record. Returns ErrSignalNotFound if absent.
func (s *Service) Update(ctx context.Context, name string, sig Signal) error {
	if err := checkInput(name, &sig); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, name, sig); err != nil {
		return fmt.Errorf("updating %q: %w", name, err)
	}
	return nil
}

// Get returns the stored signal. Returns ErrSignalNotFound if absent.
func (s *Service) Get(ctx context.Context, name string) (Signal, error) {
	sig, err := s.repo.Get(ctx, name)
	if err != nil {
		return Signal{}, fmt.Errorf("reading %q: %w", name, err)
	}
	return sig, nil
}

// Delete removes the record. Returns ErrSignalNotFound if absent.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("deleting %q: %w", name, err)
	}
	return nil
}

// ListNames returns all stored names; empty, never nil, when the store is empty.
func (s *Service) ListNames(ctx context.Context) ([]string, error) {
	names, err := s.repo.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing signals: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Send forwards the named signal to the device.
//
// Checks run in a fixed order: an unconfigured relay fails with
// ErrRelayUnavailable before the store is consulted, then a missing record
// fails with ErrSignalNotFound. Transport failures are wrapped in
// ErrRelayFailed. The stored record is never modified.
func (s *Service) Send(ctx context.Context, name string) error {
	if !s.RelayConfigured() {
		return ErrRelayUnavailable
	}

	sig, err := s.repo.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("reading %q: %w", name, err)
	}

	start := s.now()
	sendErr := s.relay.Send(ctx, sig)
	ev := SendEvent{
		ID:       uuid.New(),
		Name:     name,
		Signal:   sig,
		Err:      sendErr,
		Duration: s.now().Sub(start),
		At:       start,
	}
	s.notify(ev)

	if sendErr != nil {
		s.logger.Warn("signal send failed", "name", name, "event_id", ev.ID, "error", sendErr)
		return fmt.Errorf("%w: sending %q: %w", ErrRelayFailed, name, sendErr)
	}
	s.logger.Debug("signal sent", "name", name, "event_id", ev.ID, "duration", ev.Duration)
	return nil
}

// Receive returns the signal most recently captured by the device.
// The reading is not stored.
func (s *Service) Receive(ctx context.Context) (Signal, error) {
	if !s.RelayConfigured() {
		return Signal{}, ErrRelayUnavailable
	}
	sig, err := s.relay.Receive(ctx)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: receiving: %w", ErrRelayFailed, err)
	}
	return sig, nil
}

func (s *Service) notify(ev SendEvent) {
	s.listenersMu.RLock()
	listeners := make([]SendListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l.SignalSent(ev)
	}
}

func checkInput(name string, sig *Signal) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	Normalize(sig)
	return Validate(*sig)
}
