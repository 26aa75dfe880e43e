package signal

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

// fakeRelay records sent signals and returns a configurable error.
type fakeRelay struct {
	mu         sync.Mutex
	configured bool
	sendErr    error
	sent       []Signal
	captured   Signal
}

func (f *fakeRelay) Configured() bool { return f.configured }

func (f *fakeRelay) Send(_ context.Context, s Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s.Clone())
	return f.sendErr
}

func (f *fakeRelay) Receive(context.Context) (Signal, error) {
	return f.captured, f.sendErr
}

func newTestService(t *testing.T, relay Relay) *Service {
	t.Helper()
	return NewService(NewSQLiteRepository(setupTestDB(t)), relay)
}

func TestService_LivingRoomScenario(t *testing.T) {
	svc := newTestService(t, &fakeRelay{configured: true})
	ctx := context.Background()

	want := Signal{Frequency: 38, Pulses: []int{100, 50, 100}, Format: "us"}
	if err := svc.Create(ctx, "living-room-ac-on", want); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(ctx, "living-room-ac-on")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	if err := svc.Delete(ctx, "living-room-ac-on"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, "living-room-ac-on"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("Get() after delete = %v, want ErrSignalNotFound", err)
	}
}

func TestService_CreateConflict(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.Create(ctx, "tv", testSignal(1)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Create(ctx, "tv", testSignal(2)); !errors.Is(err, ErrSignalExists) {
		t.Errorf("second Create() = %v, want ErrSignalExists", err)
	}
}

func TestService_Put(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Put(ctx, "tv", Signal{Frequency: 38, Pulses: []int{1}})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !created {
		t.Error("first Put() created = false, want true")
	}

	got, err := svc.Get(ctx, "tv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Format != FormatMicroseconds {
		t.Errorf("Format = %q, want default %q", got.Format, FormatMicroseconds)
	}

	created, err = svc.Put(ctx, "tv", testSignal(2))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if created {
		t.Error("second Put() created = true, want false")
	}
}

func TestService_RejectsInvalidBeforeStore(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for _, freq := range []int{29, 81} {
		err := svc.Create(ctx, "bad", Signal{Frequency: freq, Pulses: []int{1}})
		if !errors.Is(err, ErrInvalidSignal) {
			t.Errorf("Create(freq=%d) = %v, want ErrInvalidSignal", freq, err)
		}
	}
	if _, err := svc.Put(ctx, "bad", Signal{Frequency: 81, Pulses: []int{1}}); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("Put(freq=81) = %v, want ErrInvalidSignal", err)
	}
	if err := svc.Create(ctx, "", testSignal(1)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Create(\"\") = %v, want ErrInvalidName", err)
	}
	if _, err := svc.Put(ctx, "living/ac", testSignal(1)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Put(\"living/ac\") = %v, want ErrInvalidName", err)
	}

	names, err := svc.ListNames(ctx)
	if err != nil {
		t.Fatalf("ListNames() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("ListNames() = %v, want nothing stored", names)
	}

	for _, freq := range []int{30, 80} {
		if err := svc.Create(ctx, "ok", Signal{Frequency: freq, Pulses: []int{1}}); err != nil {
			t.Errorf("Create(freq=%d) error = %v", freq, err)
		}
		if err := svc.Delete(ctx, "ok"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
	}
}

func TestService_MissingName(t *testing.T) {
	svc := newTestService(t, &fakeRelay{configured: true})
	ctx := context.Background()

	if err := svc.Update(ctx, "nope", testSignal(1)); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("Update() = %v, want ErrSignalNotFound", err)
	}
	if err := svc.Delete(ctx, "nope"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("Delete() = %v, want ErrSignalNotFound", err)
	}
	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("Get() = %v, want ErrSignalNotFound", err)
	}
	if err := svc.Send(ctx, "nope"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("Send() = %v, want ErrSignalNotFound", err)
	}
}

func TestService_ListNames(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for _, n := range []string{"a", "b", "c"} {
		if err := svc.Create(ctx, n, testSignal(1)); err != nil {
			t.Fatalf("Create(%q) error = %v", n, err)
		}
	}

	names, err := svc.ListNames(ctx)
	if err != nil {
		t.Fatalf("ListNames() error = %v", err)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"a", "b", "c"}) {
		t.Errorf("ListNames() = %v, want {a b c}", names)
	}
}

func TestService_SendUnconfigured(t *testing.T) {
	tests := []struct {
		name  string
		relay Relay
	}{
		{name: "nil relay", relay: nil},
		{name: "empty address", relay: &fakeRelay{configured: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(NewSQLiteRepository(setupTestDB(t)), tt.relay)
			ctx := context.Background()

			if err := svc.Create(ctx, "tv", testSignal(1)); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			if err := svc.Send(ctx, "tv"); !errors.Is(err, ErrRelayUnavailable) {
				t.Errorf("Send(existing) = %v, want ErrRelayUnavailable", err)
			}
			if err := svc.Send(ctx, "missing"); !errors.Is(err, ErrRelayUnavailable) {
				t.Errorf("Send(missing) = %v, want ErrRelayUnavailable", err)
			}
			if _, err := svc.Receive(ctx); !errors.Is(err, ErrRelayUnavailable) {
				t.Errorf("Receive() = %v, want ErrRelayUnavailable", err)
			}
		})
	}
}

func TestService_Send(t *testing.T) {
	relay := &fakeRelay{configured: true}
	svc := newTestService(t, relay)
	ctx := context.Background()

	var events []SendEvent
	svc.AddSendListener(SendListenerFunc(func(ev SendEvent) {
		events = append(events, ev)
	}))

	want := testSignal(100, 50, 100)
	if err := svc.Create(ctx, "tv", want); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Send(ctx, "tv"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(relay.sent) != 1 || !relay.sent[0].Equal(want) {
		t.Errorf("relay received %+v, want one %+v", relay.sent, want)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if ev := events[0]; ev.Name != "tv" || !ev.OK() || ev.At.IsZero() {
		t.Errorf("event = %+v, want successful send of tv", ev)
	}
}

func TestService_SendTransportError(t *testing.T) {
	transportErr := errors.New("connection refused")
	relay := &fakeRelay{configured: true, sendErr: transportErr}
	svc := newTestService(t, relay)
	ctx := context.Background()

	var failed []SendEvent
	svc.AddSendListener(SendListenerFunc(func(ev SendEvent) {
		if !ev.OK() {
			failed = append(failed, ev)
		}
	}))

	want := testSignal(100, 50, 100)
	if err := svc.Create(ctx, "tv", want); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := svc.Send(ctx, "tv")
	if !errors.Is(err, ErrRelayFailed) {
		t.Errorf("Send() = %v, want ErrRelayFailed", err)
	}
	if !errors.Is(err, transportErr) {
		t.Errorf("Send() = %v, want underlying cause preserved", err)
	}
	if len(failed) != 1 {
		t.Errorf("got %d failed events, want 1", len(failed))
	}

	got, err := svc.Get(ctx, "tv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("stored record changed to %+v, want %+v", got, want)
	}
}

func TestService_Receive(t *testing.T) {
	captured := Signal{Frequency: 38, Pulses: []int{500, 500}, Format: "us"}
	svc := newTestService(t, &fakeRelay{configured: true, captured: captured})
	ctx := context.Background()

	got, err := svc.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if !got.Equal(captured) {
		t.Errorf("Receive() = %+v, want %+v", got, captured)
	}

	names, err := svc.ListNames(ctx)
	if err != nil {
		t.Fatalf("ListNames() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Receive() stored %v, want nothing persisted", names)
	}
}
