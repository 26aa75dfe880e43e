package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/remo-relay/internal/audit"
	"github.com/nerrad567/remo-relay/internal/infrastructure/config"
	"github.com/nerrad567/remo-relay/internal/infrastructure/logging"
	"github.com/nerrad567/remo-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/remo-relay/internal/remo"
	irsignal "github.com/nerrad567/remo-relay/internal/signal"
)

// testConfig returns defaults with a temp database and quiet logging.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "signals.db")
	cfg.Logging.Level = "error"
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0
	return cfg
}

// writeConfigFile writes a minimal YAML config pointing at dbPath.
func writeConfigFile(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

logging:
  level: error
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeDevice records signals posted to /messages.
type fakeDevice struct {
	*httptest.Server

	mu   sync.Mutex
	sent []irsignal.Signal
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	d := &fakeDevice{}
	d.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.Method != http.MethodPost {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		var s irsignal.Signal
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		d.sent = append(d.sent, s)
		d.mu.Unlock()
	}))
	t.Cleanup(d.Close)
	return d
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "remorelay dev") {
		t.Errorf("version output = %q, want prefix %q", out, "remorelay dev")
	}
	if !strings.Contains(out, "Git commit: unknown") {
		t.Errorf("version output missing commit: %q", out)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configEnv, "/etc/remorelay/env.yaml")

	tests := []struct {
		name string
		flag string
		want string
	}{
		{"flag wins", "/tmp/flag.yaml", "/tmp/flag.yaml"},
		{"env fallback", "", "/etc/remorelay/env.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &rootOptions{configPath: tt.flag}
			if got := opts.resolveConfigPath(); got != tt.want {
				t.Errorf("resolveConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	opts := &rootOptions{configPath: "/nonexistent/path/config.yaml"}
	if _, err := opts.loadConfig(); err == nil {
		t.Fatal("loadConfig() should fail for a missing file")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	path := writeFile(t, "bad.yaml", "database:\n  path: \"\"\n")
	if _, err := execute(t, "serve", "--config", path); err == nil {
		t.Fatal("serve should fail with an empty database path")
	}
}

func TestImportCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "signals.db")
	cfgPath := writeConfigFile(t, dbPath)
	seed := writeFile(t, "signals.yaml", `
tv-power:
  freq: 40
  data: [3400, 1700, 450, 450]
aircon-off:
  data: [9000, 4500]
`)

	out, err := execute(t, "import", seed, "--config", cfgPath)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if want := "created aircon-off\ncreated tv-power\n"; out != want {
		t.Errorf("first import output = %q, want %q", out, want)
	}

	out, err = execute(t, "import", seed, "--config", cfgPath)
	if err != nil {
		t.Fatalf("second import error = %v", err)
	}
	if want := "updated aircon-off\nupdated tv-power\n"; out != want {
		t.Errorf("second import output = %q, want %q", out, want)
	}

	cfg, err := (&rootOptions{configPath: cfgPath}).loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	db, err := openStore(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer db.Close()

	svc := irsignal.NewService(irsignal.NewSQLiteRepository(db.DB), nil)
	got, err := svc.Get(context.Background(), "aircon-off")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := irsignal.Signal{Frequency: 38, Pulses: []int{9000, 4500}, Format: "us"}
	if !got.Equal(want) {
		t.Errorf("aircon-off = %+v, want %+v", got, want)
	}

	trail, err := audit.NewSQLiteRepository(db.DB).List(context.Background(), audit.Filter{Source: audit.SourceImport})
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	if trail.Total != 4 {
		t.Errorf("import audit entries = %d, want 4", trail.Total)
	}
}

func TestImportCommand_InvalidEntry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "signals.db")
	cfgPath := writeConfigFile(t, dbPath)
	seed := writeFile(t, "signals.yaml", `
good:
  data: [100, 200]
too-fast:
  freq: 99
  data: [100]
`)

	out, err := execute(t, "import", seed, "--config", cfgPath)
	if err == nil {
		t.Fatal("import should fail when an entry is invalid")
	}
	if !strings.Contains(out, "created good") {
		t.Errorf("valid entry not stored: %q", out)
	}
	if !strings.Contains(out, "failed  too-fast") {
		t.Errorf("invalid entry not reported: %q", out)
	}
}

func TestReadSignalFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not a mapping", "- a\n- b\n"},
		{"bad signal", "tv:\n  freq: fast\n"},
		{"broken yaml", "tv: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "signals.yaml", tt.content)
			if _, err := readSignalFile(path); err == nil {
				t.Error("readSignalFile() should fail")
			}
		})
	}

	if _, err := readSignalFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("readSignalFile() should fail for a missing file")
	}
}

func TestRunServe_StartupAndShutdown(t *testing.T) {
	device := newFakeDevice(t)
	cfg := testConfig(t)
	cfg.Device.Address = device.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, started) }()

	var addr string
	select {
	case addr = <-started:
	case err := <-done:
		t.Fatalf("runServe() exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}
	base := "http://" + addr

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(base+"/signals/tv-power", "application/json",
		strings.NewReader(`{"freq":38,"data":[3400,1700]}`))
	if err != nil {
		t.Fatalf("POST /signals/tv-power error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	resp, err = http.Post(base+"/signals/tv-power/send", "application/json", nil)
	if err != nil {
		t.Fatalf("POST send error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("send status = %d, want 204", resp.StatusCode)
	}
	if device.count() != 1 {
		t.Errorf("device received %d signals, want 1", device.count())
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "remorelay_signal_sends_total") {
		t.Error("metrics missing send counter")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("runServe() did not return after cancel")
	}
}

func TestRunServe_MQTTUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.MQTT.Enabled = true
	cfg.MQTT.Broker.Port = 1

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := runServe(ctx, cfg, nil)
	if !errors.Is(err, mqtt.ErrConnectionFailed) {
		t.Errorf("runServe() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_OptionalClientsNil(t *testing.T) {
	cfg := testConfig(t)
	db, err := openStore(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer db.Close()

	if err := healthCheck(context.Background(), db, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}

func TestSendRecord(t *testing.T) {
	at := time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)
	ev := irsignal.SendEvent{
		ID:       uuid.New(),
		Name:     "tv-power",
		Signal:   irsignal.Signal{Frequency: 40, Pulses: []int{1, 2, 3}, Format: "us"},
		Err:      errors.New("device unreachable"),
		Duration: 250 * time.Millisecond,
		At:       at,
	}

	rec := sendRecord(ev)
	if rec.Name != "tv-power" || rec.OK || rec.Error != "device unreachable" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Frequency != 40 || rec.Pulses != 3 || rec.Duration != 250*time.Millisecond || !rec.At.Equal(at) {
		t.Errorf("record = %+v", rec)
	}

	ev.Err = nil
	if rec := sendRecord(ev); !rec.OK || rec.Error != "" {
		t.Errorf("successful record = %+v", rec)
	}
}

// fakeMQTT captures the bridge's subscription and publishes.
type fakeMQTT struct {
	mu        sync.Mutex
	topic     string
	handler   mqtt.MessageHandler
	dropped   []string
	published chan published
}

type published struct {
	topic string
	body  irsignal.SendSummary
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic, f.handler = topic, handler
	return nil
}

func (f *fakeMQTT) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, topic)
	return nil
}

func (f *fakeMQTT) PublishJSON(topic string, v any) error {
	f.published <- published{topic: topic, body: v.(irsignal.SendSummary)}
	return nil
}

func (f *fakeMQTT) QoS() byte { return 1 }

func TestMQTTBridge(t *testing.T) {
	device := newFakeDevice(t)
	cfg := testConfig(t)
	db, err := openStore(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer db.Close()

	svc := irsignal.NewService(irsignal.NewSQLiteRepository(db.DB), remo.New(device.URL))
	if err := svc.Create(context.Background(), "tv-power", irsignal.Signal{Frequency: 38, Pulses: []int{10, 20}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	client := &fakeMQTT{published: make(chan published, 4)}
	bridge := newMQTTBridge(context.Background(), client, svc, logging.Discard())
	if err := bridge.start(); err != nil {
		t.Fatalf("start() error = %v", err)
	}
	if client.topic != "remorelay/command/send/+" {
		t.Errorf("subscribed to %q", client.topic)
	}

	if err := client.handler("remorelay/command/send/tv-power", nil); err != nil {
		t.Fatalf("send command error = %v", err)
	}
	if device.count() != 1 {
		t.Errorf("device received %d signals, want 1", device.count())
	}

	select {
	case p := <-client.published:
		if p.topic != "remorelay/event/sent/tv-power" {
			t.Errorf("published to %q", p.topic)
		}
		if !p.body.OK || p.body.Name != "tv-power" || p.body.ID == "" {
			t.Errorf("published summary = %+v", p.body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("send event was not published")
	}

	err = client.handler("remorelay/command/send/missing", nil)
	if !errors.Is(err, irsignal.ErrSignalNotFound) {
		t.Errorf("missing signal error = %v, want ErrSignalNotFound", err)
	}

	if err := client.handler("remorelay/system/status", nil); err == nil {
		t.Error("unexpected topic should fail")
	}

	bridge.stop()
	bridge.stop()
	if len(client.dropped) != 1 || client.dropped[0] != "remorelay/command/send/+" {
		t.Errorf("unsubscribed = %v, want the send command pattern once", client.dropped)
	}

	// Sends from other surfaces still work but are no longer announced.
	if err := svc.Send(context.Background(), "tv-power"); err != nil {
		t.Fatalf("Send() after stop error = %v", err)
	}
	select {
	case p := <-client.published:
		t.Errorf("published %q after stop", p.topic)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMigrateCommand(t *testing.T) {
	cfgPath := writeConfigFile(t, filepath.Join(t.TempDir(), "signals.db"))

	steps := []struct {
		args    []string
		want    []string
		wantErr bool
	}{
		{
			args: []string{"migrate", "status"},
			want: []string{"pending 20260118_120000  ir_signals", "pending 20260118_120100  audit_logs"},
		},
		{
			args: []string{"migrate", "up"},
			want: []string{"schema at 20260118_120100"},
		},
		{
			args: []string{"migrate", "status"},
			want: []string{"applied 20260118_120000", "applied 20260118_120100"},
		},
		{
			args: []string{"migrate", "down"},
			want: []string{"rolled back 20260118_120100"},
		},
		{
			args: []string{"migrate", "status"},
			want: []string{"applied 20260118_120000", "pending 20260118_120100  audit_logs"},
		},
		{
			args: []string{"migrate", "down", "--steps", "5"},
			want: []string{"rolled back 20260118_120000", "nothing to roll back"},
		},
		{
			args:    []string{"migrate", "down", "--steps", "0"},
			wantErr: true,
		},
	}

	for _, step := range steps {
		args := append(step.args, "--config", cfgPath)
		out, err := execute(t, args...)
		if step.wantErr {
			if err == nil {
				t.Errorf("%v: expected an error", step.args)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%v error = %v", step.args, err)
		}
		for _, want := range step.want {
			if !strings.Contains(out, want) {
				t.Errorf("%v output = %q, want %q", step.args, out, want)
			}
		}
	}
}
