package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"laureate/internal/agent"
	"laureate/internal/config"
	"laureate/internal/domain"
	"laureate/internal/memory"
)

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	os.Exit(m.Run())
}

func TestPrintParsed_ButtonsMessage(t *testing.T) {
	var out bytes.Buffer
	err := printParsed(context.Background(), &out, "Pick one __BUTTONS__ A, B, C, D", "234801", false)
	if err != nil {
		t.Fatal(err)
	}

	var msg struct {
		To          string `json:"to"`
		Type        string `json:"type"`
		Interactive struct {
			Type   string `json:"type"`
			Body   struct{ Text string }
			Action struct {
				Buttons []struct {
					Reply struct{ ID, Title string }
				}
			}
		}
	}
	if err := json.Unmarshal(out.Bytes(), &msg); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if msg.To != "234801" || msg.Type != "interactive" || msg.Interactive.Type != "button" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Interactive.Body.Text != "Pick one" {
		t.Errorf("body = %q", msg.Interactive.Body.Text)
	}
	if n := len(msg.Interactive.Action.Buttons); n != 3 {
		t.Fatalf("expected 3 buttons, got %d", n)
	}
	if b := msg.Interactive.Action.Buttons[2].Reply; b.ID != "btn_2" || b.Title != "C" {
		t.Errorf("unexpected third button %+v", b)
	}
}

func TestPrintParsed_Raw(t *testing.T) {
	var out bytes.Buffer
	if err := printParsed(context.Background(), &out, "__LIST__A|B|C", "x", true); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Kind  string
		Reply struct{ Body string }
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != string(domain.ReplyText) || !strings.HasPrefix(got.Reply.Body, "Sorry") {
		t.Errorf("unexpected raw output %+v", got)
	}
}

func TestRenderReply(t *testing.T) {
	got := renderReply(domain.ListReply{
		ButtonLabel:  "Options",
		Header:       "Physics",
		Body:         "Unit of force?",
		SectionTitle: "Answers",
		Options:      []string{"Newton", "Joule"},
	})
	want := "Physics\nUnit of force?\nAnswers:\n  1. Newton\n  2. Joule\n(Options)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = renderReply(domain.ButtonReply{Body: "Ready?", Options: []string{"Yes"}})
	if got != "Ready?\n  [1] Yes" {
		t.Errorf("got %q", got)
	}
}

type echoAgent struct{}

func (echoAgent) Stream(ctx context.Context, req domain.AgentRequest, out chan<- domain.StreamEvent) error {
	for _, f := range []string{"thread=", req.ThreadID, " input=", req.Input} {
		out <- domain.StreamEvent{Type: domain.StreamToken, Content: f}
	}
	return nil
}

func TestChatREPL(t *testing.T) {
	sessions := agent.NewSessionManager(agent.SessionConfig{Logger: logger})
	sessions.Install(echoAgent{})

	var out bytes.Buffer
	repl := &chatREPL{
		sessions: sessions,
		threadID: "t1",
		name:     "Ada",
		in:       strings.NewReader("hello\n\n/quit\nignored\n"),
		out:      &out,
	}
	if err := repl.run(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.Contains(s, "thread=t1 input=[name:Ada] hello") {
		t.Errorf("reply missing from output:\n%s", s)
	}
	if strings.Contains(s, "ignored") {
		t.Error("input after /quit should not be processed")
	}
}

func TestBackup_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dbPath := filepath.Join(src, "memory.db")
	cfgPath := filepath.Join(src, "config.json")

	store, err := memory.NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatal(err)
	}
	store.EnsureThread(ctx, "t1")
	store.AddMessage(ctx, "t1", domain.MessageRecord{Role: "user", Content: "Physics"})
	store.Close()
	os.WriteFile(cfgPath, []byte(`{"general":{}}`), 0o600)

	archive := filepath.Join(t.TempDir(), "out", "backup.tar.gz")
	members, err := writeBackup(ctx, archive, dbPath, cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].name != archiveDB || members[1].name != archiveConfig {
		t.Fatalf("unexpected members %+v", members)
	}
	if _, err := writeBackup(ctx, archive, dbPath, cfgPath); err == nil {
		t.Error("existing archive should not be overwritten")
	}

	dst := t.TempDir()
	newDB := filepath.Join(dst, "data", "memory.db")
	newCfg := filepath.Join(dst, "config.json")
	os.MkdirAll(filepath.Dir(newDB), 0o755)
	os.WriteFile(newDB+"-wal", []byte("stale"), 0o600)

	restored, err := extractBackup(archive, newDB, newCfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(restored) != 2 {
		t.Fatalf("expected 2 restored files, got %v", restored)
	}
	if _, err := os.Stat(newDB + "-wal"); !os.IsNotExist(err) {
		t.Error("stale WAL should be removed")
	}
	if got, _ := os.ReadFile(newCfg); string(got) != `{"general":{}}` {
		t.Errorf("config = %q", got)
	}

	restoredStore, err := memory.NewSQLiteStore(newDB, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer restoredStore.Close()
	msgs, err := restoredStore.GetMessages(ctx, "t1", 10)
	if err != nil || len(msgs) != 1 || msgs[0].Content != "Physics" {
		t.Errorf("restored messages = %+v, %v", msgs, err)
	}
}

func TestBackup_NothingToArchive(t *testing.T) {
	dir := t.TempDir()
	_, err := writeBackup(context.Background(), filepath.Join(dir, "b.tar.gz"), filepath.Join(dir, "x.db"), filepath.Join(dir, "c.json"))
	if err == nil {
		t.Error("expected error when there is nothing to back up")
	}
}

func TestHumanSize(t *testing.T) {
	cases := map[int64]string{512: "512 B", 2048: "2.0 KB", 3 << 20: "3.0 MB", 5 << 30: "5.0 GB"}
	for in, want := range cases {
		if got := humanSize(in); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderUnit(t *testing.T) {
	unit := renderUnit("/usr/local/bin/laureate", "/etc/laureate.json")
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/laureate serve --config /etc/laureate.json") {
		t.Errorf("unexpected unit:\n%s", unit)
	}
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "laureate.log")
	l, closeLog, err := newLogger(config.GeneralConfig{LogLevel: "warn", LogFile: logFile})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "msg=shown k=v") {
		t.Errorf("unexpected log contents %q", data)
	}

	if _, _, err := newLogger(config.GeneralConfig{LogLevel: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDoctorReport(t *testing.T) {
	var out bytes.Buffer
	r := &doctorReport{w: &out}
	r.pass("Config file", "/tmp/config.json")
	r.warn("Signatures", "unsigned")
	if err := r.summary(); err != nil {
		t.Fatalf("warnings alone should not fail: %v", err)
	}
	if !strings.Contains(out.String(), "[WARN] Signatures") || !strings.Contains(out.String(), "1 passed, 1 warnings, 0 failed") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}

	r.record("Database", os.ErrPermission, "ok")
	if err := r.summary(); err == nil {
		t.Fatal("expected error after a failed check")
	}
}

func TestCheckDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "memory.db")
	v, err := checkDatabase(context.Background(), dbPath, logger)
	if err != nil {
		t.Fatalf("checkDatabase: %v", err)
	}
	if v < 2 {
		t.Fatalf("expected migrated schema, got v%d", v)
	}
}

func TestWriteConfigList(t *testing.T) {
	cfg := config.Defaults()
	cfg.Provider.APIKey = "gsk_1234567890abcdefghijklmnop"

	var out bytes.Buffer
	if err := writeConfigList(&out, config.Sanitize(cfg), false); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if !strings.Contains(text, "provider.apiKey = gsk_****mnop\n") {
		t.Fatalf("secret not masked or missing:\n%s", text)
	}
	if strings.Index(text, "general.logLevel") > strings.Index(text, "worker.workers") {
		t.Fatal("paths should be sorted")
	}
}
