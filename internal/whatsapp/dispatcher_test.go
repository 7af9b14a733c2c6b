package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"laureate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []OutboundMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) sent() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutboundMessage(nil), s.msgs...)
}

func TestDispatch_Text(t *testing.T) {
	s := &recordingSender{}
	long := strings.Repeat("x", 5000)
	NewDispatcher(s, testLogger()).Dispatch(context.Background(), "+2348", domain.TextReply{Body: long})

	msgs := s.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Type != "text" || m.To != "+2348" || m.MessagingProduct != "whatsapp" {
		t.Fatalf("unexpected message %#v", m)
	}
	if m.Text.Body != long {
		t.Fatal("text body must not be truncated")
	}
}

func TestDispatch_ButtonsCappedAtThree(t *testing.T) {
	s := &recordingSender{}
	NewDispatcher(s, testLogger()).Dispatch(context.Background(), "1",
		domain.ButtonReply{Body: "Pick", Options: []string{"A", "B", "C", "D"}})

	msgs := s.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(msgs))
	}
	in := msgs[0].Interactive
	if in == nil || in.Type != "button" || in.Body.Text != "Pick" {
		t.Fatalf("unexpected interactive %#v", in)
	}
	if len(in.Action.Buttons) != 3 {
		t.Fatalf("expected 3 buttons, got %d", len(in.Action.Buttons))
	}
	for i, b := range in.Action.Buttons {
		wantID := []string{"btn_0", "btn_1", "btn_2"}[i]
		if b.Type != "reply" || b.Reply.ID != wantID {
			t.Errorf("button %d = %#v", i, b)
		}
	}
}

func TestDispatch_ButtonsWithoutOptionsSendText(t *testing.T) {
	s := &recordingSender{}
	NewDispatcher(s, testLogger()).Dispatch(context.Background(), "1", domain.ButtonReply{Body: "Hello"})
	msgs := s.sent()
	if len(msgs) != 1 || msgs[0].Type != "text" || msgs[0].Text.Body != "Hello" {
		t.Fatalf("got %#v", msgs)
	}
}

func TestDispatch_ButtonsWithoutBodySkipped(t *testing.T) {
	s := &recordingSender{}
	NewDispatcher(s, testLogger()).Dispatch(context.Background(), "1",
		domain.ButtonReply{Options: []string{"A", "B", "C"}})
	if n := len(s.sent()); n != 0 {
		t.Fatalf("expected no send, got %d", n)
	}
}

func TestDispatch_ListTruncation(t *testing.T) {
	s := &recordingSender{}
	opts := []string{strings.Repeat("o", 30), "short", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	NewDispatcher(s, testLogger()).Dispatch(context.Background(), "1", domain.ListReply{
		ButtonLabel:  strings.Repeat("b", 25),
		Header:       strings.Repeat("h", 70),
		Body:         strings.Repeat("y", 2000),
		SectionTitle: strings.Repeat("s", 30),
		Options:      opts,
	})

	msgs := s.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(msgs))
	}
	in := msgs[0].Interactive
	if in.Type != "list" || in.Header == nil || in.Header.Type != "text" {
		t.Fatalf("unexpected interactive %#v", in)
	}
	if len(in.Header.Text) != 60 || len(in.Body.Text) != 1024 || len(in.Action.Button) != 20 {
		t.Errorf("caps not applied: header=%d body=%d button=%d",
			len(in.Header.Text), len(in.Body.Text), len(in.Action.Button))
	}
	sec := in.Action.Sections
	if len(sec) != 1 || len(sec[0].Title) != 24 {
		t.Fatalf("section title should be cut to 24, got %#v", sec)
	}
	if len(sec[0].Rows) != len(opts) {
		t.Fatalf("row count must not be truncated: got %d want %d", len(sec[0].Rows), len(opts))
	}
	if len(sec[0].Rows[0].Title) != 24 || sec[0].Rows[1].Title != "short" {
		t.Errorf("row titles: %q %q", sec[0].Rows[0].Title, sec[0].Rows[1].Title)
	}
	if sec[0].Rows[3].ID != "opt_3" || sec[0].Rows[3].Description != "" {
		t.Errorf("row 3 = %#v", sec[0].Rows[3])
	}
}

func TestTruncate_CountsCharacters(t *testing.T) {
	if got := truncate("ééééé", 3); got != "ééé" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestDispatch_FailureSwallowed(t *testing.T) {
	s := &recordingSender{err: &APIError{Status: 400, Body: "bad"}}
	NewDispatcher(s, testLogger()).Dispatch(context.Background(), "1", domain.TextReply{Body: "hi"})
	if n := len(s.sent()); n != 1 {
		t.Fatalf("expected exactly one attempt, got %d", n)
	}
}

func TestListMessage_JSONShape(t *testing.T) {
	m := ListMessage("42", domain.ListReply{ButtonLabel: "Select", Header: "Q", Body: "Which?", SectionTitle: "Options", Options: []string{"A"}})
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"messaging_product":"whatsapp","to":"42","type":"interactive","interactive":{"type":"list",` +
		`"header":{"type":"text","text":"Q"},"body":{"text":"Which?"},"action":{"button":"Select",` +
		`"sections":[{"title":"Options","rows":[{"id":"opt_0","title":"A","description":""}]}]}}}`
	if string(data) != want {
		t.Fatalf("got  %s\nwant %s", data, want)
	}
}

func TestClient_Send(t *testing.T) {
	var gotAuth, gotPath string
	var got OutboundMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"messages":[{"id":"wamid.out"}]}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL, PhoneNumberID: "99", AccessToken: "tok", Logger: testLogger()})
	if err := c.Send(context.Background(), TextMessage("1", "hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPath != "/99/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if got.Text == nil || got.Text.Body != "hello" {
		t.Errorf("body = %#v", got)
	}
}

func TestClient_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid token"}}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL, PhoneNumberID: "99", Logger: testLogger()})
	err := c.Send(context.Background(), TextMessage("1", "hello"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || !strings.Contains(apiErr.Body, "invalid token") {
		t.Fatalf("unexpected error %#v", apiErr)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientConfig{APIBase: srv.URL, PhoneNumberID: "99", Timeout: 50 * time.Millisecond, Logger: testLogger()})
	err := c.Send(context.Background(), TextMessage("1", "hello"))
	if !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("expected ErrSendTimeout, got %v", err)
	}
}

func TestClient_CancelledIsNotTimeout(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIBase: srv.URL, PhoneNumberID: "99", SendRate: 10, Logger: testLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Send(ctx, TextMessage("1", "hello"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrSendTimeout) {
		t.Fatalf("cancellation reported as timeout: %v", err)
	}
	if hits != 0 {
		t.Fatalf("cancelled send reached the server %d times", hits)
	}
}

func TestClient_SendSlotPastDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	// One send every two seconds; the second cannot get a slot within 50ms.
	c := NewClient(ClientConfig{APIBase: srv.URL, PhoneNumberID: "99", SendRate: 0.5, Timeout: 50 * time.Millisecond, Logger: testLogger()})
	if err := c.Send(context.Background(), TextMessage("1", "first")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.Send(context.Background(), TextMessage("1", "second")); !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("expected ErrSendTimeout, got %v", err)
	}
}
