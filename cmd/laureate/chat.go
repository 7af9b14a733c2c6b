package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"laureate/internal/agent"
	"laureate/internal/domain"
	"laureate/internal/memory"
	"laureate/internal/reply"

	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	var threadID, name string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the tutor agent from the terminal",
		Long: `Runs the tutor agent locally without WhatsApp. Each line is sent as one
user turn and the parsed reply is printed. Type /quit to exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := memory.NewSQLiteStore(cfg.Memory.DBPath, logger)
			if err != nil {
				return fmt.Errorf("memory store: %w", err)
			}
			defer store.Close()

			rt, err := buildAgent(cfg, store, logger)
			if err != nil {
				return err
			}
			sessions := agent.NewSessionManager(agent.SessionConfig{
				RecursionLimit: cfg.Agent.RecursionLimit,
				Logger:         logger,
			})
			sessions.Install(rt)

			repl := &chatREPL{
				sessions: sessions,
				threadID: threadID,
				name:     name,
				in:       cmd.InOrStdin(),
				out:      cmd.OutOrStdout(),
			}
			return repl.run(ctx)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "cli", "conversation thread id")
	cmd.Flags().StringVar(&name, "name", "there", "sender name passed to the agent")
	return cmd
}

// chatREPL reads user turns line by line and prints each reply the way a
// WhatsApp user would see it.
type chatREPL struct {
	sessions *agent.SessionManager
	threadID string
	name     string
	in       io.Reader
	out      io.Writer

	thinkMu   sync.Mutex
	thinkStop chan struct{}
	thinkDone chan struct{}
}

func (c *chatREPL) run(ctx context.Context) error {
	fmt.Fprintln(c.out, "LAUREATE chat. Type your message and press Enter. Type /quit to exit.")
	fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(c.out, "You> ")
			continue
		case "/quit", "/exit", "/q":
			return nil
		}

		in := domain.NormalizedInput{ThreadID: c.threadID, SenderName: c.name, Text: line}
		c.startThinking()
		raw, err := c.sessions.Respond(ctx, in.ThreadID, in.AgentInput())
		c.stopThinking()
		fmt.Fprint(c.out, "\r\033[K")
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		} else {
			fmt.Fprintln(c.out, "--- LAUREATE ---")
			fmt.Fprintln(c.out, renderReply(reply.Parse(raw)))
			fmt.Fprintln(c.out, "----------------")
		}
		fmt.Fprint(c.out, "You> ")
	}
	return scanner.Err()
}

// renderReply formats a reply for a terminal.
func renderReply(r domain.Reply) string {
	var b strings.Builder
	switch v := r.(type) {
	case domain.TextReply:
		b.WriteString(v.Body)
	case domain.ButtonReply:
		b.WriteString(v.Body)
		for i, opt := range v.Options {
			fmt.Fprintf(&b, "\n  [%d] %s", i+1, opt)
		}
	case domain.ListReply:
		fmt.Fprintf(&b, "%s\n%s\n%s:", v.Header, v.Body, v.SectionTitle)
		for i, opt := range v.Options {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, opt)
		}
		fmt.Fprintf(&b, "\n(%s)", v.ButtonLabel)
	}
	return b.String()
}

func (c *chatREPL) startThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinkStop != nil {
		return
	}
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	c.thinkStop, c.thinkDone = stopCh, doneCh
	go func() {
		defer close(doneCh)
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s Thinking...", frames[i%len(frames)])
			}
		}
	}()
}

func (c *chatREPL) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinkStop == nil {
		return
	}
	close(c.thinkStop)
	<-c.thinkDone
	c.thinkStop, c.thinkDone = nil, nil
}
