package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"laureate/internal/reply"
	"laureate/internal/whatsapp"

	"github.com/spf13/cobra"
)

func parseCmd() *cobra.Command {
	var to string
	var raw bool

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse agent output from stdin and print the message that would be sent",
		Long: `Reads raw agent output from stdin, runs the reply parser and prints the
WhatsApp message body the dispatcher would send. With --raw the parsed reply
itself is printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			return printParsed(cmd.Context(), cmd.OutOrStdout(), string(data), to, raw)
		},
	}

	cmd.Flags().StringVar(&to, "to", "2340000000000", "recipient number placed in the message")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the parsed reply instead of the outbound message")
	return cmd
}

func printParsed(ctx context.Context, w io.Writer, input, to string, raw bool) error {
	r := reply.Parse(input)
	if raw {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"kind": r.Kind(), "reply": r})
	}

	sender := &printSender{w: w}
	whatsapp.NewDispatcher(sender, logger).Dispatch(ctx, to, r)
	return sender.err
}

// printSender writes outbound messages as indented JSON instead of sending
// them.
type printSender struct {
	w   io.Writer
	err error
}

func (p *printSender) Send(_ context.Context, msg whatsapp.OutboundMessage) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	p.err = enc.Encode(msg)
	return p.err
}
