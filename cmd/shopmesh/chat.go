package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	chatSession string
	chatWidth   int
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant in the terminal",
	Long: `Chat with the assistant. With a message argument a single reply is
printed; without one an interactive session reads lines from stdin until
EOF or "exit".

Examples:
  shopmesh chat "running shoes under 3000"
  shopmesh chat --session my-thread`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Session ID to continue (default: new session)")
	chatCmd.Flags().IntVar(&chatWidth, "width", 60, "Product card width")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Ingest.File != "" {
		if _, err := a.ingestFile(ctx, cfg.Ingest.File, cfg.Ingest.BatchSize, cfg.Ingest.SkipExisting); err != nil {
			return err
		}
	}

	sessionID := chatSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		reply := a.mesh.HandleMessage(ctx, sessionID, strings.Join(args, " "))
		fmt.Fprintln(out, renderReply(reply, chatWidth))
		return nil
	}

	fmt.Fprintf(out, "%s\n", mutedStyle.Render("session "+sessionID+" (type exit to quit)"))
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			continue
		}
		reply := a.mesh.HandleMessage(ctx, sessionID, line)
		fmt.Fprintln(out, renderReply(reply, chatWidth))
	}
	return scanner.Err()
}
