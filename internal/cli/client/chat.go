package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cloo-solutions/tubeqa/internal/cli"
	"github.com/cloo-solutions/tubeqa/internal/config"
	"github.com/cloo-solutions/tubeqa/internal/service"
	"github.com/spf13/cobra"
)

const replHelp = `Commands:
  /video <url>  switch to another video
  /summary      summarize the current video
  /history      show the conversation so far
  /reset        forget the current video
  /help         show this help
  /quit         exit
Anything else is asked as a question about the current video.`

// ChatCmd creates the interactive chat command.
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [video-url]",
		Short: "Chat about a YouTube video",
		Long:  "Starts an interactive session. Load a video by passing its URL or with /video <url>, then ask questions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newBackend(cmd)
			if err != nil {
				return err
			}

			url := ""
			if len(args) == 1 {
				url = args[0]
			}

			repl := NewREPL(backend, cmd.InOrStdin(), cmd.OutOrStdout(), progressFactory(cmd))
			return repl.Run(cmd.Context(), url)
		},
	}

	cmd.Flags().Bool("no-progress", false, "Disable the embedding progress bar")

	return cmd
}

// REPL reads commands and questions line by line
type REPL struct {
	backend  Backend
	in       *bufio.Scanner
	out      io.Writer
	progress func() service.ProgressReporter
}

// NewREPL creates a REPL. progress may be nil.
func NewREPL(backend Backend, in io.Reader, out io.Writer, progress func() service.ProgressReporter) *REPL {
	if progress == nil {
		progress = func() service.ProgressReporter { return service.NoopProgress }
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &REPL{backend: backend, in: scanner, out: out, progress: progress}
}

// Run loads url when given and then serves input until /quit or EOF.
func (r *REPL) Run(ctx context.Context, url string) error {
	if url != "" {
		r.loadVideo(ctx, url)
	} else {
		fmt.Fprintln(r.out, "Load a video with /video <url>. Type /help for commands.")
	}

	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		if !r.handle(ctx, line) {
			return nil
		}
	}
}

// handle executes one input line and reports whether the loop should continue.
func (r *REPL) handle(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		r.ask(ctx, line)
		return true
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/video":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: /video <url>")
			return true
		}
		r.loadVideo(ctx, arg)
	case "/summary":
		summary, err := r.backend.Summary(ctx)
		if err != nil {
			r.printError(err)
			return true
		}
		fmt.Fprintln(r.out, summary)
	case "/history":
		r.history(ctx)
	case "/reset":
		if err := r.backend.Reset(ctx); err != nil {
			r.printError(err)
			return true
		}
		fmt.Fprintln(r.out, "Session cleared.")
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", command)
	}
	return true
}

func (r *REPL) loadVideo(ctx context.Context, url string) {
	fmt.Fprintln(r.out, "Processing video...")
	info, err := r.backend.Process(ctx, url, r.progress())
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintf(r.out, "Ready: %q (%d segments, %s mode). Ask away!\n", info.Title, info.Chunks, info.Mode)
}

func (r *REPL) ask(ctx context.Context, question string) {
	reply, err := r.backend.Ask(ctx, question)
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintln(r.out, reply.Content)
}

func (r *REPL) history(ctx context.Context) {
	replies, err := r.backend.History(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	if len(replies) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, m := range replies {
		fmt.Fprintf(r.out, "[%s] %s\n", m.Role, m.Content)
	}
}

func (r *REPL) printError(err error) {
	fmt.Fprintf(r.out, "Error: %s\n", userMessage(err))
}

// newBackend talks to --server when set and runs the pipeline in-process otherwise.
func newBackend(cmd *cobra.Command) (Backend, error) {
	if server := ServerURL(cmd); server != "" {
		return NewRemoteBackend(NewAPIClient(server)), nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := cli.NewLogger(os.Stderr, false, cli.LevelFor(cfg.Debug, slog.LevelWarn))
	chat, err := cli.BuildChatService(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewLocalBackend(chat), nil
}

func progressFactory(cmd *cobra.Command) func() service.ProgressReporter {
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	enabled := !noProgress && cli.StderrIsTerminal()
	return func() service.ProgressReporter { return cli.NewProgress(enabled) }
}
