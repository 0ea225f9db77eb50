package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type askOutput struct {
	Video    *SessionInfo `json:"video"`
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
}

type summaryOutput struct {
	Video   *SessionInfo `json:"video"`
	Summary string       `json:"summary"`
}

// AskCmd creates the one-shot ask command.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <video-url> <question>",
		Short: "Ask one question about a video",
		Long:  "Processes the video and answers a single question from its transcript.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newBackend(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, backend, args[0], args[1], outputJSON)
		},
	}

	cmd.Flags().Bool("no-progress", false, "Disable the embedding progress bar")

	return cmd
}

// SummaryCmd creates the one-shot summary command.
func SummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <video-url>",
		Short: "Summarize a video",
		Long:  "Processes the video and prints a short bullet-point summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newBackend(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSummary(cmd, backend, args[0], outputJSON)
		},
	}

	cmd.Flags().Bool("no-progress", false, "Disable the embedding progress bar")

	return cmd
}

func runAsk(cmd *cobra.Command, backend Backend, url, question string, outputJSON bool) error {
	ctx := cmd.Context()

	info, err := backend.Process(ctx, url, progressFactory(cmd)())
	if err != nil {
		return fmt.Errorf("%s", userMessage(err))
	}

	reply, err := backend.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("%s", userMessage(err))
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), askOutput{Video: info, Question: question, Answer: reply.Content})
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
	return nil
}

func runSummary(cmd *cobra.Command, backend Backend, url string, outputJSON bool) error {
	ctx := cmd.Context()

	info, err := backend.Process(ctx, url, progressFactory(cmd)())
	if err != nil {
		return fmt.Errorf("%s", userMessage(err))
	}

	summary, err := backend.Summary(ctx)
	if err != nil {
		return fmt.Errorf("%s", userMessage(err))
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), summaryOutput{Video: info, Summary: summary})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", info.Title, summary)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
