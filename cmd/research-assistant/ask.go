// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/workflow"
)

var askCmd = &cobra.Command{
	Use:   "ask [query...]",
	Short: "Start a turn on a thread",
	Long: `Ask sends a message to the assistant. Research questions trigger an
OpenAlex search and the turn suspends until a ranking criterion is supplied
with "resume". Other messages are answered directly.

Without --thread a new thread id is generated and printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a suspended thread with a ranking criterion",
	Long: `Resume supplies the ranking criterion (citations, recency or relevance)
for a thread waiting after a search. The top three papers are analysed for
gaps and the assistant replies. An empty or unknown criterion ranks by
citations.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a thread is waiting for a ranking criterion",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	askCmd.Flags().String("thread", "", "thread id (generated when omitted)")
	askCmd.Flags().Bool("json", false, "output the turn result as JSON")

	resumeCmd.Flags().String("thread", "", "thread id")
	resumeCmd.Flags().String("criterion", "", "ranking criterion: citations, recency, relevance")
	resumeCmd.Flags().Bool("json", false, "output the turn result as JSON")
	_ = resumeCmd.MarkFlagRequired("thread")

	statusCmd.Flags().String("thread", "", "thread id")
	statusCmd.Flags().Bool("json", false, "output the status as JSON")
	_ = statusCmd.MarkFlagRequired("thread")

	rootCmd.AddCommand(askCmd, resumeCmd, statusCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	threadID, _ := cmd.Flags().GetString("thread")
	asJSON, _ := cmd.Flags().GetBool("json")
	if threadID == "" {
		threadID = uuid.NewString()
		fmt.Fprintln(os.Stderr, "Thread:", threadID)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.Start(cmd.Context(), workflow.StartRequest{
		ThreadID: threadID,
		Query:    strings.Join(args, " "),
	})
	if err != nil {
		return err
	}
	return printTurn(cmd.OutOrStdout(), res, asJSON)
}

func runResume(cmd *cobra.Command, args []string) error {
	threadID, _ := cmd.Flags().GetString("thread")
	criterion, _ := cmd.Flags().GetString("criterion")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.Resume(cmd.Context(), workflow.ResumeRequest{
		ThreadID:  threadID,
		Criterion: criterion,
	})
	if err != nil {
		return err
	}
	return printTurn(cmd.OutOrStdout(), res, asJSON)
}

func runStatus(cmd *cobra.Command, args []string) error {
	threadID, _ := cmd.Flags().GetString("thread")
	asJSON, _ := cmd.Flags().GetBool("json")

	a, err := openThreads(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.ctrl.Status(cmd.Context(), threadID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), status)
	}

	out := cmd.OutOrStdout()
	if !status.Interrupted {
		next := string(status.Next)
		if next == "" {
			next = "none"
		}
		fmt.Fprintf(out, "Thread %s is not waiting (last step: %s).\n", status.ThreadID, next)
		return nil
	}
	fmt.Fprintf(out, "Thread %s is waiting for a ranking criterion over %d papers.\n",
		status.ThreadID, len(status.Papers))
	return nil
}
