// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/checkpoint"
	"github.com/pdiddy/research-assistant/internal/workflow"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect and manage persisted threads (show, list, delete)",
	Long: `Thread reads the checkpoint store directly. Use show to dump the full
conversation state of a thread, list to print all thread ids, and delete to
remove a thread. Delete waits for any turn running on the thread.`,
}

var threadShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted state of a thread",
	Args:  cobra.NoArgs,
	RunE:  runThreadShow,
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted thread ids",
	Args:  cobra.NoArgs,
	RunE:  runThreadList,
}

var threadDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a thread",
	Args:  cobra.NoArgs,
	RunE:  runThreadDelete,
}

func init() {
	threadShowCmd.Flags().String("thread", "", "thread id")
	threadShowCmd.Flags().String("format", "yaml", "output format: yaml or json")
	_ = threadShowCmd.MarkFlagRequired("thread")

	threadDeleteCmd.Flags().String("thread", "", "thread id")
	_ = threadDeleteCmd.MarkFlagRequired("thread")

	threadCmd.AddCommand(threadShowCmd, threadListCmd, threadDeleteCmd)
	rootCmd.AddCommand(threadCmd)
}

func runThreadShow(cmd *cobra.Command, args []string) error {
	threadID, _ := cmd.Flags().GetString("thread")
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := store.Load(cmd.Context(), threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return fmt.Errorf("thread %s not found", threadID)
	}
	if err != nil {
		return err
	}
	return writeState(cmd.OutOrStdout(), state, format)
}

func writeState(w io.Writer, state *types.ConversationState, format string) error {
	switch format {
	case "yaml", "yml":
		return writeYAML(w, state)
	case "json":
		return writeJSON(w, state)
	}
	return fmt.Errorf("unknown format %q (want yaml or json)", format)
}

func runThreadList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runThreadDelete(cmd *cobra.Command, args []string) error {
	threadID, _ := cmd.Flags().GetString("thread")

	a, err := openThreads(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ctrl.Reset(cmd.Context(), threadID); err != nil {
		if errors.Is(err, workflow.ErrThreadNotFound) {
			return fmt.Errorf("thread %s not found", threadID)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread %s\n", threadID)
	return nil
}
