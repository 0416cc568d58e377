// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/workflow"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation on one thread",
	Long: `Chat reads messages from stdin and sends each one as a turn. When a
search suspends the turn, chat asks for the ranking criterion and resumes
the thread in-process. Type /reset to clear the thread and /quit to exit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("thread", "", "thread id (generated when omitted)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	threadID, _ := cmd.Flags().GetString("thread")
	if threadID == "" {
		threadID = uuid.NewString()
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	s := &chatSession{
		ctrl:     a.ctrl,
		threadID: threadID,
		in:       bufio.NewScanner(cmd.InOrStdin()),
		out:      cmd.OutOrStdout(),
	}
	return s.run(cmd.Context())
}

// chatSession is one interactive loop over a thread.
type chatSession struct {
	ctrl     *workflow.Controller
	threadID string
	in       *bufio.Scanner
	out      io.Writer
}

func (s *chatSession) run(ctx context.Context) error {
	fmt.Fprintln(s.out, styleMuted.Render("Thread "+s.threadID+". Type /quit to exit."))

	// A thread left suspended by an earlier invocation continues with the
	// criterion question.
	if status, err := s.ctrl.Status(ctx, s.threadID); err == nil && status.Interrupted {
		fmt.Fprintln(s.out, styleTitle.Render(fmt.Sprintf("This thread is waiting to rank %d papers.", len(status.Papers))))
		if err := s.resume(ctx, types.CriterionOptions()); err != nil {
			return err
		}
	}

	for {
		line, ok := s.prompt("you> ")
		if !ok {
			return s.in.Err()
		}
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := s.ctrl.Reset(ctx, s.threadID); err != nil && !errors.Is(err, workflow.ErrThreadNotFound) {
				s.fail(err)
			}
			fmt.Fprintln(s.out, styleMuted.Render("Thread cleared."))
			continue
		}

		res, err := s.ctrl.Start(ctx, workflow.StartRequest{ThreadID: s.threadID, Query: line})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.fail(err)
			continue
		}
		if res.Interrupted && res.Interrupt != nil {
			printInterrupt(s.out, res.Interrupt)
			if err := s.resume(ctx, res.Interrupt.Options); err != nil {
				return err
			}
			continue
		}
		s.reply(res)
	}
}

// resume asks for the ranking criterion and finishes the suspended turn.
// It retries on failure; the thread stays suspended until a resume succeeds.
func (s *chatSession) resume(ctx context.Context, options []string) error {
	for {
		criterion, ok := s.prompt(fmt.Sprintf("rank by [%s]> ", strings.Join(options, "/")))
		if !ok {
			return s.in.Err()
		}
		res, err := s.ctrl.Resume(ctx, workflow.ResumeRequest{ThreadID: s.threadID, Criterion: criterion})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.fail(err)
			continue
		}
		fmt.Fprintln(s.out, styleTitle.Render("Top papers by "+string(res.Criterion)+":"))
		printPapers(s.out, res.RankedPapers)
		s.reply(res)
		return nil
	}
}

func (s *chatSession) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, stylePrompt.Render(label))
	if !s.in.Scan() {
		fmt.Fprintln(s.out)
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *chatSession) reply(res *types.TurnResult) {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, styleReply.Render(res.Reply))
	fmt.Fprintln(s.out)
}

func (s *chatSession) fail(err error) {
	fmt.Fprintln(s.out, styleError.Render("error: "+err.Error()))
}
