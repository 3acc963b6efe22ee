package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"together/internal/api"
	"together/internal/config"
	"together/internal/quiz"

	"github.com/spf13/cobra"
)

func newQuizCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "quiz",
		Short: "Play the compatibility quiz in the terminal",
		Long: `Play the compatibility quiz in the terminal.

Answer with the option number. Press enter for the next question,
type "new" to start a new batch and "q" to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateClient(false); err != nil {
				return err
			}
			token, err := resolveToken(cfg, logger)
			if err != nil {
				return err
			}
			client, err := newAPIClient(cfg, token, logger)
			if err != nil {
				return err
			}

			sess := quiz.NewSession(api.NewQuiz(client, logger), quiz.NewConsoleView(cmd.OutOrStdout()), logger, quiz.Options{
				PollInterval:  cfg.QuizPollInterval,
				PollTimeout:   cfg.QuizPollTimeout,
				CompleteDelay: cfg.BatchCompleteDelay,
			})
			return sessionExpired(cfg, playQuiz(cmd.Context(), sess, cmd.InOrStdin(), cmd.OutOrStdout()))
		},
	}
}

// playQuiz feeds stdin lines to the session until EOF, "q" or ctx ends.
func playQuiz(ctx context.Context, sess *quiz.Session, in io.Reader, out io.Writer) error {
	if err := sess.Start(ctx); errors.Is(err, api.ErrUnauthorized) || ctx.Err() != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		var err error
		switch {
		case line == "q" || line == "quit":
			return nil
		case line == "new":
			err = sess.NewBatch(ctx)
		case line == "":
			switch sess.State() {
			case quiz.ResultShown, quiz.QuestionDisplayed:
				err = sess.Next(ctx)
			case quiz.StartPrompt, quiz.BatchComplete:
				err = sess.NewBatch(ctx)
			}
		default:
			q := sess.Question()
			n, convErr := strconv.Atoi(line)
			if q == nil || sess.State() != quiz.QuestionDisplayed {
				fmt.Fprintln(out, `No question is open. Press enter or type "new".`)
				continue
			}
			if convErr != nil || n < 1 || n > len(q.Options) {
				fmt.Fprintf(out, "Enter a number between 1 and %d.\n", len(q.Options))
				continue
			}
			_, err = sess.SubmitAnswer(ctx, q.Options[n-1])
		}

		if errors.Is(err, api.ErrUnauthorized) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
