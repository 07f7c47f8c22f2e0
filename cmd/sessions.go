package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mcqgen/internal/quiz"
	"github.com/abhisek/mcqgen/internal/render"
	"github.com/abhisek/mcqgen/internal/store"
	"github.com/abhisek/mcqgen/internal/ui/theme"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded generation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent generation sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		sessions, err := s.SessionRepo().ListSessions(cmd.Context(), store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		fmt.Fprintf(out, "%-8s  %-19s  %-6s  %-10s  %-6s  %-5s  %-8s  %s\n",
			"ID", "Started", "Mode", "Model", "Level", "Qs", "Outcome", "Prompt")
		fmt.Fprintln(out, strings.Repeat("─", 100))

		for _, rec := range sessions {
			fmt.Fprintf(out, "%-8s  %-19s  %-6s  %-10s  %-6s  %-5s  %s  %s\n",
				shortID(rec.ID),
				rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
				rec.Mode,
				rec.AIModel,
				rec.Difficulty,
				fmt.Sprintf("%d/%d", rec.EmittedCount, rec.RequestedCount),
				theme.Outcome(rec.Outcome).Render(fmt.Sprintf("%-8s", rec.Outcome)),
				truncate(rec.Prompt, 40),
			)
		}
		return nil
	},
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show a session and its questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := findSession(cmd, s, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:         %s\n", rec.ID)
		fmt.Fprintf(out, "Started:    %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Mode:       %s\n", rec.Mode)
		fmt.Fprintf(out, "Model:      %s\n", rec.AIModel)
		fmt.Fprintf(out, "Difficulty: %s\n", rec.Difficulty)
		fmt.Fprintf(out, "Prompt:     %s\n", rec.Prompt)
		fmt.Fprintf(out, "Questions:  %d of %d requested (%d lines rejected)\n",
			rec.EmittedCount, rec.RequestedCount, rec.RejectedLines)
		fmt.Fprintf(out, "Outcome:    %s\n", rec.Outcome)
		fmt.Fprintf(out, "Duration:   %dms\n", rec.DurationMs)
		if rec.ErrorMessage != "" {
			fmt.Fprintf(out, "Error:      %s\n", rec.ErrorMessage)
		}
		fmt.Fprintln(out)

		term := render.NewTerminal(out, render.Options{Plain: plain, ShowAnswers: true})
		for _, sq := range rec.Questions {
			res := quiz.ValidateShape(sq.Body)
			if !res.Valid() {
				fmt.Fprintf(out, "%d. (unreadable: %s)\n", sq.Index+1, res.Reason)
				continue
			}
			if err := term.Question(res.Question, sq.Index); err != nil {
				return err
			}
		}
		return nil
	},
}

// findSession resolves a full session ID or a unique prefix of one.
func findSession(cmd *cobra.Command, s *store.Store, id string) (*store.SessionRecord, error) {
	repo := s.SessionRepo()
	rec, err := repo.GetSession(cmd.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if rec != nil {
		return rec, nil
	}

	all, err := repo.ListSessions(cmd.Context(), store.QueryOpts{})
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	var matches []string
	for _, r := range all {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("session %q not found", id)
	case 1:
		return repo.GetSession(cmd.Context(), matches[0])
	default:
		return nil, fmt.Errorf("multiple sessions match %q: %s", id, strings.Join(matches, ", "))
	}
}

func shortID(id string) string {
	return truncate(id, 8)
}

func init() {
	sessionsListCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show")
	sessionsViewCmd.Flags().Bool("plain", false, "Disable markdown rendering and colors")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsViewCmd)
}
