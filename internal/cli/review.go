package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/identity"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func newReviewCmd() *cobra.Command {
	var (
		area       string
		reviewerID string
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Walk through the projects pending review under your area",
		Long: `Starts an interactive review. Each pending project is shown with the questions of
your reviewer area; answers and comments are saved as you go.

On a terminal the review is a full-screen form. When stdin is not a terminal it reads
one command per line: a <question> <value>, c [#task] <text>, n(ext), p(rev), s(kip),
d(one), area <name>, ls, ?, q(uit).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := apiClient(cmd)
			if err != nil {
				return err
			}
			prefs, store, err := loadPreferences(cfg.Home, reviewerID, cfg.ReviewerID)
			if err != nil {
				return err
			}
			if area != "" {
				prefs.Area = models.ReviewerArea(area)
			}
			if prefs.Area == "" {
				prefs.Area = models.AreaManagement
			}
			w := review.NewWalker(c, prefs, review.WalkerOptions{Logger: slog.Default()})
			if err := w.Load(cmd.Context()); err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
				return runReviewTUI(cmd.Context(), w, in, cmd.OutOrStdout(), store.Save)
			}
			return runReview(cmd.Context(), w, in, cmd.OutOrStdout(), store.Save)
		},
	}
	cmd.Flags().StringVar(&area, "area", "", "Reviewer area: management, operations_sales or product_tech")
	cmd.Flags().StringVar(&reviewerID, "reviewer", "", "Reviewer id (default: config reviewer_id, then git identity)")
	cmd.AddCommand(newReviewQuestionsCmd())
	cmd.AddCommand(newReviewStatusCmd())
	cmd.AddCommand(newReviewOverviewCmd())
	return cmd
}

// loadPreferences picks the reviewer id (flag, then config, then detected identity) and
// reads their saved preferences.
func loadPreferences(home, flagID, configID string) (review.Preferences, identity.FileStore, error) {
	fs := identity.FileStore{Home: home}
	id := flagID
	if id == "" {
		id = configID
	}
	if id == "" {
		id = identity.DefaultReviewerID()
	}
	prefs, err := fs.Load(id)
	return prefs, fs, err
}

// runReview is the line-mode review loop for scripted or piped input. It saves
// preferences after every completed review and on exit.
func runReview(ctx context.Context, w *review.Walker, in io.Reader, out io.Writer, save func(review.Preferences) error) error {
	persist := func() {
		if err := save(w.Preferences()); err != nil {
			slog.Warn("save reviewer preferences failed", "err", err)
		}
	}
	defer persist()

	printReviewHeader(out, w)
	showCurrent(out, w)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch verb {
		case "q", "quit", "exit":
			printReviewSummary(out, w)
			return nil
		case "?", "help":
			_, _ = fmt.Fprintln(out, "a <question> <value> · c [#task] <text> · n · p · s · d · area <name> · ls · q")
		case "ls", "questions":
			printQuestions(out, w.Questions(), w.Answers())
		case "n", "next":
			w.Next()
			showCurrent(out, w)
		case "s", "skip":
			w.Skip()
			showCurrent(out, w)
		case "p", "prev", "previous":
			w.Previous()
			showCurrent(out, w)
		case "a", "answer":
			qid, value, ok := strings.Cut(rest, " ")
			if !ok {
				_, _ = fmt.Fprintln(out, warnStyle.Render("usage: a <question> <value>"))
				continue
			}
			if err := w.Answer(ctx, qid, strings.TrimSpace(value)); err != nil {
				_, _ = fmt.Fprintln(out, warnStyle.Render(err.Error()))
				continue
			}
			_, _ = fmt.Fprintf(out, "%s %s = %s (%d%% answered)\n", okStyle.Render("✓"), qid, strings.TrimSpace(value), int(w.Progress()*100))
		case "c", "comment":
			taskID, text, err := parseComment(rest)
			if err != nil {
				_, _ = fmt.Fprintln(out, warnStyle.Render(err.Error()))
				continue
			}
			if err := w.Comment(ctx, taskID, text); err != nil {
				_, _ = fmt.Fprintln(out, warnStyle.Render(err.Error()))
				continue
			}
			_, _ = fmt.Fprintln(out, okStyle.Render("✓ comment saved"))
		case "d", "done", "complete":
			p, _ := w.Current()
			if _, err := w.Complete(ctx); err != nil {
				_, _ = fmt.Fprintln(out, warnStyle.Render(err.Error()))
				continue
			}
			persist()
			_, _ = fmt.Fprintf(out, "%s reviewed %s (streak %d)\n", okStyle.Render("✓"), p.Title, w.Preferences().Streak)
			showCurrent(out, w)
		case "area":
			if err := w.SwitchArea(ctx, models.ReviewerArea(rest)); err != nil {
				_, _ = fmt.Fprintln(out, warnStyle.Render(err.Error()))
				continue
			}
			persist()
			printReviewHeader(out, w)
			showCurrent(out, w)
		default:
			_, _ = fmt.Fprintf(out, "unknown command %q (? for help)\n", verb)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	printReviewSummary(out, w)
	return nil
}

// parseComment splits "#12 text" into a task id and the text.
func parseComment(s string) (*int64, string, error) {
	if !strings.HasPrefix(s, "#") {
		return nil, s, nil
	}
	ref, text, _ := strings.Cut(s[1:], " ")
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return nil, "", fmt.Errorf("invalid task reference %q", "#"+ref)
	}
	return &id, strings.TrimSpace(text), nil
}

func printReviewHeader(out io.Writer, w *review.Walker) {
	st := w.Stats()
	prefs := w.Preferences()
	_, _ = fmt.Fprintf(out, "%s as %s · area %s · %d pending of %d · streak %d\n",
		titleStyle.Render("Review"), prefs.ReviewerID, w.Area(), st.Pending, st.Total, prefs.CurrentStreak(time.Now()))
}

func showCurrent(out io.Writer, w *review.Walker) {
	p, ok := w.Current()
	if !ok {
		_, _ = fmt.Fprintln(out, okStyle.Render("Nothing left to review. p goes back, q quits."))
		return
	}
	_, _ = fmt.Fprintf(out, "\n[%d/%d] %s %s\n", w.Cursor()+1, w.Len(), titleStyle.Render(p.Title), dimStyle.Render("("+p.Slug+")"))
	if p.Description != "" {
		_, _ = fmt.Fprintln(out, p.Description)
	}
	_, _ = fmt.Fprintf(out, "status %s · priority %s · difficulty %s · progress %d%%\n", p.Status, p.Priority, p.Difficulty, p.ProgressPercentage)
	printQuestions(out, w.Questions(), w.Answers())
}

func printQuestions(out io.Writer, qs []review.Question, answers map[string]string) {
	rows := make([][]string, 0, len(qs))
	for _, q := range qs {
		opts := strings.Join(q.Options, " | ")
		if q.Type == review.AnswerBoolean {
			opts = "true | false"
		} else if q.Type == review.AnswerText {
			opts = "free text"
		}
		rows = append(rows, []string{q.ID, q.Prompt, opts, answers[q.ID]})
	}
	printTable(out, []string{"QUESTION", "PROMPT", "OPTIONS", "ANSWER"}, rows)
}

func printReviewSummary(out io.Writer, w *review.Walker) {
	prefs := w.Preferences()
	_, _ = fmt.Fprintf(out, "Streak: %d day(s). Bye.\n", prefs.CurrentStreak(time.Now()))
}

func newReviewQuestionsCmd() *cobra.Command {
	var area string
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the questions of a reviewer area",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := models.ReviewerArea(area)
			if !a.Valid() {
				return models.ReviewerAreas.Check(area)
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			qs, err := c.Questions(cmd.Context(), a)
			if err != nil {
				return err
			}
			printQuestions(cmd.OutOrStdout(), qs, nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&area, "area", string(models.AreaManagement), "Reviewer area")
	return cmd
}

func newReviewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show which areas have reviewed a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			rs, err := c.ProjectReviewStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "management        %s\n", mark(rs.ManagementReviewed))
			_, _ = fmt.Fprintf(out, "operations_sales  %s\n", mark(rs.OperationsSalesReviewed))
			_, _ = fmt.Fprintf(out, "product_tech      %s\n", mark(rs.ProductTechReviewed))
			if rs.AllReviewed {
				_, _ = fmt.Fprintln(out, okStyle.Render("Fully reviewed."))
			}
			return nil
		},
	}
	return cmd
}

func newReviewOverviewCmd() *cobra.Command {
	var (
		area       string
		reviewerID string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show review counts and the pending queue for a reviewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			a := models.ReviewerArea(area)
			if !a.Valid() {
				return models.ReviewerAreas.Check(area)
			}
			ov, err := c.Overview(cmd.Context(), reviewerID, a)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), ov)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "total %d · reviewed %d · pending %d · fully reviewed %d\n",
				ov.Stats.Total, ov.Stats.Reviewed, ov.Stats.Pending, ov.Stats.FullyReviewed)
			if len(ov.PendingReview) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(ov.PendingReview))
			for _, p := range ov.PendingReview {
				rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Title, string(p.Priority), string(p.Status)})
			}
			printTable(out, []string{"ID", "PENDING", "PRIORITY", "STATUS"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&area, "area", string(models.AreaManagement), "Reviewer area")
	cmd.Flags().StringVar(&reviewerID, "reviewer", "", "Reviewer id (empty counts reviews by anyone)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
