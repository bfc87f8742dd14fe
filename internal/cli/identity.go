package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/identity"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func newIdentityCmd() *cobra.Command {
	var reviewerID string
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show or change who you review as",
	}
	cmd.PersistentFlags().StringVar(&reviewerID, "reviewer", "", "Reviewer id (default: config reviewer_id, then git identity)")
	cmd.AddCommand(newIdentityShowCmd(&reviewerID))
	cmd.AddCommand(newIdentitySetAreaCmd(&reviewerID))
	return cmd
}

func newIdentityShowCmd(reviewerID *string) *cobra.Command {
	var repoDir string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the detected git identity, reviewer id, area and streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			prefs, _, err := loadPreferences(cfg.Home, *reviewerID, cfg.ReviewerID)
			if err != nil {
				return err
			}
			h := identity.DetectFromGit(repoDir)
			out := cmd.OutOrStdout()
			if h.Name != "" || h.Email != "" {
				_, _ = fmt.Fprintf(out, "git       %s <%s>\n", h.Name, h.Email)
			} else {
				_, _ = fmt.Fprintln(out, dimStyle.Render("git       no identity configured"))
			}
			area := string(prefs.Area)
			if area == "" {
				area = dimStyle.Render("not chosen")
			}
			_, _ = fmt.Fprintf(out, "reviewer  %s\n", prefs.ReviewerID)
			_, _ = fmt.Fprintf(out, "area      %s\n", area)
			_, _ = fmt.Fprintf(out, "streak    %d\n", prefs.CurrentStreak(time.Now()))
			_, _ = fmt.Fprintf(out, "file      %s\n", identity.ReviewerPath(cfg.Home, prefs.ReviewerID))
			return nil
		},
	}
	cmd.Flags().StringVar(&repoDir, "repo", "", "Git repo to read user.name and user.email from (default: global config)")
	return cmd
}

func newIdentitySetAreaCmd(reviewerID *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-area <area>",
		Short: "Remember the reviewer area used by abeto review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			area, err := models.Parse[models.ReviewerArea](models.ReviewerAreas, args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			prefs, fs, err := loadPreferences(cfg.Home, *reviewerID, cfg.ReviewerID)
			if err != nil {
				return err
			}
			prefs.Area = area
			if err := fs.Save(prefs); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s reviews as %s\n", prefs.ReviewerID, area)
			return nil
		},
	}
	return cmd
}
