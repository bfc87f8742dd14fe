package review

import (
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

const dayLayout = "2006-01-02"

// Preferences is the reviewer-local state kept between review runs: who is reviewing,
// under which area, and the daily review streak.
type Preferences struct {
	ReviewerID    string              `yaml:"reviewer_id" json:"reviewer_id"`
	Area          models.ReviewerArea `yaml:"reviewer_area" json:"reviewer_area"`
	Streak        int                 `yaml:"streak" json:"streak"`
	LastReviewDay string              `yaml:"last_review_day,omitempty" json:"last_review_day,omitempty"`
}

// PreferenceStore loads and saves Preferences. Load of an unknown reviewer returns
// zero Preferences with ReviewerID set and no error.
type PreferenceStore interface {
	Load(reviewerID string) (Preferences, error)
	Save(p Preferences) error
}

// RecordReview counts a completed review on now's day. A review on the day after the
// last one extends the streak; a gap restarts it at 1.
func (p *Preferences) RecordReview(now time.Time) {
	today := now.Format(dayLayout)
	if p.LastReviewDay == today {
		return
	}
	if p.LastReviewDay == now.AddDate(0, 0, -1).Format(dayLayout) {
		p.Streak++
	} else {
		p.Streak = 1
	}
	p.LastReviewDay = today
}

// CurrentStreak is the streak as of now: it lapses to 0 once a full day passes with no
// completed review.
func (p Preferences) CurrentStreak(now time.Time) int {
	switch p.LastReviewDay {
	case now.Format(dayLayout), now.AddDate(0, 0, -1).Format(dayLayout):
		return p.Streak
	}
	return 0
}
