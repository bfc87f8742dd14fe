// Package identity works out who is reviewing and keeps each reviewer's preferences on disk.
package identity

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
)

// Human is a reviewer as known to git.
type Human struct {
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Source string `yaml:"source,omitempty"` // e.g. "git"
}

// ReviewerID is the id stored on review sessions: the email when known, else the name.
func (h Human) ReviewerID() string {
	if h.Email != "" {
		return strings.ToLower(h.Email)
	}
	return h.Name
}

// DetectFromGit runs `git config user.name` and `git config user.email` (in repoDir, or global if repoDir is empty)
// and returns a Human. Missing keys leave the field empty.
func DetectFromGit(repoDir string) Human {
	h := Human{Source: "git"}
	if name, err := gitConfig(repoDir, "user.name"); err == nil {
		h.Name = name
	}
	if email, err := gitConfig(repoDir, "user.email"); err == nil {
		h.Email = email
	}
	return h
}

func gitConfig(repoDir, key string) (string, error) {
	cmd := exec.Command("git", "config", "--get", key)
	if repoDir != "" {
		cmd.Dir = repoDir
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DefaultReviewerID picks the reviewer id when none is configured: git identity first,
// then $USER.
func DefaultReviewerID() string {
	if id := DetectFromGit("").ReviewerID(); id != "" {
		return id
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}

// ReviewersDir returns <home>/reviewers/.
func ReviewersDir(home string) string {
	return filepath.Join(home, "reviewers")
}

// ReviewerPath returns <home>/reviewers/<id>.yaml with the id made filesystem safe.
func ReviewerPath(home, reviewerID string) string {
	safe := strings.ToLower(strings.TrimSpace(reviewerID))
	safe = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_', r == '@':
			return r
		}
		return '_'
	}, safe)
	if safe == "" {
		safe = "default"
	}
	return filepath.Join(ReviewersDir(home), safe+".yaml")
}

// FileStore keeps review.Preferences as one YAML file per reviewer under <home>/reviewers/.
type FileStore struct {
	Home string
}

var _ review.PreferenceStore = FileStore{}

// Load reads the reviewer's preferences; a reviewer with no file gets defaults.
func (f FileStore) Load(reviewerID string) (review.Preferences, error) {
	data, err := os.ReadFile(ReviewerPath(f.Home, reviewerID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return review.Preferences{ReviewerID: reviewerID}, nil
		}
		return review.Preferences{}, err
	}
	var p review.Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		return review.Preferences{}, err
	}
	p.ReviewerID = reviewerID
	return p, nil
}

// Save writes the preferences to the reviewer's file.
func (f FileStore) Save(p review.Preferences) error {
	if strings.TrimSpace(p.ReviewerID) == "" {
		return errors.New("reviewer id required")
	}
	if err := os.MkdirAll(ReviewersDir(f.Home), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(ReviewerPath(f.Home, p.ReviewerID), data, 0o644)
}
