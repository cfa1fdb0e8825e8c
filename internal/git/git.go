// Package git resolves the git identity used to attribute versions written
// from the command line.
package git

import (
	"os"
	"os/exec"
	"strings"
)

// Identity is the configured git author for a directory.
type Identity struct {
	Name  string
	Email string
}

// UserID returns the value recorded as the version author: the email when
// set, the name otherwise.
func (i Identity) UserID() string {
	if i.Email != "" {
		return i.Email
	}
	return i.Name
}

// IsZero reports whether no identity is configured.
func (i Identity) IsZero() bool {
	return i.Name == "" && i.Email == ""
}

// GetIdentity reads user.name and user.email as git sees them from dir.
// If dir is empty, it uses the current working directory. A missing git
// binary or unset keys yield a zero Identity rather than an error.
func GetIdentity(dir string) (Identity, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return Identity{}, err
		}
	}

	// `git config --get` exits 1 for unset keys
	name, _ := runGitCommand(dir, "config", "--get", "user.name")
	email, _ := runGitCommand(dir, "config", "--get", "user.email")
	return Identity{Name: name, Email: email}, nil
}

// runGitCommand executes a git command and returns the trimmed output
func runGitCommand(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	// Suppress stderr to avoid noise when not in a git repository
	cmd.Stderr = nil

	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(output)), nil
}
