package version

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Committer records the working tree state.
type Committer interface {
	// Commit stages all changes and commits them. It reports false when
	// there was nothing to commit or no repository.
	Commit(ctx context.Context, message string) (bool, error)
	// Push publishes committed changes. It reports false when disabled.
	Push(ctx context.Context) (bool, error)
}

// NoopCommitter never touches git.
type NoopCommitter struct{}

func (NoopCommitter) Commit(context.Context, string) (bool, error) { return false, nil }
func (NoopCommitter) Push(context.Context) (bool, error)           { return false, nil }

// GitCommitter shells out to the git binary in RepoDir.
type GitCommitter struct {
	RepoDir    string
	PushRemote bool
	log        zerolog.Logger
}

// NewGitCommitter creates a committer for repoDir.
func NewGitCommitter(repoDir string, push bool, log zerolog.Logger) *GitCommitter {
	return &GitCommitter{RepoDir: repoDir, PushRemote: push, log: log}
}

func (g *GitCommitter) isRepo() bool {
	_, err := os.Stat(filepath.Join(g.RepoDir, ".git"))
	return err == nil
}

func (g *GitCommitter) Commit(ctx context.Context, message string) (bool, error) {
	if !g.isRepo() {
		g.log.Debug().Str("dir", g.RepoDir).Msg("not a git repository, skipping commit")
		return false, nil
	}
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return false, err
	}
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(status) == "" {
		g.log.Info().Msg("nothing to commit")
		return false, nil
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

func (g *GitCommitter) Push(ctx context.Context) (bool, error) {
	if !g.PushRemote || !g.isRepo() {
		return false, nil
	}
	if _, err := g.run(ctx, "push"); err != nil {
		return false, err
	}
	return true, nil
}

func (g *GitCommitter) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
