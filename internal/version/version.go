package version

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Result describes one CreateVersion call.
type Result struct {
	Backups   []string
	Committed bool
	Pushed    bool
}

// Snapshotter writes a consistent copy of an open file to dst.
type Snapshotter interface {
	Snapshot(ctx context.Context, dst string) error
}

// Manager backs up files and commits the working tree.
type Manager struct {
	backups   *Backuper
	git       Committer
	snapshots map[string]Snapshotter
	now       func() time.Time
	log       zerolog.Logger
}

// NewManager creates a Manager. A nil committer disables git.
func NewManager(b *Backuper, git Committer, log zerolog.Logger) *Manager {
	if git == nil {
		git = NoopCommitter{}
	}
	return &Manager{
		backups:   b,
		git:       git,
		snapshots: make(map[string]Snapshotter),
		now:       time.Now,
		log:       log.With().Str("component", "version").Logger(),
	}
}

// Snapshot makes backups of path go through s instead of a file copy.
func (m *Manager) Snapshot(path string, s Snapshotter) {
	m.snapshots[filepath.Clean(path)] = s
}

func (m *Manager) backup(ctx context.Context, f string) (string, error) {
	s, ok := m.snapshots[filepath.Clean(f)]
	if !ok {
		return m.backups.Backup(f)
	}
	return m.backups.BackupWith(f, func(dst string) error { return s.Snapshot(ctx, dst) })
}

// CreateVersion backs up every existing file, then commits with message (a
// timestamped default when empty) and pushes when enabled. Backup failures
// abort; git failures are returned after the backups are kept.
func (m *Manager) CreateVersion(ctx context.Context, files []string, message string) (Result, error) {
	var res Result
	for _, f := range files {
		p, err := m.backup(ctx, f)
		if err != nil {
			return res, err
		}
		if p != "" {
			res.Backups = append(res.Backups, p)
		}
	}
	m.log.Info().Int("backups", len(res.Backups)).Msg("backups created")

	if message == "" {
		message = "数据更新 " + m.now().Format("2006-01-02 15:04:05")
	}
	committed, err := m.git.Commit(ctx, message)
	if err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	res.Committed = committed
	if !committed {
		return res, nil
	}

	pushed, err := m.git.Push(ctx)
	if err != nil {
		return res, fmt.Errorf("push: %w", err)
	}
	res.Pushed = pushed
	m.log.Info().Bool("pushed", pushed).Msg("changes committed")
	return res, nil
}
