// Package version keeps timestamped backups of generated artifacts and
// records each update in git.
package version

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultKeep is the number of backups retained per file.
const DefaultKeep = 10

const stampLayout = "20060102_150405"

// Backuper copies files into Dir as <stem>_<YYYYMMDD_HHMMSS><ext> and prunes
// all but the newest Keep copies of each file.
type Backuper struct {
	Dir  string
	Keep int
	Now  func() time.Time
}

// NewBackuper creates a Backuper writing into dir.
func NewBackuper(dir string, keep int) *Backuper {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Backuper{Dir: dir, Keep: keep, Now: time.Now}
}

// Backup copies src and prunes older copies. A missing src is skipped and
// reported with an empty path.
func (b *Backuper) Backup(src string) (string, error) {
	return b.BackupWith(src, func(dst string) error { return copyFile(src, dst) })
}

// BackupWith is Backup with write producing the copy at dst. Use it for
// files that a plain copy would capture inconsistently, such as a live
// database.
func (b *Backuper) BackupWith(src string, write func(dst string) error) (string, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return "", nil
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(filepath.Base(src), ext)
	dst := filepath.Join(b.Dir, fmt.Sprintf("%s_%s%s", stem, b.Now().Format(stampLayout), ext))
	if err := write(dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", src, err)
	}
	if err := b.prune(stem, ext); err != nil {
		return dst, err
	}
	return dst, nil
}

// List returns the backups of the file with the given stem and extension,
// newest first.
func (b *Backuper) List(stem, ext string) ([]string, error) {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(stem) + `_\d{8}_\d{6}` + regexp.QuoteMeta(ext) + "$")
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && pattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	// The timestamp layout sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(b.Dir, n)
	}
	return paths, nil
}

func (b *Backuper) prune(stem, ext string) error {
	paths, err := b.List(stem, ext)
	if err != nil {
		return err
	}
	if len(paths) <= b.Keep {
		return nil
	}
	for _, p := range paths[b.Keep:] {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("prune backup: %w", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
