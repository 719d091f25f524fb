package keyfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// MoveStrategy moves one file or directory tree from src to dst.
type MoveStrategy interface {
	Move(src, dst string) error
}

// RenameMove moves with a single os.Rename. It fails across devices and when
// dst is a non-empty directory.
type RenameMove struct{}

// Move implements MoveStrategy.
func (RenameMove) Move(src, dst string) error {
	return os.Rename(src, dst)
}

// CopyMove copies src into dst and removes src afterwards. Directories are
// merged into an existing dst.
type CopyMove struct{}

// Move implements MoveStrategy.
func (CopyMove) Move(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if err := copyTree(src, dst); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}

	if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(src)
}

// FallbackMove tries Primary and, if it fails, Fallback.
type FallbackMove struct {
	Primary  MoveStrategy
	Fallback MoveStrategy
	Logger   *slog.Logger
}

// DefaultMove renames and falls back to copy+delete.
func DefaultMove(logger *slog.Logger) FallbackMove {
	return FallbackMove{Primary: RenameMove{}, Fallback: CopyMove{}, Logger: logger}
}

// Move implements MoveStrategy.
func (f FallbackMove) Move(src, dst string) error {
	err := f.Primary.Move(src, dst)
	if err == nil {
		return nil
	}
	if f.Logger != nil {
		f.Logger.Debug("legacy move fallback", "src", src, "dst", dst, "error", err)
	}
	if ferr := f.Fallback.Move(src, dst); ferr != nil {
		return fmt.Errorf("move %s: %w", src, errors.Join(err, ferr))
	}
	return nil
}

// RelocateLegacy moves every entry of l.LegacyDir into l.Dir with strategy,
// then removes the legacy root once it is empty. A missing legacy directory,
// or one equal to Dir, is a no-op.
func (l Layout) RelocateLegacy(strategy MoveStrategy, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if l.LegacyDir == "" || l.LegacyDir == l.Dir {
		return nil
	}

	entries, err := os.ReadDir(l.LegacyDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy directory: %w", err)
	}

	if err := l.Ensure(); err != nil {
		return err
	}

	for _, entry := range entries {
		src := filepath.Join(l.LegacyDir, entry.Name())
		dst := filepath.Join(l.Dir, entry.Name())
		if err := strategy.Move(src, dst); err != nil {
			return fmt.Errorf("relocate legacy entry: %w", err)
		}
	}

	remaining, err := os.ReadDir(l.LegacyDir)
	if err != nil {
		return fmt.Errorf("read legacy directory: %w", err)
	}
	if len(remaining) == 0 {
		if err := os.Remove(l.LegacyDir); err != nil {
			return fmt.Errorf("remove legacy directory: %w", err)
		}
	}

	if len(entries) > 0 {
		logger.Info("relocated legacy data directory", "from", l.LegacyDir, "to", l.Dir, "entries", len(entries))
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
