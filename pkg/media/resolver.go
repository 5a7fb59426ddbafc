// Package media resolves file references found in an export to paths that the
// front end can load directly.
package media

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tgblog/internal/constants"
	"tgblog/internal/errors"
	"tgblog/internal/security"
)

// ErrNotIncluded is returned for references the exporter did not download.
var ErrNotIncluded = stderrors.New("file not included in export")

// Resolver maps an export-relative file reference to a url-safe relative path.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
	Size(ref string) (int64, error)
}

// FileResolver resolves references against an export directory on disk.
// When a reference is not url-safe, a symlink with the safe name is created
// next to the original file.
type FileResolver struct {
	root      string
	converter Converter
}

// NewFileResolver creates a resolver rooted at dir. A nil converter leaves
// .tgs stickers unconverted.
func NewFileResolver(dir string, converter Converter) *FileResolver {
	return &FileResolver{root: dir, converter: converter}
}

// Resolve returns the url-safe path for ref. Resolving an already resolved
// path returns it unchanged.
func (r *FileResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", errors.NewMediaError("resolve", ref, fmt.Errorf("empty reference"))
	}
	if strings.HasPrefix(ref, "(File not included") {
		return "", errors.NewMediaError("resolve", ref, ErrNotIncluded)
	}

	ref = path.Clean(filepath.ToSlash(ref))
	if err := security.ValidateFilePath(ref); err != nil {
		return "", errors.NewMediaError("resolve", ref, err)
	}

	full := r.abs(ref)
	if _, err := os.Stat(full); err != nil {
		return "", errors.NewMediaError("resolve", ref, err)
	}

	if r.converter != nil && strings.EqualFold(path.Ext(ref), ".tgs") {
		out, err := r.converter.Convert(ctx, full)
		if err != nil {
			return "", errors.NewMediaError("convert", ref, err)
		}
		rel, err := filepath.Rel(r.root, out)
		if err != nil {
			return "", errors.NewMediaError("convert", ref, err)
		}
		ref = filepath.ToSlash(rel)
		full = out
	}

	safe := SafePath(ref)
	if safe == ref {
		return ref, nil
	}
	if err := r.link(full, r.abs(safe)); err != nil {
		return "", errors.NewMediaError("link", ref, err)
	}
	return safe, nil
}

// Size returns the size in bytes of the file behind ref.
func (r *FileResolver) Size(ref string) (int64, error) {
	if err := security.ValidateFilePath(ref); err != nil {
		return 0, errors.NewMediaError("stat", ref, err)
	}
	info, err := os.Stat(r.abs(ref))
	if err != nil {
		return 0, errors.NewMediaError("stat", ref, err)
	}
	return info.Size(), nil
}

func (r *FileResolver) abs(ref string) string {
	return filepath.Join(r.root, filepath.FromSlash(ref))
}

// link points alias at target with a relative symlink, replacing a stale link.
func (r *FileResolver) link(target, alias string) error {
	if info, err := os.Lstat(alias); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("%s exists and is not a symlink", alias)
		}
		if err := os.Remove(alias); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(alias), constants.DefaultDirectoryPermissions); err != nil {
		return err
	}
	rel, err := filepath.Rel(filepath.Dir(alias), target)
	if err != nil {
		return err
	}
	return os.Symlink(rel, alias)
}
