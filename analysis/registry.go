package analysis

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/internal/fileutil"
)

// Materialized templates are read-only for everyone.
const templatePerm os.FileMode = 0o444

// Registry holds classifiers in registration order and the filesystem the
// analysis templates are copied from.
type Registry struct {
	classifiers []Classifier
	templates   fs.FS
}

func NewRegistry(templates fs.FS, classifiers ...Classifier) *Registry {
	r := &Registry{templates: templates}
	for _, c := range classifiers {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Classifier) {
	r.classifiers = append(r.classifiers, c)
}

// Known reports whether hint names a registered classifier or DefaultHint.
func (r *Registry) Known(hint string) bool {
	if hint == DefaultHint {
		return true
	}
	_, ok := r.lookup(hint)
	return ok
}

// Classify returns the hint of the first classifier matching the prefix.
func (r *Registry) Classify(prefix []byte, filePath string) (string, bool) {
	for _, c := range r.classifiers {
		if c.Matches(prefix, filePath) {
			return c.Hint(), true
		}
	}
	return "", false
}

// ClassifyFile reads at most PrefixSize bytes of path and classifies them.
func (r *Registry) ClassifyFile(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("[Registry.ClassifyFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	defer f.Close()

	prefix, err := io.ReadAll(io.LimitReader(f, PrefixSize))
	if err != nil {
		return "", false, fmt.Errorf("[Registry.ClassifyFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	hint, ok := r.Classify(prefix, path)
	return hint, ok, nil
}

// Materialize copies the template for hint into targetDir and returns its
// file name. An existing destination file is left untouched. Hints without a
// template return an empty name.
func (r *Registry) Materialize(hint, targetDir string) (string, error) {
	if hint == DefaultHint {
		return "", nil
	}
	c, ok := r.lookup(hint)
	if !ok {
		return "", fmt.Errorf("[Registry.Materialize] %w: unknown analysis hint %q", apperrors.ErrConfiguration, hint)
	}
	name := c.TemplateName()
	if name == "" {
		return "", nil
	}

	dest := filepath.Join(targetDir, name)
	if _, err := os.Lstat(dest); err == nil {
		return name, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("[Registry.Materialize] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}

	if r.templates == nil {
		return "", fmt.Errorf("[Registry.Materialize] %w: no template source configured", apperrors.ErrConfiguration)
	}
	data, err := fs.ReadFile(r.templates, name)
	if err != nil {
		return "", fmt.Errorf("[Registry.Materialize] template %s: %w", name, apperrors.Wrap(apperrors.ErrIO, err))
	}
	if err := fileutil.WriteFileAtomic(dest, data, templatePerm); err != nil {
		return "", fmt.Errorf("[Registry.Materialize] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	return name, nil
}

func (r *Registry) lookup(hint string) (Classifier, bool) {
	for _, c := range r.classifiers {
		if c.Hint() == hint {
			return c, true
		}
	}
	return nil, false
}
