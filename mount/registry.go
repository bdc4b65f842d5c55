// Package mount owns the index files and the mount registry: the tab-separated
// config the external mount engine reads to learn which index files to expose
// and which headers to send when fetching them.
package mount

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-autolaunch/auth"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/internal/fileutil"
)

const (
	indexSuffix = ".index"
	// Registry files hold credentials.
	secretPerm os.FileMode = 0o600
)

// Entry is one mount registry line: an index file and its outgoing headers.
type Entry struct {
	IndexPath string
	Headers   []string
}

// Registry manages the index directory and the mount config file. It keeps
// no state in memory; every call goes to disk.
type Registry struct {
	indexDir   string
	configPath string
}

func NewRegistry(indexDir, configPath string) *Registry {
	return &Registry{indexDir: indexDir, configPath: configPath}
}

func (r *Registry) ConfigPath() string {
	return r.configPath
}

// IndexPath is the path of the index file for id.
func (r *Registry) IndexPath(id int) string {
	return filepath.Join(r.indexDir, strconv.Itoa(id)+indexSuffix)
}

// IndexID parses the id back out of an index file path.
func IndexID(indexPath string) (int, bool) {
	name := filepath.Base(indexPath)
	if !strings.HasSuffix(name, indexSuffix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(name, indexSuffix))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// AllocateIndexID returns the smallest non-negative id with no index file.
// It scans the directory rather than keeping a counter, so ids freed by
// manual deletion are reused.
func (r *Registry) AllocateIndexID() (int, error) {
	ids, err := r.IndexIDs()
	if err != nil {
		return 0, err
	}
	used := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		used[id] = struct{}{}
	}
	for i := 0; ; i++ {
		if _, ok := used[i]; !ok {
			return i, nil
		}
	}
}

// IndexIDs lists the ids of every index file present, creating the index
// directory if it does not exist yet.
func (r *Registry) IndexIDs() ([]int, error) {
	if err := os.MkdirAll(r.indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("[Registry.IndexIDs] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	entries, err := os.ReadDir(r.indexDir)
	if err != nil {
		return nil, fmt.Errorf("[Registry.IndexIDs] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	var ids []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := IndexID(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// WriteIndexFile creates the index file for id with one remote file
// reference per line. It fails if the file already exists: index files are
// immutable once written.
func (r *Registry) WriteIndexFile(id int, refs []string) (string, error) {
	for _, ref := range refs {
		if strings.ContainsAny(ref, "\r\n") {
			return "", fmt.Errorf("[Registry.WriteIndexFile] %w: file reference contains a newline", apperrors.ErrDecode)
		}
	}
	if err := os.MkdirAll(r.indexDir, 0o755); err != nil {
		return "", fmt.Errorf("[Registry.WriteIndexFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}

	path := r.IndexPath(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, secretPerm)
	if err != nil {
		return "", fmt.Errorf("[Registry.WriteIndexFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	if _, err := f.Write(fileutil.JoinLines(refs)); err != nil {
		f.Close()
		return "", fmt.Errorf("[Registry.WriteIndexFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("[Registry.WriteIndexFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("[Registry.WriteIndexFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	return path, nil
}

// ReadIndexFile returns the file references stored in an index file.
func (r *Registry) ReadIndexFile(indexPath string) ([]string, error) {
	if _, err := os.Stat(indexPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("[Registry.ReadIndexFile] %w: %s", apperrors.ErrNotFound, indexPath)
		}
		return nil, fmt.Errorf("[Registry.ReadIndexFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	lines, err := fileutil.ReadLines(indexPath)
	if err != nil {
		return nil, fmt.Errorf("[Registry.ReadIndexFile] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	return lines, nil
}

// Append adds one line for indexPath to the mount config. Existing lines
// are never touched.
func (r *Registry) Append(indexPath string, headers []string) error {
	line, err := formatLine(indexPath, headers)
	if err != nil {
		return fmt.Errorf("[Registry.Append] %w", err)
	}
	if err := fileutil.AppendLine(r.configPath, line, secretPerm); err != nil {
		return fmt.Errorf("[Registry.Append] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	return nil
}

// Rewrite replaces the headers of the line for indexPath. All other lines are
// kept verbatim and in order. The file is replaced atomically.
func (r *Registry) Rewrite(indexPath string, headers []string) error {
	replacement, err := formatLine(indexPath, headers)
	if err != nil {
		return fmt.Errorf("[Registry.Rewrite] %w", err)
	}

	lines, err := fileutil.ReadLines(r.configPath)
	if err != nil {
		return fmt.Errorf("[Registry.Rewrite] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	found := false
	for i, line := range lines {
		if firstField(line) == indexPath {
			lines[i] = replacement
			found = true
		}
	}
	if !found {
		return fmt.Errorf("[Registry.Rewrite] %w: no mount entry for %s", apperrors.ErrNotFound, indexPath)
	}

	if err := fileutil.WriteFileAtomic(r.configPath, fileutil.JoinLines(lines), secretPerm); err != nil {
		return fmt.Errorf("[Registry.Rewrite] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	return nil
}

// Entries returns every mount registry line in file order.
func (r *Registry) Entries() ([]Entry, error) {
	lines, err := fileutil.ReadLines(r.configPath)
	if err != nil {
		return nil, fmt.Errorf("[Registry.Entries] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		entries = append(entries, Entry{IndexPath: fields[0], Headers: fields[1:]})
	}
	return entries, nil
}

// Lookup returns the entry for indexPath.
func (r *Registry) Lookup(indexPath string) (Entry, error) {
	entries, err := r.Entries()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.IndexPath == indexPath {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("[Registry.Lookup] %w: no mount entry for %s", apperrors.ErrNotFound, indexPath)
}

func formatLine(indexPath string, headers []string) (string, error) {
	if indexPath == "" || strings.ContainsAny(indexPath, "\t\r\n") {
		return "", fmt.Errorf("%w: invalid index path %q", apperrors.ErrDecode, indexPath)
	}
	for _, h := range headers {
		if err := auth.ValidateHeader(h); err != nil {
			return "", err
		}
	}
	return strings.Join(append([]string{indexPath}, headers...), "\t"), nil
}

func firstField(line string) string {
	if idx := strings.IndexByte(line, '\t'); idx >= 0 {
		return line[:idx]
	}
	return line
}
