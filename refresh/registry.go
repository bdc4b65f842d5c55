package refresh

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jrsteele09/go-autolaunch/auth"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/internal/fileutil"
)

const secretPerm os.FileMode = 0o600

// Entry is one refresh registry line. SessionID is the lookup key used by the
// identity provider callback; IndexPath never changes once recorded.
type Entry struct {
	IndexPath    string
	SessionID    string
	ProviderKind string
	Info         auth.RefreshInfo
}

// Registry is the refresh config: one tab-separated line per index file that
// can be re-authenticated. Every call re-reads the file.
type Registry struct {
	path string
}

func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) Path() string {
	return r.path
}

// Record appends an entry. The session id must be unused and the index file
// must not already have an entry.
func (r *Registry) Record(e Entry) error {
	line, err := formatLine(e)
	if err != nil {
		return fmt.Errorf("[Registry.Record] %w", err)
	}

	lines, err := fileutil.ReadLines(r.path)
	if err != nil {
		return fmt.Errorf("[Registry.Record] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	for _, l := range lines {
		fields := strings.SplitN(l, "\t", 4)
		if fields[0] == e.IndexPath {
			return fmt.Errorf("[Registry.Record] %w: %s already has a refresh entry", apperrors.ErrConfiguration, e.IndexPath)
		}
		if len(fields) > 1 && fields[1] == e.SessionID {
			return fmt.Errorf("[Registry.Record] %w: duplicate session id", apperrors.ErrConfiguration)
		}
	}

	if err := fileutil.AppendLine(r.path, line, secretPerm); err != nil {
		return fmt.Errorf("[Registry.Record] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	return nil
}

// Lookup returns the first entry whose session id matches.
func (r *Registry) Lookup(sessionID string) (Entry, error) {
	entries, err := r.LookupAll(sessionID)
	if err != nil {
		return Entry{}, err
	}
	return entries[0], nil
}

// LookupAll returns every entry whose session id matches, in file order.
// Session ids are unique by construction, but a callback still handles
// every match.
func (r *Registry) LookupAll(sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("[Registry.LookupAll] %w: empty session id", apperrors.ErrNotFound)
	}
	lines, err := fileutil.ReadLines(r.path)
	if err != nil {
		return nil, fmt.Errorf("[Registry.LookupAll] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}

	var matches []Entry
	for _, l := range lines {
		fields := strings.SplitN(l, "\t", 4)
		if len(fields) < 2 || fields[1] != sessionID {
			continue
		}
		e, err := parseLine(l)
		if err != nil {
			return nil, fmt.Errorf("[Registry.LookupAll] %w", err)
		}
		matches = append(matches, e)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("[Registry.LookupAll] %w: unknown session id", apperrors.ErrNotFound)
	}
	return matches, nil
}

// Entries returns every entry in file order.
func (r *Registry) Entries() ([]Entry, error) {
	lines, err := fileutil.ReadLines(r.path)
	if err != nil {
		return nil, fmt.Errorf("[Registry.Entries] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		if l == "" {
			continue
		}
		e, err := parseLine(l)
		if err != nil {
			return nil, fmt.Errorf("[Registry.Entries] %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Replace rewrites the line for indexPath in place with next, or drops it
// when next is nil. Other lines are kept verbatim and in order, and the file
// is replaced atomically.
func (r *Registry) Replace(indexPath string, next *Entry) error {
	var replacement string
	if next != nil {
		if next.IndexPath != indexPath {
			return fmt.Errorf("[Registry.Replace] %w: index path cannot change", apperrors.ErrConfiguration)
		}
		line, err := formatLine(*next)
		if err != nil {
			return fmt.Errorf("[Registry.Replace] %w", err)
		}
		replacement = line
	}

	lines, err := fileutil.ReadLines(r.path)
	if err != nil {
		return fmt.Errorf("[Registry.Replace] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	out := make([]string, 0, len(lines))
	found := false
	for _, l := range lines {
		if strings.SplitN(l, "\t", 2)[0] != indexPath {
			out = append(out, l)
			continue
		}
		found = true
		if next != nil {
			out = append(out, replacement)
		}
	}
	if !found {
		return fmt.Errorf("[Registry.Replace] %w: no refresh entry for %s", apperrors.ErrNotFound, indexPath)
	}

	if err := fileutil.WriteFileAtomic(r.path, fileutil.JoinLines(out), secretPerm); err != nil {
		return fmt.Errorf("[Registry.Replace] %w", apperrors.Wrap(apperrors.ErrIO, err))
	}
	return nil
}

func formatLine(e Entry) (string, error) {
	for _, f := range []string{e.IndexPath, e.SessionID, e.ProviderKind} {
		if f == "" || strings.ContainsAny(f, "\t\r\n") {
			return "", fmt.Errorf("%w: invalid refresh entry field %q", apperrors.ErrDecode, f)
		}
	}
	info, err := json.Marshal(e.Info)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrDecode, err)
	}
	return strings.Join([]string{e.IndexPath, e.SessionID, e.ProviderKind, string(info)}, "\t"), nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.SplitN(line, "\t", 4)
	if len(fields) != 4 {
		return Entry{}, fmt.Errorf("%w: malformed refresh entry", apperrors.ErrDecode)
	}
	e := Entry{IndexPath: fields[0], SessionID: fields[1], ProviderKind: fields[2]}
	if err := json.Unmarshal([]byte(fields[3]), &e.Info); err != nil {
		return Entry{}, fmt.Errorf("%w: refresh entry for %s: %w", apperrors.ErrDecode, e.IndexPath, err)
	}
	return e, nil
}
