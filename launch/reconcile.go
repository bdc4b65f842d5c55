package launch

import (
	"fmt"
	"os"
	"sort"

	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/internal/fileutil"
)

// Report lists inconsistencies between the index directory and the two
// registries. Launches and refreshes that stop part way leave these behind.
type Report struct {
	// RefreshWithoutMount are refresh entries whose index file has no mount
	// config line.
	RefreshWithoutMount []string
	// MountWithoutIndex are mount config lines whose index file is missing.
	MountWithoutIndex []string
	// OrphanIndexFiles are index files with no mount config line.
	OrphanIndexFiles []string
}

func (r Report) Consistent() bool {
	return len(r.RefreshWithoutMount) == 0 && len(r.MountWithoutIndex) == 0 && len(r.OrphanIndexFiles) == 0
}

// Reconcile inspects the storage root under the directory lock and reports
// what does not line up. It changes nothing.
func (o *Orchestrator) Reconcile() (Report, error) {
	var report Report
	err := fileutil.WithLock(o.deps.Paths.LockFile, func() error {
		mountEntries, err := o.deps.Mounts.Entries()
		if err != nil {
			return err
		}
		mounted := make(map[string]bool, len(mountEntries))
		for _, e := range mountEntries {
			mounted[e.IndexPath] = true
			if _, err := os.Stat(e.IndexPath); err != nil {
				if !os.IsNotExist(err) {
					return apperrors.Wrap(apperrors.ErrIO, err)
				}
				report.MountWithoutIndex = append(report.MountWithoutIndex, e.IndexPath)
			}
		}

		refreshEntries, err := o.deps.Refresh.Entries()
		if err != nil {
			return err
		}
		for _, e := range refreshEntries {
			if !mounted[e.IndexPath] {
				report.RefreshWithoutMount = append(report.RefreshWithoutMount, e.IndexPath)
			}
		}

		ids, err := o.deps.Mounts.IndexIDs()
		if err != nil {
			return err
		}
		sort.Ints(ids)
		for _, id := range ids {
			if p := o.deps.Mounts.IndexPath(id); !mounted[p] {
				report.OrphanIndexFiles = append(report.OrphanIndexFiles, p)
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("[Orchestrator.Reconcile] %w", err)
	}
	return report, nil
}
