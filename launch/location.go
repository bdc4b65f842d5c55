package launch

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-autolaunch/internal/config"
)

// fileEntryType marks index file lines that name a single remote file.
const fileEntryType = "F"

// LocalPath translates an index file line to where the mount engine exposes
// the file: the base name of the remote reference directly under mountPoint.
// Lines that are not file entries report false.
func LocalPath(mountPoint, line string) (string, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 || fields[0] != fileEntryType {
		return "", false
	}
	ref := fields[1]
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	name := path.Base(ref)
	if name == "." || name == "/" || name == ".." {
		return "", false
	}
	return filepath.Join(mountPoint, name), true
}

// FollowUpURL is where the browser goes after a launch: the materialized
// template when there is one, the lab landing page otherwise.
func FollowUpURL(baseURL, template string) string {
	if template == "" {
		return baseURL + "lab/"
	}
	return baseURL + "lab/tree/" + config.AnalysisSubpath + "/" + url.PathEscape(template)
}
