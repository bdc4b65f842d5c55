// Package analysis recognizes fetched data files and materializes the
// matching analysis template into the session's analysis directory.
package analysis

import (
	"bytes"
	"path/filepath"
	"strings"
)

// PrefixSize is the most a classifier ever sees of a candidate file.
const PrefixSize = 64 * 1024

// DefaultHint is the always-recognized hint meaning "no analysis template".
const DefaultHint = "Default"

// Classifier recognizes one kind of data file. Matches must be free of side
// effects. TemplateName is empty for kinds that have no template.
type Classifier interface {
	Hint() string
	TemplateName() string
	Matches(prefix []byte, filePath string) bool
}

// MarkerClassifier matches when a marker substring appears in one of the
// first MaxLines lines of the prefix.
type MarkerClassifier struct {
	hint     string
	template string
	markers  [][]byte
	maxLines int
}

var _ Classifier = (*MarkerClassifier)(nil)

func NewMarkerClassifier(hint, template string, maxLines int, markers ...string) *MarkerClassifier {
	c := &MarkerClassifier{hint: hint, template: template, maxLines: maxLines}
	for _, m := range markers {
		c.markers = append(c.markers, []byte(m))
	}
	return c
}

func (c *MarkerClassifier) Hint() string         { return c.hint }
func (c *MarkerClassifier) TemplateName() string { return c.template }

func (c *MarkerClassifier) Matches(prefix []byte, _ string) bool {
	if len(prefix) > PrefixSize {
		prefix = prefix[:PrefixSize]
	}
	for i := 0; len(prefix) > 0 && (c.maxLines <= 0 || i < c.maxLines); i++ {
		line := prefix
		if idx := bytes.IndexByte(prefix, '\n'); idx >= 0 {
			line, prefix = prefix[:idx], prefix[idx+1:]
		} else {
			prefix = nil
		}
		for _, m := range c.markers {
			if bytes.Contains(line, m) {
				return true
			}
		}
	}
	return false
}

// ExtensionClassifier matches on the file extension alone.
type ExtensionClassifier struct {
	hint      string
	template  string
	extension string
}

var _ Classifier = (*ExtensionClassifier)(nil)

func NewExtensionClassifier(hint, template, extension string) *ExtensionClassifier {
	return &ExtensionClassifier{hint: hint, template: template, extension: strings.ToLower(extension)}
}

func (c *ExtensionClassifier) Hint() string         { return c.hint }
func (c *ExtensionClassifier) TemplateName() string { return c.template }

func (c *ExtensionClassifier) Matches(_ []byte, filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == c.extension
}

// Built-in classifiers for the instruments currently supported.
func NewXRDClassifier() Classifier {
	return NewExtensionClassifier("XRD-Plot", "", ".raw")
}

func NewMPMSClassifier() Classifier {
	return NewMarkerClassifier("MPMS-CW", "MPMS-CW.ipynb", 100, "MPMS3")
}

func NewPPMSClassifier() Classifier {
	return NewMarkerClassifier("PPMS-CW", "PPMS-CW.ipynb", 100, "PPMS ACMS")
}

// DefaultClassifiers is the registration list, in match order.
func DefaultClassifiers() []Classifier {
	return []Classifier{
		NewXRDClassifier(),
		NewMPMSClassifier(),
		NewPPMSClassifier(),
	}
}
