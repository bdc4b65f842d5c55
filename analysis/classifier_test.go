package analysis_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jrsteele09/go-autolaunch/analysis"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/stretchr/testify/require"
)

func newRegistry() *analysis.Registry {
	templates := fstest.MapFS{
		"PPMS-CW.ipynb": {Data: []byte(`{"cells": ["ppms"]}`)},
		"MPMS-CW.ipynb": {Data: []byte(`{"cells": ["mpms"]}`)},
	}
	return analysis.NewRegistry(templates, analysis.DefaultClassifiers()...)
}

func TestClassifyMarkers(t *testing.T) {
	r := newRegistry()

	hint, ok := r.Classify([]byte("[Header]\nTITLE,PPMS ACMS II\ndata\n"), "run1.dat")
	require.True(t, ok)
	require.Equal(t, "PPMS-CW", hint)

	hint, ok = r.Classify([]byte("INFO,MPMS3,Quantum Design"), "run2.dat")
	require.True(t, ok)
	require.Equal(t, "MPMS-CW", hint)

	hint, ok = r.Classify([]byte("anything"), "scan.RAW")
	require.True(t, ok)
	require.Equal(t, "XRD-Plot", hint)

	_, ok = r.Classify([]byte("no marker here\n"), "run3.dat")
	require.False(t, ok)
}

func TestClassifyOnlyFirstHundredLines(t *testing.T) {
	r := newRegistry()

	late := strings.Repeat("filler\n", 100) + "PPMS ACMS\n"
	_, ok := r.Classify([]byte(late), "run.dat")
	require.False(t, ok)

	early := strings.Repeat("filler\n", 99) + "PPMS ACMS\n"
	_, ok = r.Classify([]byte(early), "run.dat")
	require.True(t, ok)
}

func TestClassifyFileReadsBoundedPrefix(t *testing.T) {
	r := newRegistry()
	path := filepath.Join(t.TempDir(), "big.dat")

	// One long line so the line limit does not apply: the marker sits past 64 KiB.
	data := strings.Repeat("x", analysis.PrefixSize) + "PPMS ACMS\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	_, ok, err := r.ClassifyFile(path)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = r.ClassifyFile(filepath.Join(t.TempDir(), "missing.dat"))
	require.ErrorIs(t, err, apperrors.ErrIO)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	r := newRegistry()
	target := filepath.Join(t.TempDir(), "analysis")

	name, err := r.Materialize("PPMS-CW", target)
	require.NoError(t, err)
	require.Equal(t, "PPMS-CW.ipynb", name)

	dest := filepath.Join(target, name)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	// Replace the copy with user content; a second call must leave it alone.
	require.NoError(t, os.Chmod(dest, 0o644))
	require.NoError(t, os.WriteFile(dest, []byte("edited"), 0o644))

	name, err = r.Materialize("PPMS-CW", target)
	require.NoError(t, err)
	require.Equal(t, "PPMS-CW.ipynb", name)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "edited", string(data))
}

func TestMaterializeWithoutTemplate(t *testing.T) {
	r := newRegistry()
	target := t.TempDir()

	name, err := r.Materialize("XRD-Plot", target)
	require.NoError(t, err)
	require.Empty(t, name)

	name, err = r.Materialize(analysis.DefaultHint, target)
	require.NoError(t, err)
	require.Empty(t, name)

	_, err = r.Materialize("Nope", target)
	require.ErrorIs(t, err, apperrors.ErrConfiguration)

	require.True(t, r.Known(analysis.DefaultHint))
	require.True(t, r.Known("MPMS-CW"))
	require.False(t, r.Known("Nope"))
}
