package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dirscan/pkg/compare"
	"dirscan/pkg/config"
	"dirscan/pkg/report"
	"dirscan/pkg/scanfile"
	"dirscan/pkg/walker"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture 实现 report.Printer，把输出留在内存里
type capture struct {
	records []report.DiffRecord
	groups  []report.GroupRecord
	flushed int
}

func (c *capture) Record(r report.DiffRecord) error { c.records = append(c.records, r); return nil }
func (c *capture) Group(g report.GroupRecord) error { c.groups = append(c.groups, g); return nil }
func (c *capture) Flush() error                     { c.flushed++; return nil }

func (c *capture) byPath() map[string]report.DiffRecord {
	out := make(map[string]report.DiffRecord, len(c.records))
	for _, r := range c.records {
		out[r.Path] = r
	}
	return out
}

func newTestApp() *App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &App{
		WalkOptions:    walker.Options{Logger: logger},
		CompareOptions: compare.Options{IgnoreTimeOnly: true},
		Logger:         logger,
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	mtime := time.Unix(1_700_000_000, 0)
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	return root
}

func TestNewApp(t *testing.T) {
	viper.Reset()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("walk:\n  reverse: true\n"), 0644))
	require.NoError(t, config.Load(cfg))

	a, err := NewApp(nil)
	require.NoError(t, err)
	assert.True(t, a.WalkOptions.Reverse)
	assert.NotNil(t, a.Logger)
	assert.Equal(t, compare.DefaultTimeSlack, a.CompareOptions.TimeSlack)

	viper.Set("walk.on_error", "explode")
	_, err = NewApp(nil)
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	left := writeTree(t, map[string]string{"same": "s", "changed": "aaaa", "only_left": "l", "dir/x": "x"})
	right := writeTree(t, map[string]string{"same": "s", "changed": "bbbb", "only_right": "r", "dir/x": "x"})

	a := newTestApp()
	out := &capture{}
	summary, err := a.Diff(context.Background(), []string{left, right}, out, DiffOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.flushed)

	recs := out.byPath()
	assert.Len(t, recs, 3, "equal entries are filtered")
	assert.Equal(t, "content_changed", recs["changed"].Class)
	assert.Equal(t, "left_only", recs["only_left"].Class)
	assert.Equal(t, "f-", recs["only_left"].Kinds)
	assert.Equal(t, "right_only", recs["only_right"].Class)

	assert.Equal(t, 3, summary.Differences())
	assert.Equal(t, 4, summary.Count(compare.Equal)) // ".", "dir", "dir/x", "same"

	t.Run("All", func(t *testing.T) {
		out := &capture{}
		_, err := a.Diff(context.Background(), []string{left, right}, out, DiffOptions{Filter: Filter{All: true}})
		require.NoError(t, err)
		assert.Len(t, out.records, 7)
	})

	t.Run("Kinds", func(t *testing.T) {
		out := &capture{}
		_, err := a.Diff(context.Background(), []string{left, right}, out, DiffOptions{Filter: Filter{All: true, Kinds: "d"}})
		require.NoError(t, err)
		paths := make([]string, 0, len(out.records))
		for _, r := range out.records {
			paths = append(paths, r.Path)
		}
		assert.Equal(t, []string{".", "dir"}, paths)
	})

	t.Run("TooFewTrees", func(t *testing.T) {
		_, err := a.Diff(context.Background(), []string{left}, &capture{}, DiffOptions{})
		assert.Error(t, err)
	})
}

func TestDiff_AgainstScanFile(t *testing.T) {
	live := writeTree(t, map[string]string{"a": "1", "sub/b": "22", "sub/c": "333"})
	out := filepath.Join(t.TempDir(), "live.ds")

	a := newTestApp()
	require.NoError(t, a.SaveScan(context.Background(), live, "", out))

	t.Run("Unchanged", func(t *testing.T) {
		rep := &capture{}
		summary, err := a.Diff(context.Background(), []string{out, live}, rep, DiffOptions{})
		require.NoError(t, err)
		assert.Empty(t, rep.records)
		assert.Zero(t, summary.Differences())
	})

	t.Run("Modified", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(live, "sub", "b"), []byte("XX"), 0644))
		mtime := time.Unix(1_700_000_000, 0)
		require.NoError(t, os.Chtimes(filepath.Join(live, "sub", "b"), mtime, mtime))

		rep := &capture{}
		_, err := a.Diff(context.Background(), []string{out, live}, rep, DiffOptions{})
		require.NoError(t, err)
		require.Len(t, rep.records, 1)
		assert.Equal(t, "sub/b", rep.records[0].Path)
		assert.Equal(t, "content_changed", rep.records[0].Class)
	})

	t.Run("Prefix", func(t *testing.T) {
		rep := &capture{}
		_, err := a.Diff(context.Background(), []string{out, live}, rep, DiffOptions{
			Filter:   Filter{All: true},
			Prefixes: []string{"sub", "sub"},
		})
		require.NoError(t, err)
		paths := make([]string, 0, len(rep.records))
		for _, r := range rep.records {
			paths = append(paths, r.Path)
		}
		assert.Equal(t, []string{".", "b", "c"}, paths)
	})
}

func TestDiff_Renames(t *testing.T) {
	left := writeTree(t, map[string]string{"old.bin": "payload", "keep": "k"})
	right := writeTree(t, map[string]string{"moved/new.bin": "payload", "keep": "k"})

	a := newTestApp()
	yes := true
	a.WalkOptions.TraverseOneSided = &yes

	out := &capture{}
	_, err := a.Diff(context.Background(), []string{left, right}, out, DiffOptions{Renames: true})
	require.NoError(t, err)

	recs := out.byPath()
	assert.Equal(t, "left_renamed", recs["old.bin"].Class)
	assert.Equal(t, []string{"moved/new.bin"}, recs["old.bin"].Related)
	assert.Equal(t, "right_renamed", recs["moved/new.bin"].Class)
	assert.Equal(t, "right_only", recs["moved"].Class)
}

func TestScan(t *testing.T) {
	root := writeTree(t, map[string]string{"a": "1", "b.log": "2"})

	a := newTestApp()
	a.WalkOptions.Excludes = []string{"*.log"}

	out := &capture{}
	summary, err := a.Scan(context.Background(), []string{root}, out, ScanOptions{})
	require.NoError(t, err)

	recs := out.byPath()
	assert.Len(t, recs, 3)
	assert.Equal(t, "scanned", recs["."].Class)
	assert.Equal(t, "scanned", recs["a"].Class)
	assert.Equal(t, "excluded", recs["b.log"].Class)
	assert.Equal(t, 2, summary.Count(compare.Scanned))
	assert.Zero(t, summary.Differences())

	_, err = a.Scan(context.Background(), []string{filepath.Join(root, "missing")}, out, ScanOptions{})
	assert.Error(t, err)
}

func TestScan_Duplicates(t *testing.T) {
	r1 := writeTree(t, map[string]string{"a": "twin", "b": "unique"})
	r2 := writeTree(t, map[string]string{"c": "twin"})

	a := newTestApp()
	out := &capture{}
	summary, err := a.Scan(context.Background(), []string{r1, r2}, out, ScanOptions{Duplicates: true, Filter: Filter{Kinds: "f"}})
	require.NoError(t, err)

	classes := make([]string, 0, len(out.records))
	for _, r := range out.records {
		classes = append(classes, r.Path+"="+r.Class)
	}
	assert.Equal(t, []string{"a=duplicate", "b=scanned", "c=duplicate"}, classes)
	assert.Equal(t, 2, summary.Count(compare.Duplicate))
	assert.Equal(t, []string{"c"}, out.records[0].Related)
}

func TestDuplicates(t *testing.T) {
	r1 := writeTree(t, map[string]string{"a": "twin", "b": "unique"})
	r2 := writeTree(t, map[string]string{"c/d": "twin"})

	a := newTestApp()
	out := &capture{}
	groups, err := a.Duplicates(context.Background(), []string{r1, r2}, out)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, out.groups, 1)
	assert.Equal(t, []string{r1 + ":a", r2 + ":c/d"}, out.groups[0].Paths)
}

func TestOpenRoot(t *testing.T) {
	live := writeTree(t, map[string]string{"sub/f": "x"})
	out := filepath.Join(t.TempDir(), "tree.ds")

	a := newTestApp()
	require.NoError(t, a.SaveScan(context.Background(), live, "", out))

	r, err := a.OpenRoot(live, "sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(live, "sub"), r.String())

	r, err = a.OpenRoot(out, "sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("tree.ds", "sub"), r.String())

	_, err = a.OpenRoot(out, "nope")
	assert.Error(t, err)
}

func TestDiff_PlainFileArgument(t *testing.T) {
	dir := writeTree(t, map[string]string{"notes.txt": "just some notes\n"})
	notes := filepath.Join(dir, "notes.txt")

	a := newTestApp()
	_, err := a.Diff(context.Background(), []string{notes, dir}, &capture{}, DiffOptions{})
	assert.ErrorIs(t, err, scanfile.ErrNotScanFile)

	_, err = a.OpenRoot(notes, "")
	assert.ErrorIs(t, err, scanfile.ErrNotScanFile)
}
