package compare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"dirscan/pkg/walker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func walk(t *testing.T, opts walker.Options, roots ...string) func(func(walker.Entry, error) bool) {
	t.Helper()
	rs := make([]walker.Root, len(roots))
	for i, r := range roots {
		rs[i] = walker.PathRoot(r)
	}
	seq, err := walker.Walk(context.Background(), rs, opts)
	require.NoError(t, err)
	return seq
}

func TestHashIndex_Basics(t *testing.T) {
	idx := NewHashIndex()
	idx.Add(0, "b", sha("x"))
	idx.Add(0, "a", sha("x"))
	idx.Add(0, "c", sha("y"))
	idx.Add(1, "z", sha("x"))

	assert.Equal(t, 4, idx.Len())
	assert.Len(t, idx.Lookup(sha("x")), 3)
	assert.Empty(t, idx.Lookup(sha("nothing")))

	h, ok := idx.HashAt(0, "c")
	assert.True(t, ok)
	assert.Equal(t, sha("y"), h)

	dups := idx.Duplicates(0)
	require.Len(t, dups, 1)
	assert.Equal(t, []Location{{0, "a"}, {0, "b"}}, dups[0].Locations)
	assert.Empty(t, idx.Duplicates(1))
	assert.Len(t, idx.AllDuplicates()[0].Locations, 3)

	// 重新添加同一位置会替换旧的 Hash
	idx.Add(0, "b", sha("y"))
	assert.Equal(t, 4, idx.Len())
	assert.Len(t, idx.Lookup(sha("x")), 2)
	assert.Equal(t, []Location{{0, "b"}, {0, "c"}}, idx.Duplicates(0)[0].Locations)
}

func TestHashIndex_RenameOf(t *testing.T) {
	idx := NewHashIndex()
	idx.Add(0, "old", sha("x"))
	idx.Add(1, "new", sha("x"))
	idx.Add(1, "copy1", sha("y"))
	idx.Add(1, "copy2", sha("y"))

	loc, ok, err := idx.RenameOf(sha("x"), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Location{1, "new"}, loc)

	_, ok, err = idx.RenameOf(sha("z"), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = idx.RenameOf(sha("y"), 1)
	assert.ErrorIs(t, err, ErrAmbiguousRename)
}

func TestHashIndex_ConcurrentAdd(t *testing.T) {
	idx := NewHashIndex()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				idx.Add(w, fmt.Sprintf("f%d", i), sha(fmt.Sprint(i)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, idx.Len())
	assert.Len(t, idx.Lookup(sha("7")), 8)
}

func TestCompareEntry_Renames(t *testing.T) {
	left := writeFiles(t, map[string]string{"same": "s", "old.txt": "moved content", "gone": "unique"})
	right := writeFiles(t, map[string]string{"same": "s", "sub/new.txt": "moved content"})

	yes := true
	opts := walker.Options{TraverseOneSided: &yes}
	idx, err := BuildIndex(walk(t, opts, left, right), IndexRenames)
	require.NoError(t, err)

	// "same" 两侧都存在，不进入索引
	_, ok := idx.HashAt(0, "same")
	assert.False(t, ok)

	cmp := New(Options{IgnoreTime: true}).WithIndex(idx)
	results := make(map[string]Result)
	for e, err := range walk(t, opts, left, right) {
		require.NoError(t, err)
		results[e.Path] = cmp.CompareEntry(e)
	}

	assert.Equal(t, LeftRenamed, results["old.txt"].Class)
	assert.Equal(t, "renamed, in right sub/new.txt", results["old.txt"].Detail)
	assert.Equal(t, []Location{{1, "sub/new.txt"}}, results["old.txt"].Related)

	assert.Equal(t, RightRenamed, results["sub/new.txt"].Class)
	assert.Equal(t, "renamed, in left old.txt", results["sub/new.txt"].Detail)

	assert.Equal(t, LeftOnly, results["gone"].Class)
	assert.Equal(t, Equal, results["same"].Class)
	assert.Equal(t, RightOnly, results["sub"].Class)
}

func TestCompareEntry_AmbiguousRename(t *testing.T) {
	left := writeFiles(t, map[string]string{"orig": "dup"})
	right := writeFiles(t, map[string]string{"copy1": "dup", "copy2": "dup"})

	idx, err := BuildIndex(walk(t, walker.Options{}, left, right), IndexRenames)
	require.NoError(t, err)

	cmp := New(Options{}).WithIndex(idx)
	for e, err := range walk(t, walker.Options{}, left, right) {
		require.NoError(t, err)
		res := cmp.CompareEntry(e)
		switch e.Path {
		case "orig":
			assert.Equal(t, LeftOnly, res.Class)
			assert.ErrorIs(t, res.Err, ErrAmbiguousRename)
		case "copy1", "copy2":
			assert.Equal(t, RightRenamed, res.Class)
		}
	}
}

func TestCompareEntry_Duplicates(t *testing.T) {
	root := writeFiles(t, map[string]string{"a": "twin", "d/b": "twin", "c": "single"})

	idx, err := BuildIndex(walk(t, walker.Options{}, root), IndexDuplicates)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	groups := idx.Duplicates(0)
	require.Len(t, groups, 1)
	assert.Equal(t, sha("twin"), groups[0].Hash)
	assert.Equal(t, []Location{{0, "a"}, {0, "d/b"}}, groups[0].Locations)

	cmp := New(Options{}).WithIndex(idx)
	classes := make(map[string]Class)
	for e, err := range walk(t, walker.Options{}, root) {
		require.NoError(t, err)
		res := cmp.CompareEntry(e)
		classes[e.Path] = res.Class
		if e.Path == "a" {
			assert.Equal(t, []Location{{0, "d/b"}}, res.Related)
		}
	}
	assert.Equal(t, Duplicate, classes["a"])
	assert.Equal(t, Duplicate, classes["d/b"])
	assert.Equal(t, Scanned, classes["c"])
	assert.Equal(t, Scanned, classes["d"])
}

func TestCompareEntry_SequentialDuplicatesAcrossTrees(t *testing.T) {
	r1 := writeFiles(t, map[string]string{"x": "shared"})
	r2 := writeFiles(t, map[string]string{"y": "shared"})

	opts := walker.Options{Sequential: true}
	idx, err := BuildIndex(walk(t, opts, r1, r2), IndexDuplicates)
	require.NoError(t, err)
	assert.Empty(t, idx.Duplicates(0))
	require.Len(t, idx.AllDuplicates(), 1)

	cmp := New(Options{}).WithIndex(idx)
	for e, err := range walk(t, opts, r1, r2) {
		require.NoError(t, err)
		if e.Path == "y" {
			res := cmp.CompareEntry(e)
			assert.Equal(t, Duplicate, res.Class)
			assert.Equal(t, []Location{{0, "x"}}, res.Related)
		}
	}
}
