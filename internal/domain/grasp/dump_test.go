package grasp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robobench/graspd/internal/shared/geom"
)

func testDumper(t *testing.T) *Dumper {
	t.Helper()
	return NewDumper(filepath.Join(t.TempDir(), "dump_"))
}

func TestDumpWritesAlignedFiles(t *testing.T) {
	d := testDumper(t)
	cands := []Candidate{
		{ID: "a", Pose: geom.Identity(), Score: 0.9, Width: 0.04},
		{ID: "b", Pose: geom.Identity(), Score: 0.1, Width: 0.08},
	}

	dir, err := d.Dump(cands)
	require.NoError(t, err)

	poses, err := os.ReadFile(filepath.Join(dir, "grasp_candidates.txt"))
	require.NoError(t, err)
	poseLines := strings.Split(strings.TrimRight(string(poses), "\n"), "\n")
	require.Len(t, poseLines, 2)
	// One candidate per line, four bracketed rows each.
	assert.Equal(t, "[1, 0, 0, 0],[0, 1, 0, 0],[0, 0, 1, 0],[0, 0, 0, 1]", poseLines[0])

	scores, err := os.ReadFile(filepath.Join(dir, "grasp_candidates_scores.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0.9\n0.1\n", string(scores))

	widths, err := os.ReadFile(filepath.Join(dir, "grasp_candidates_width.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0.04\n0.08\n", string(widths))
}

func TestDumpUsesFreshDirectories(t *testing.T) {
	d := testDumper(t)

	first, err := d.Dump(nil)
	require.NoError(t, err)
	second, err := d.Dump(nil)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(first, "dump_0"), "got %s", first)
	assert.True(t, strings.HasSuffix(second, "dump_1"), "got %s", second)
}

func TestDumpSkipsOccupiedSuffixes(t *testing.T) {
	base := filepath.Join(t.TempDir(), "dump_")
	require.NoError(t, os.Mkdir(base+"0", 0o755))
	require.NoError(t, os.Mkdir(base+"1", 0o755))

	dir, err := NewDumper(base).Dump(nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, "dump_2"), "got %s", dir)
}
