package grasp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dumper persists candidate sets for offline inspection. Each call creates a
// fresh directory <base><idx> with the smallest unused non-negative suffix.
type Dumper struct {
	base string
}

// NewDumper creates a dumper rooted at the given base path prefix.
func NewDumper(base string) *Dumper {
	return &Dumper{base: base}
}

// Dump writes one poses file, one scores file and one widths file, all
// index-aligned with the candidate order. It returns the created directory.
func (d *Dumper) Dump(cands []Candidate) (string, error) {
	dir, err := d.nextDir()
	if err != nil {
		return "", err
	}

	var poses, scores, widths strings.Builder
	for _, c := range cands {
		poses.WriteString(formatAffine(c.Pose.Affine()))
		fmt.Fprintf(&scores, "%v\n", c.Score)
		fmt.Fprintf(&widths, "%v\n", c.Width)
	}

	files := map[string]string{
		"grasp_candidates.txt":        poses.String(),
		"grasp_candidates_scores.txt": scores.String(),
		"grasp_candidates_width.txt":  widths.String(),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("dump: writing %s: %w", name, err)
		}
	}
	return dir, nil
}

// nextDir probes <base>0, <base>1, ... and creates the first free one.
func (d *Dumper) nextDir() (string, error) {
	for idx := 0; ; idx++ {
		dir := fmt.Sprintf("%s%d", d.base, idx)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if os.IsExist(err) {
			continue
		}
		return "", fmt.Errorf("dump: creating %s: %w", dir, err)
	}
}

// formatAffine renders a 4x4 pose as one line of bracketed comma-separated
// rows, the layout downstream tooling consumes:
//
//	[r00, r01, r02, tx],[r10, ...],[...],[0, 0, 0, 1]\n
func formatAffine(m [4][4]float64) string {
	var b strings.Builder
	for i, row := range m {
		fmt.Fprintf(&b, "[%v, %v, %v, %v]", row[0], row[1], row[2], row[3])
		if i < len(m)-1 {
			b.WriteString(",")
		} else {
			b.WriteString("\n")
		}
	}
	return b.String()
}
