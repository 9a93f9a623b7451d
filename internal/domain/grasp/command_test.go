package grasp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidCommands(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
	}{
		{"help", Command{Kind: CmdHelp}},
		{"grasp", Command{Kind: CmdGrasp}},
		{"abort", Command{Kind: CmdAbort}},
		{"get_candidates 5", Command{Kind: CmdGetCandidates, Count: 5}},
		{"  grasp  ", Command{Kind: CmdGrasp}},
		{"get_candidates   12", Command{Kind: CmdGetCandidates, Count: 12}},
	}
	for _, tt := range tests {
		cmd, err := Parse(tt.raw)
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, cmd, "raw=%q", tt.raw)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"gras",
		"graspx",
		"grasp now",
		"help me",
		"abort all",
		"get_candidates",
		"get_candidates five",
		"get_candidates 0",
		"get_candidates -3",
		"get_candidates 5 extra",
		"do_grasp",
	} {
		_, err := Parse(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}
