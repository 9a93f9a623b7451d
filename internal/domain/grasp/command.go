package grasp

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the user commands.
type Kind int

const (
	CmdHelp Kind = iota
	CmdGrasp
	CmdGetCandidates
	CmdAbort
)

// Command is one parsed user command.
type Command struct {
	Kind Kind
	// Count is the requested candidate count for get_candidates.
	Count int
}

// HelpText lists the available commands.
const HelpText = "help: display available commands\n" +
	"grasp: compute a new grasp and send it to the robot for execution\n" +
	"get_candidates <n>: compute n candidates and save them to file\n" +
	"abort: interrupt grasp computation / do not send computed pose to the robot\n"

// Parse turns a raw command string into a Command. Matching is exact per
// token; trailing garbage and malformed counts are rejected.
func Parse(raw string) (Command, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "help":
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("help takes no arguments")
		}
		return Command{Kind: CmdHelp}, nil
	case "grasp":
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("grasp takes no arguments")
		}
		return Command{Kind: CmdGrasp}, nil
	case "abort":
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("abort takes no arguments")
		}
		return Command{Kind: CmdAbort}, nil
	case "get_candidates":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("get_candidates requires a candidate count")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return Command{}, fmt.Errorf("get_candidates count must be a positive integer, got %q", fields[1])
		}
		return Command{Kind: CmdGetCandidates, Count: n}, nil
	default:
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}
