package deliberation

import "github.com/ahrav/go-conclave/internal/domain"

// ConsensusResult is the final outcome of a deliberation run: the winning
// statement plus a complete transcript of every election at every level.
// The transcript carries the raw structured data (candidates, per-voter
// rankings and attempt logs, both Schulze matrices) so a caller can render
// a human-readable report without re-deriving anything.
type ConsensusResult struct {
	// Statement is the final synthesized consensus statement.
	Statement string `json:"statement"`

	// Levels records every recursion level, in order of execution.
	Levels []LevelTrace `json:"levels"`
}

// LevelTrace is the transcript of one recursion level.
type LevelTrace struct {
	// Level is the recursion depth, starting at zero.
	Level int `json:"level"`

	// InputCount is the number of statements entering this level.
	InputCount int `json:"input_count"`

	// Groups holds one trace per group election at this level.
	Groups []ElectionTrace `json:"groups"`
}

// ElectionTrace is the transcript of one group's election.
type ElectionTrace struct {
	// Group is the group index within the level.
	Group int `json:"group"`

	// Members are the statements assigned to this group.
	Members []string `json:"members"`

	// VoterIDs are the original participant indices that voted.
	VoterIDs []int `json:"voter_ids"`

	// Candidates are the generated candidate statements.
	Candidates []string `json:"candidates"`

	// Result is the structured election outcome; nil when the group failed.
	Result *domain.ElectionResult `json:"result,omitempty"`

	// AttemptLogs maps voter ID to that voter's ranking attempt log.
	AttemptLogs map[int]AttemptLog `json:"attempt_logs,omitempty"`

	// WinnerText is the winning candidate's text; empty when the group
	// failed.
	WinnerText string `json:"winner_text,omitempty"`

	// Error holds the group's failure message; empty on success.
	Error string `json:"error,omitempty"`
}
