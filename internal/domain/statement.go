// Package domain contains the pure data model and voting logic for the
// consensus pipeline. Nothing in this package performs I/O; every function
// is deterministic given its inputs, which keeps the voting core fully
// unit-testable without a generator backend present.
package domain

// Statement is one free-text statement flowing through the pipeline.
// At recursion level zero a Statement is a participant's original opinion,
// identified by its position in the input list. At higher levels it is a
// generated candidate that won its group's election.
type Statement struct {
	// ID is the statement's index at its recursion level. For level-zero
	// statements this is the original participant index.
	ID int `json:"id"`

	// Content is the statement text. Statements are immutable once created;
	// the pipeline never rewrites participant input.
	Content string `json:"content"`
}

// Voter identifies one original participant eligible to vote in an election.
// The ID is always the participant's index in the original input list,
// regardless of recursion level, so rankings stay attributable end to end.
type Voter struct {
	// ID is the original participant index.
	ID int `json:"id"`

	// Statement is the participant's original opinion text, used to predict
	// how this participant would rank the candidates.
	Statement string `json:"statement"`
}

// VotingStrategy selects which participants vote in each group's election.
type VotingStrategy string

// Supported voting strategies.
const (
	// StrategyOwnGroups restricts each election's electorate to the original
	// participants whose statements the group transitively represents.
	StrategyOwnGroups VotingStrategy = "own_groups_only"

	// StrategyAllVoters lets every original participant vote in every
	// election regardless of group membership.
	StrategyAllVoters VotingStrategy = "all_elections"
)

// Valid reports whether the strategy is one of the supported values.
func (s VotingStrategy) Valid() bool {
	return s == StrategyOwnGroups || s == StrategyAllVoters
}

// GroupMapping records, for each statement index at the current recursion
// level, the set of original participant indices whose preferences that
// statement transitively represents. It is built bottom-up: a level-zero
// statement represents exactly its author, and a group winner represents the
// union of its group members' participants.
type GroupMapping map[int][]int

// IdentityMapping returns the level-zero mapping in which statement i
// represents exactly participant i.
func IdentityMapping(n int) GroupMapping {
	m := make(GroupMapping, n)
	for i := 0; i < n; i++ {
		m[i] = []int{i}
	}
	return m
}

// Union merges the participant sets of the given statement indices,
// preserving first-seen order and dropping duplicates.
func (gm GroupMapping) Union(indices []int) []int {
	seen := make(map[int]struct{})
	var merged []int
	for _, idx := range indices {
		for _, p := range gm[idx] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged
}

// ElectionResult is the complete, structured outcome of one election.
// It carries everything a caller needs to render a full report without
// re-deriving anything: the winner, every voter's predicted ranking, and
// both Schulze matrices.
type ElectionResult struct {
	// Winner is the index of the winning candidate.
	Winner int `json:"winner"`

	// Rankings maps each voter's participant ID to the ranking predicted
	// for them. Voters whose prediction failed are absent.
	Rankings map[int]Ranking `json:"rankings"`

	// Pairwise is the KxK preference matrix: Pairwise[i][j] counts voters
	// ranking candidate i strictly ahead of candidate j.
	Pairwise [][]int `json:"pairwise"`

	// StrongestPaths is the KxK widest-path matrix derived from Pairwise.
	StrongestPaths [][]int `json:"strongest_paths"`
}
