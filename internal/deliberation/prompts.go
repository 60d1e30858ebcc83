package deliberation

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"
)

// CandidatePromptData is the contract for candidate-generation templates.
// Templates may reference any of these fields; the statement order is
// already shuffled by the caller.
type CandidatePromptData struct {
	// Question is the deliberation question put to the participants.
	Question string
	// Statements are the participant statements for this group, shuffled.
	Statements []string
}

// RankingPromptData is the contract for ranking-prediction templates.
type RankingPromptData struct {
	// Question is the deliberation question.
	Question string
	// VoterStatement is the voter's original opinion text.
	VoterStatement string
	// VoterNumber is the voter's 1-based ordinal for prompt readability.
	VoterNumber int
	// NumCandidates is the number of candidates to rank.
	NumCandidates int
	// Candidates are the candidate statements, in index order.
	Candidates []string
}

// Default prompt templates. Callers may supply their own templates as long
// as they consume the same data contracts.
const (
	defaultCandidateTemplate = `A group of participants was asked the following question:

{{.Question}}

Their individual statements, in no particular order:
{{range $i, $s := .Statements}}{{inc $i}}. {{$s}}
{{end}}
Write a single statement that the whole group could accept as a fair
synthesis of their views. Respond with the statement text only.`

	defaultRankingTemplate = `A group of participants was asked the following question:

{{.Question}}

You are simulating participant {{.VoterNumber}}, whose own statement was:

"{{.VoterStatement}}"

Rank the following {{.NumCandidates}} candidate statements from the one this
participant would most agree with to the one they would least agree with:
{{range $i, $c := .Candidates}}{{inc $i}}. {{$c}}
{{end}}`
)

var promptFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// PromptSet holds the compiled templates driving generator calls. Templates
// are compiled once at construction so malformed templates fail fast.
type PromptSet struct {
	candidate *template.Template
	ranking   *template.Template
}

// NewPromptSet compiles the given candidate and ranking templates.
// Either argument may be empty to use the built-in default.
func NewPromptSet(candidateTmpl, rankingTmpl string) (*PromptSet, error) {
	if candidateTmpl == "" {
		candidateTmpl = defaultCandidateTemplate
	}
	if rankingTmpl == "" {
		rankingTmpl = defaultRankingTemplate
	}

	ct, err := template.New("candidate").Funcs(promptFuncs).Parse(candidateTmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse candidate template: %w", err)
	}
	rt, err := template.New("ranking").Funcs(promptFuncs).Parse(rankingTmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ranking template: %w", err)
	}

	return &PromptSet{candidate: ct, ranking: rt}, nil
}

// DefaultPromptSet returns a PromptSet built from the default templates.
func DefaultPromptSet() *PromptSet {
	ps, err := NewPromptSet("", "")
	if err != nil {
		// The defaults are compile-time constants; failing to parse them is
		// a programming error.
		panic(err)
	}
	return ps
}

// CandidatePrompt renders the candidate-generation prompt.
func (ps *PromptSet) CandidatePrompt(data CandidatePromptData) (string, error) {
	var buf bytes.Buffer
	if err := ps.candidate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute candidate template: %w", err)
	}
	return buf.String(), nil
}

// RankingPrompt renders the ranking-prediction prompt.
func (ps *PromptSet) RankingPrompt(data RankingPromptData) (string, error) {
	var buf bytes.Buffer
	if err := ps.ranking.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute ranking template: %w", err)
	}
	return buf.String(), nil
}

// RankingSystemPrompt builds the system prompt for ranking prediction. It
// states the required JSON shape with a freshly randomized example over a
// *different* candidate count than the real one, so the example demonstrates
// format without anchoring the model toward any particular ranking of the
// actual candidates.
func RankingSystemPrompt(numCandidates int) string {
	exampleCount := numCandidates + 1
	if numCandidates >= 6 {
		exampleCount = numCandidates - 1
	}

	perm := rand.Perm(exampleCount)
	example := make([]string, exampleCount)
	for i, v := range perm {
		example[i] = fmt.Sprintf("%d", v+1)
	}

	return fmt.Sprintf(`You respond with a single JSON object and nothing else.
The object has exactly one key, "ranking", whose value lists the candidate
numbers (1 through the number of candidates) from most preferred to least
preferred, each exactly once. For example, with %d candidates a valid
response would be: {"ranking": [%s]}`,
		exampleCount, strings.Join(example, ", "))
}
