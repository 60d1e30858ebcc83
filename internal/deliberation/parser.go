// Package deliberation implements the consensus pipeline: candidate
// generation, per-voter ranking prediction, Schulze elections, and the
// recursive orchestrator that folds group winners into a single statement.
package deliberation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ahrav/go-conclave/internal/domain"
)

// AttemptLog is an ordered, human-readable record of what happened during a
// multi-attempt operation. It exists for observability: the pipeline returns
// it to callers instead of printing.
type AttemptLog []string

// Add appends a formatted entry to the log. A nil receiver pointer is not
// supported; a nil *AttemptLog argument elsewhere means "no logging".
func (l *AttemptLog) Add(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

// reasoningPattern matches paired reasoning-delimiter sections that some
// models emit before their answer. These are stripped before any structured
// data is searched for.
var reasoningPattern = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)

// StripReasoning removes model "thinking" sections (text enclosed in paired
// reasoning-delimiter tags) and trims surrounding whitespace.
func StripReasoning(text string) string {
	return strings.TrimSpace(reasoningPattern.ReplaceAllString(text, ""))
}

// rankingPayload is the JSON shape the generator is instructed to emit.
type rankingPayload struct {
	Ranking []json.Number `json:"ranking"`
}

// ParseRanking extracts a validated ranking over numCandidates candidates
// from free-form generator output.
//
// The parse proceeds in stages: strip reasoning sections, locate the first
// balanced-brace JSON object, attempt a strict JSON parse, then a lenient
// normalization pass (single quotes, unquoted keys, trailing commas) if
// strict parsing fails. The extracted list must contain exactly
// numCandidates integers. Both 1-indexed (1..K) and 0-indexed (0..K-1)
// values are accepted; when both interpretations are structurally valid the
// 1-indexed one wins, because that is the contract given to the generator.
// The result is always normalized to 0-indexed.
//
// Every structural failure returns a *domain.ParseError; ParseRanking never
// panics on malformed input. When log is non-nil, each stage appends a
// diagnostic entry.
func ParseRanking(raw string, numCandidates int, log *AttemptLog) (domain.Ranking, error) {
	text := StripReasoning(raw)

	jsonStr := extractJSONObject(text)
	if jsonStr == "" {
		return nil, NewParseFailure(log, "no JSON object found", text)
	}

	var payload rankingPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		if log != nil {
			log.Add("strict JSON parse failed (%v), trying lenient parse", err)
		}
		lenient := lenientNormalize(jsonStr)
		if err := json.Unmarshal([]byte(lenient), &payload); err != nil {
			return nil, NewParseFailure(log, "object is not parseable JSON", jsonStr)
		}
	}

	if payload.Ranking == nil {
		return nil, NewParseFailure(log, `missing "ranking" field`, jsonStr)
	}
	if len(payload.Ranking) != numCandidates {
		return nil, NewParseFailure(log,
			fmt.Sprintf("ranking has %d entries, want %d", len(payload.Ranking), numCandidates), jsonStr)
	}

	values := make([]int, numCandidates)
	for i, n := range payload.Ranking {
		v, err := n.Int64()
		if err != nil {
			return nil, NewParseFailure(log, fmt.Sprintf("entry %q is not an integer", n.String()), jsonStr)
		}
		values[i] = int(v)
	}

	ranking, err := normalizeIndexing(values, numCandidates)
	if err != nil {
		return nil, NewParseFailure(log, err.Error(), jsonStr)
	}

	if log != nil {
		log.Add("parsed valid ranking %v", []int(ranking))
	}
	return ranking, nil
}

// NewParseFailure records the failure in the log (when present) and returns
// the corresponding ParseError.
func NewParseFailure(log *AttemptLog, reason, raw string) error {
	if log != nil {
		log.Add("parse failed: %s", reason)
	}
	return domain.NewParseError(reason, raw)
}

// normalizeIndexing converts the raw integer list to a 0-indexed ranking,
// preferring the 1-indexed interpretation when both are valid.
func normalizeIndexing(values []int, numCandidates int) (domain.Ranking, error) {
	oneIndexed := true
	zeroIndexed := true
	for _, v := range values {
		if v < 1 || v > numCandidates {
			oneIndexed = false
		}
		if v < 0 || v >= numCandidates {
			zeroIndexed = false
		}
	}

	switch {
	case oneIndexed:
		ranking := make(domain.Ranking, len(values))
		for i, v := range values {
			ranking[i] = v - 1
		}
		if err := ranking.Validate(numCandidates); err != nil {
			return nil, err
		}
		return ranking, nil
	case zeroIndexed:
		ranking := domain.Ranking(values)
		if err := ranking.Validate(numCandidates); err != nil {
			return nil, err
		}
		return ranking, nil
	default:
		return nil, fmt.Errorf("ranking values outside both 1..%d and 0..%d", numCandidates, numCandidates-1)
	}
}

// extractJSONObject returns the first balanced-brace JSON object substring,
// tracking string boundaries and escapes so braces inside string literals
// are not counted. Returns "" when no balanced object exists.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}

var (
	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// lenientNormalize rewrites lightly malformed JSON-like output into strict
// JSON: single-quoted strings, unquoted keys, and trailing commas are
// tolerated. This is a structural rewrite only; generator output is never
// evaluated as code.
func lenientNormalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inDouble := false
	escapeNext := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escapeNext {
			b.WriteByte(c)
			escapeNext = false
			continue
		}
		if c == '\\' {
			b.WriteByte(c)
			escapeNext = true
			continue
		}
		if c == '"' {
			inDouble = !inDouble
			b.WriteByte(c)
			continue
		}
		if c == '\'' && !inDouble {
			b.WriteByte('"')
			continue
		}
		b.WriteByte(c)
	}

	out := bareKeyPattern.ReplaceAllString(b.String(), `$1"$2":`)
	out = trailingCommaPattern.ReplaceAllString(out, `$1`)
	return out
}
