package testutils

import (
	"fmt"
	"math/rand/v2"

	"github.com/ahrav/go-conclave/internal/domain"
)

// opinionTopics holds the stances used to synthesize participant opinions.
// Each topic carries several distinct positions so generated pools contain
// genuine disagreement for the pipeline to resolve.
var opinionTopics = []struct {
	Topic   string
	Stances []string
}{
	{
		Topic: "urban transit",
		Stances: []string{
			"The city should prioritize dedicated bus lanes over new parking garages.",
			"Expanding park-and-ride lots would do more for commuters than bus lanes.",
			"Congestion pricing downtown is the only policy that actually reduces traffic.",
			"Bike infrastructure should come before any further road spending.",
		},
	},
	{
		Topic: "remote work",
		Stances: []string{
			"Teams should default to remote work and meet in person quarterly.",
			"Three office days a week keeps collaboration alive without losing flexibility.",
			"Fully in-person work is worth the commute for early-career employees.",
			"Each team should set its own policy rather than following a company mandate.",
		},
	},
	{
		Topic: "school lunches",
		Stances: []string{
			"School lunches should be free for every student regardless of income.",
			"Means-tested lunch programs stretch the budget further than universal ones.",
			"Districts should invest in kitchen staff before changing who pays.",
			"Local sourcing requirements matter more than the funding model.",
		},
	},
	{
		Topic: "energy policy",
		Stances: []string{
			"New nuclear plants are essential to any credible decarbonization plan.",
			"Grid-scale storage plus renewables makes new nuclear unnecessary.",
			"Rooftop solar incentives should be the first dollar of energy spending.",
			"Transmission line buildout matters more than any generation choice.",
		},
	},
}

// SyntheticStatements generates n participant statements with controlled
// disagreement, cycling through topics and stances deterministically for
// the given seed. Benchmarks and integration-style tests use this to build
// realistic input pools without hand-writing opinions.
func SyntheticStatements(n int, seed uint64) []domain.Statement {
	rng := rand.New(rand.NewPCG(seed, seed))

	statements := make([]domain.Statement, n)
	for i := range statements {
		topic := opinionTopics[i%len(opinionTopics)]
		stance := topic.Stances[rng.IntN(len(topic.Stances))]
		statements[i] = domain.Statement{
			ID:      i,
			Content: fmt.Sprintf("On %s: %s (participant %d)", topic.Topic, stance, i+1),
		}
	}
	return statements
}
