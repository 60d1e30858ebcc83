// Command conclave runs a recursive consensus deliberation over a pool of
// participant statements and prints the synthesized consensus statement.
//
// Statements are read one per line from a file (or stdin with "-"). The
// provider is selected with a "provider" or "provider/model" spec; API keys
// come from the provider's environment variable (OPENAI_API_KEY,
// ANTHROPIC_API_KEY, GOOGLE_API_KEY).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-conclave/infrastructure/llm"
	"github.com/ahrav/go-conclave/infrastructure/observability"
	"github.com/ahrav/go-conclave/internal/deliberation"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to a YAML configuration file (optional)")
		statements  = flag.String("statements", "-", "File with one participant statement per line, or - for stdin")
		question    = flag.String("question", "", "The question the group is deliberating (required)")
		provider    = flag.String("provider", "openai", "Provider spec: provider or provider/model")
		output      = flag.String("output", "", "Write the full transcript as JSON to this file")
		maxCalls    = flag.Int64("max-calls", 0, "Abort after this many generation requests (0 = unlimited)")
		maxTokens   = flag.Int64("max-tokens", 0, "Abort after this many total tokens (0 = unlimited)")
		rps         = flag.Float64("rps", 5, "Sustained generation requests per second")
		timeout     = flag.Duration("timeout", 2*time.Minute, "Per-request timeout")
		showMetrics = flag.Bool("metrics", false, "Register Prometheus metrics for the run")
		verbose     = flag.Bool("verbose", false, "Log pipeline progress to stderr")
	)
	flag.Parse()

	if *question == "" {
		fmt.Fprintln(os.Stderr, "error: -question is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, *statements, *question, *provider, *output,
		*maxCalls, *maxTokens, *rps, *timeout, *showMetrics, *verbose); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, statementsPath, question, providerSpec, outputPath string,
	maxCalls, maxTokens int64, rps float64, timeout time.Duration,
	showMetrics, verbose bool,
) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	pool, err := readStatements(statementsPath)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		return fmt.Errorf("no statements found in %s", statementsPath)
	}

	budget := llm.NewBudgetTracker(llm.Budget{MaxTokens: maxTokens, MaxCalls: maxCalls})

	var collector *observability.PrometheusCollector
	middleware := []llm.Middleware{
		llm.BudgetMiddlewareWithTracker(budget),
		llm.RetryMiddleware(3, time.Second, 30*time.Second),
		llm.RateLimitMiddleware(rate.Limit(rps), int(rps)+1),
		llm.CircuitBreakerMiddleware(5, 30*time.Second),
		llm.TracingMiddleware("conclave"),
	}
	if showMetrics {
		collector = observability.NewPrometheusCollector()
		middleware = append(middleware, llm.MetricsMiddleware(collector))
	}

	registry, err := llm.NewRegistry(llm.RegistryConfig{
		Providers:         llm.DefaultProviders,
		DefaultProvider:   "openai",
		DefaultTimeout:    timeout,
		DefaultMiddleware: middleware,
	})
	if err != nil {
		return err
	}

	client, err := registry.GetClient(providerSpec)
	if err != nil {
		return err
	}

	opts := []deliberation.Option{}
	if collector != nil {
		opts = append(opts, deliberation.WithMetrics(collector))
	}
	if verbose {
		opts = append(opts, deliberation.WithObserver(&progressLogger{
			logger: log.New(os.Stderr, "", log.Ltime),
		}))
	}

	orchestrator, err := deliberation.NewOrchestrator(client, cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := orchestrator.Run(ctx, question, pool)
	if err != nil {
		return err
	}

	tokens, calls := budget.Usage()
	fmt.Fprintf(os.Stderr, "consensus reached in %s (%d levels, %d calls, %d tokens)\n",
		time.Since(start).Round(time.Millisecond), len(result.Levels), calls, tokens)

	fmt.Println(result.Statement)

	if outputPath != "" {
		if err := writeTranscript(outputPath, result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "transcript written to %s\n", outputPath)
	}

	return nil
}

func loadConfig(path string) (deliberation.Config, error) {
	if path == "" {
		return deliberation.DefaultConfig(), nil
	}
	return deliberation.LoadConfig(path)
}

// readStatements reads one statement per line, skipping blank lines and
// lines starting with #.
func readStatements(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open statements file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var statements []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		statements = append(statements, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read statements: %w", err)
	}
	return statements, nil
}

func writeTranscript(path string, result *deliberation.ConsensusResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// progressLogger logs pipeline progress events to stderr.
type progressLogger struct {
	logger *log.Logger
}

func (p *progressLogger) CandidateGenerated(level, group, index int, text string) {
	p.logger.Printf("level %d group %d: candidate %d: %s", level, group, index+1, truncate(text, 80))
}

func (p *progressLogger) RankingPredicted(level, group, voter int, ranking []int) {
	p.logger.Printf("level %d group %d: participant %d ranked %v", level, group, voter+1, ranking)
}

func (p *progressLogger) GroupWinnerChosen(level, group, winner int, text string) {
	p.logger.Printf("level %d group %d: winner %d: %s", level, group, winner+1, truncate(text, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
