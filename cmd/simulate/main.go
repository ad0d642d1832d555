// backend/cmd/simulate/main.go
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chat-funnel/internal/flow"
	"chat-funnel/internal/orderset"
	"chat-funnel/pkg/logger"
)

var sampleAnswers = map[string][]string{
	"1": {"Less than $7,500", "$15,000 - $29,999", "42000", "$80,000", "Over $100,000"},
	"2": {"Federal", "State", "Federal & State"},
	"3": {"Texas", "CA", "New York", "fl", "Ohio"},
	"4": {"yes", "no"},
	"5": {"yes", "no", "y"},
	"6": {"Ada Lovelace", "Grace Hopper", "Jean-Luc Picard", "Ada"},
	"7": {"ada@example.com", "grace@example.org", "not-an-email"},
	"8": {"(555) 123-4567", "555-987-6543", "12345"},
}

type options struct {
	baseURL   string
	sessions  int
	abandon   float64
	retries   int
	seed      int64
	logMode   string
	orderSets []string
}

func main() {
	opts := options{}
	root := &cobra.Command{
		Use:   "simulate",
		Short: "Drive synthetic chat sessions through the funnel ingestion API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(opts.logMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, log)
		},
	}
	root.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "analytics API base URL")
	root.Flags().IntVarP(&opts.sessions, "sessions", "n", 25, "number of sessions to simulate")
	root.Flags().Float64Var(&opts.abandon, "abandon", 0.35, "chance a session walks away before each question")
	root.Flags().IntVar(&opts.retries, "retries", 1, "invalid answers tolerated per question before giving up")
	root.Flags().Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed")
	root.Flags().StringVar(&opts.logMode, "log-mode", "dev", "log mode (dev or prod)")
	root.Flags().StringSliceVar(&opts.orderSets, "order-sets", nil, "order set ids to draw from (default: the widget's sets)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *logger.Logger) error {
	if opts.sessions < 1 {
		return fmt.Errorf("--sessions must be at least 1")
	}
	sets, err := pickSets(opts.orderSets)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(opts.seed))
	emitter := flow.NewHTTPEmitter(opts.baseURL, nil)

	var completed, abandoned int
	for i := 0; i < opts.sessions; i++ {
		if ctx.Err() != nil {
			break
		}
		ctl := flow.NewController(uuid.NewString(), emitter, flow.WithLogger(log))
		set := sets[rng.Intn(len(sets))]

		done, err := simulate(ctx, ctl, set, opts, rng)
		if err != nil {
			return fmt.Errorf("session %s: %w", ctl.SessionID(), err)
		}
		if done {
			completed++
		} else {
			abandoned++
		}
		log.Debug("session simulated",
			"session_id", ctl.SessionID(),
			"order_set", set.ID,
			"completion", ctl.Completion(),
		)
	}

	log.Info("simulation finished", "completed", completed, "abandoned", abandoned, "seed", opts.seed)
	return nil
}

// simulate walks one session through set. It reports whether the flow
// reached the end.
func simulate(ctx context.Context, ctl *flow.Controller, set orderset.Definition, opts options, rng *rand.Rand) (bool, error) {
	if err := ctl.Select(ctx, set); err != nil {
		return false, err
	}
	q, err := ctl.Start(ctx)
	if err != nil {
		return false, err
	}

	for {
		if rng.Float64() < opts.abandon/float64(len(set.Questions)) {
			return false, ctl.Abandon(ctx)
		}

		var out flow.Outcome
		for attempt := 0; ; attempt++ {
			answer := pickAnswer(q, rng, attempt >= opts.retries)
			out, err = ctl.Answer(ctx, answer)
			if err != nil {
				return false, err
			}
			if out.Valid {
				break
			}
			if attempt >= opts.retries {
				return false, ctl.Abandon(ctx)
			}
		}
		if out.Done {
			return true, nil
		}
		q = *out.Next
	}
}

// pickAnswer draws a sample reply. When mustBeValid is set it skips samples
// the question would reject.
func pickAnswer(q flow.Question, rng *rand.Rand, mustBeValid bool) string {
	samples := sampleAnswers[q.ID]
	if len(samples) == 0 {
		return "n/a"
	}
	if !mustBeValid {
		return samples[rng.Intn(len(samples))]
	}
	start := rng.Intn(len(samples))
	for i := range samples {
		s := samples[(start+i)%len(samples)]
		if q.Validate(s) {
			return s
		}
	}
	return samples[start]
}

func pickSets(ids []string) ([]orderset.Definition, error) {
	all := flow.WidgetOrderSets()
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[string]orderset.Definition)
	for _, def := range orderset.Defaults() {
		byID[def.ID] = def
	}
	out := make([]orderset.Definition, 0, len(ids))
	for _, id := range ids {
		def, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown order set %q", id)
		}
		out = append(out, def)
	}
	return out, nil
}
