// backend/internal/funnel/aggregator.go
package funnel

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"chat-funnel/internal/models"
	"chat-funnel/internal/orderset"
)

const (
	// MaxDropoffRows caps the drop-off ranking.
	MaxDropoffRows = 50
	// UnassignedID groups sessions without an order set in the per-order-set report.
	UnassignedID = "unassigned"
)

// Resolver is the part of the order set registry the aggregator reads.
type Resolver interface {
	ResolveMany(ctx context.Context, ids []string) (map[string]orderset.Definition, error)
}

// Aggregator recomputes every report from raw sessions and events on each call.
// The completion percentage stored on a session is never consulted.
type Aggregator struct {
	store     Store
	orderSets Resolver
	now       func() time.Time
}

func NewAggregator(store Store, orderSets Resolver) *Aggregator {
	return &Aggregator{store: store, orderSets: orderSets, now: time.Now}
}

// WithClock replaces the wall clock used to resolve windows.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

func (a *Aggregator) Since(days int) time.Time {
	return Since(days, a.now())
}

// sessionCompletion is a session joined with its resolved order set.
type sessionCompletion struct {
	SessionProgress
	def        *orderset.Definition
	total      int
	completion float64
}

// orderSetKey keeps sessions without an order set apart from a real set whose
// id happens to be UnassignedID.
type orderSetKey struct {
	id         string
	unassigned bool
}

func (s sessionCompletion) orderSetKey() orderSetKey {
	if s.OrderSetID == nil {
		return orderSetKey{unassigned: true}
	}
	return orderSetKey{id: *s.OrderSetID}
}

func (a *Aggregator) sessions(ctx context.Context, since time.Time) ([]sessionCompletion, error) {
	progress, err := a.store.SessionProgress(ctx, since)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, p := range progress {
		if p.OrderSetID == nil {
			continue
		}
		if _, ok := seen[*p.OrderSetID]; !ok {
			seen[*p.OrderSetID] = struct{}{}
			ids = append(ids, *p.OrderSetID)
		}
	}
	defs, err := a.orderSets.ResolveMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]sessionCompletion, 0, len(progress))
	for _, p := range progress {
		sc := sessionCompletion{SessionProgress: p, total: orderset.DefaultQuestionCount}
		if p.OrderSetID != nil {
			if def, ok := defs[*p.OrderSetID]; ok {
				sc.def = &def
				sc.total = def.QuestionCount()
			}
		}
		sc.completion = Completion(p.AnsweredCount, sc.total)
		out = append(out, sc)
	}
	return out, nil
}

// Overview summarises every session in the window.
func (a *Aggregator) Overview(ctx context.Context, days int) (models.OverviewStats, error) {
	since := a.Since(days)

	var (
		sessions    []sessionCompletion
		totalEvents int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = a.sessions(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		totalEvents, err = a.store.CountQuestionEvents(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.OverviewStats{}, err
	}

	stats := models.OverviewStats{
		TotalSessions: int64(len(sessions)),
		TotalEvents:   totalEvents,
	}

	var completionSum float64
	var completionN int
	var timeSum float64
	var timeN int
	for _, s := range sessions {
		if finite(s.completion) {
			completionSum += s.completion
			completionN++
		}
		if s.TotalTimeMs != nil {
			timeSum += float64(*s.TotalTimeMs)
			timeN++
		}
		if s.AnsweredCount < int64(s.total) {
			stats.TotalDropoffs++
		}
	}
	if completionN > 0 {
		stats.AvgCompletion = round2(completionSum / float64(completionN))
	}
	if timeN > 0 {
		stats.AvgTime = timeSum / float64(timeN)
	}
	return stats, nil
}

// OrderSetStats reports every order set with at least one session in the
// window. Sessions without an order set are reported under UnassignedID.
func (a *Aggregator) OrderSetStats(ctx context.Context, days int) ([]models.OrderSetStat, error) {
	sessions, err := a.sessions(ctx, a.Since(days))
	if err != nil {
		return nil, err
	}

	type acc struct {
		stat          models.OrderSetStat
		completionSum float64
		timeSum       float64
		timeN         int
	}
	groups := make(map[orderSetKey]*acc)
	for _, s := range sessions {
		key := s.orderSetKey()
		g, ok := groups[key]
		if !ok {
			g = &acc{stat: describeOrderSet(key, s.def)}
			groups[key] = g
		}
		g.stat.TotalSessions++
		g.completionSum += s.completion
		if s.TotalTimeMs != nil {
			g.timeSum += float64(*s.TotalTimeMs)
			g.timeN++
		}
		switch BucketOf(s.completion) {
		case BucketHigh:
			g.stat.HighCompletionCount++
		case BucketMedium:
			g.stat.MediumCompletionCount++
		case BucketLow:
			g.stat.LowCompletionCount++
		}
	}

	type row struct {
		stat       models.OrderSetStat
		unassigned bool
	}
	rows := make([]row, 0, len(groups))
	for key, g := range groups {
		g.stat.AvgCompletion = round2(g.completionSum / float64(g.stat.TotalSessions))
		if g.timeN > 0 {
			g.stat.AvgTimeMs = g.timeSum / float64(g.timeN)
		}
		rows = append(rows, row{stat: g.stat, unassigned: key.unassigned})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.stat.TotalSessions != b.stat.TotalSessions {
			return a.stat.TotalSessions > b.stat.TotalSessions
		}
		if a.stat.ID != b.stat.ID {
			return a.stat.ID < b.stat.ID
		}
		return !a.unassigned && b.unassigned
	})

	out := make([]models.OrderSetStat, len(rows))
	for i, r := range rows {
		out[i] = r.stat
	}
	return out, nil
}

func describeOrderSet(key orderSetKey, def *orderset.Definition) models.OrderSetStat {
	switch {
	case key.unassigned:
		return models.OrderSetStat{ID: UnassignedID, Name: "Unassigned", Description: "Sessions without an order set"}
	case def != nil:
		return models.OrderSetStat{ID: def.ID, Name: def.Name, Description: def.Description}
	default:
		return models.OrderSetStat{ID: key.id, Name: "Order Set " + key.id}
	}
}

// Dropoffs ranks the points where sessions stopped. A session drops at the
// first position of its order without an answer, so a skipped question counts
// even when later ones were answered. Sessions that answered everything, and
// sessions whose order cannot be resolved to a question list, contribute nothing.
func (a *Aggregator) Dropoffs(ctx context.Context, days int) ([]models.DropoffStat, error) {
	since := a.Since(days)

	var (
		sessions []sessionCompletion
		answered []AnsweredQuestion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = a.sessions(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		answered, err = a.store.AnsweredQuestions(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	answeredBySession := make(map[string]map[string]struct{})
	for _, aq := range answered {
		set, ok := answeredBySession[aq.SessionID]
		if !ok {
			set = make(map[string]struct{})
			answeredBySession[aq.SessionID] = set
		}
		set[aq.QuestionID] = struct{}{}
	}

	type key struct {
		orderSetID string
		questionID string
		index      int
	}
	type acc struct {
		stat          models.DropoffStat
		completionSum float64
	}
	groups := make(map[key]*acc)
	for _, s := range sessions {
		if s.def == nil || !s.def.Decoded {
			continue
		}
		if s.AnsweredCount >= int64(s.total) {
			continue
		}
		idx := firstGap(s.def.Questions, answeredBySession[s.SessionID])
		if idx < 0 {
			continue
		}
		k := key{orderSetID: s.def.ID, questionID: s.def.Questions[idx], index: idx}
		g, ok := groups[k]
		if !ok {
			id := s.def.ID
			g = &acc{stat: models.DropoffStat{OrderSetID: &id, QuestionID: k.questionID, QuestionIndex: idx}}
			groups[k] = g
		}
		g.stat.DropoffCount++
		g.completionSum += s.completion
	}

	out := make([]models.DropoffStat, 0, len(groups))
	for _, g := range groups {
		g.stat.AvgCompletionAtDropoff = round2(g.completionSum / float64(g.stat.DropoffCount))
		out = append(out, g.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DropoffCount != out[j].DropoffCount {
			return out[i].DropoffCount > out[j].DropoffCount
		}
		if *out[i].OrderSetID != *out[j].OrderSetID {
			return *out[i].OrderSetID < *out[j].OrderSetID
		}
		return out[i].QuestionIndex < out[j].QuestionIndex
	})
	if len(out) > MaxDropoffRows {
		out = out[:MaxDropoffRows]
	}
	return out, nil
}

// QuestionStats groups the window's question events by order set, question and position.
func (a *Aggregator) QuestionStats(ctx context.Context, days int) ([]models.QuestionStat, error) {
	rows, err := a.store.QuestionEventStats(ctx, a.Since(days))
	if err != nil {
		return nil, err
	}

	out := make([]models.QuestionStat, 0, len(rows))
	for _, row := range rows {
		stat := models.QuestionStat{
			OrderSetID:    row.OrderSetID,
			QuestionID:    row.QuestionID,
			QuestionIndex: row.QuestionIndex,
			StartedCount:  row.StartedCount,
			AnsweredCount: row.AnsweredCount,
		}
		if row.AvgTimeToAnswer != nil && finite(*row.AvgTimeToAnswer) {
			stat.AvgTimeToAnswer = *row.AvgTimeToAnswer
		}
		if row.StartedCount > 0 {
			stat.AnswerRate = round2(float64(row.AnsweredCount) / float64(row.StartedCount) * 100)
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareOptional(out[i].OrderSetID, out[j].OrderSetID); c != 0 {
			return c < 0
		}
		if c := compareOptionalInt(out[i].QuestionIndex, out[j].QuestionIndex); c != 0 {
			return c < 0
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

// CompletionRates is the completion histogram across every session in the window.
func (a *Aggregator) CompletionRates(ctx context.Context, days int) (models.CompletionRates, error) {
	sessions, err := a.sessions(ctx, a.Since(days))
	if err != nil {
		return models.CompletionRates{}, err
	}
	var rates models.CompletionRates
	for _, s := range sessions {
		switch BucketOf(s.completion) {
		case BucketHigh:
			rates.High++
		case BucketMedium:
			rates.Medium++
		case BucketLow:
			rates.Low++
		}
	}
	return rates, nil
}

// Report computes all five reports concurrently against one window start.
func (a *Aggregator) Report(ctx context.Context, days int) (*models.Report, error) {
	now := a.now()
	a = &Aggregator{store: a.store, orderSets: a.orderSets, now: func() time.Time { return now }}

	report := &models.Report{Days: days}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.Overview, err = a.Overview(gctx, days)
		return err
	})
	g.Go(func() error {
		var err error
		report.OrderSets, err = a.OrderSetStats(gctx, days)
		return err
	})
	g.Go(func() error {
		var err error
		report.Dropoffs, err = a.Dropoffs(gctx, days)
		return err
	})
	g.Go(func() error {
		var err error
		report.Questions, err = a.QuestionStats(gctx, days)
		return err
	})
	g.Go(func() error {
		var err error
		report.CompletionRates, err = a.CompletionRates(gctx, days)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func compareOptional(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func compareOptionalInt(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return *a - *b
}
