// backend/internal/flow/controller.go
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chat-funnel/internal/analytics"
	"chat-funnel/internal/orderset"
	"chat-funnel/pkg/logger"
)

type State int

const (
	StateIdle State = iota
	StateFlowSelected
	StateAskingQuestion
	StateValidating
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFlowSelected:
		return "flow_selected"
	case StateAskingQuestion:
		return "asking_question"
	case StateValidating:
		return "validating"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var ErrInvalidTransition = errors.New("invalid flow transition")

type step struct {
	question   Question
	answered   bool
	answer     string
	startedAt  time.Time
	answeredAt time.Time
}

// Outcome describes what happened to one answer.
type Outcome struct {
	Valid    bool
	Reply    string
	FollowUp string
	Next     *Question
	Done     bool
}

// Controller walks one chat session through an order set's questions and
// reports each step to an Emitter. Emit failures are logged and never stop
// the flow.
type Controller struct {
	sessionID string
	catalog   Catalog
	emitter   Emitter
	log       *logger.Logger
	now       func() time.Time

	state     State
	orderSet  orderset.Definition
	steps     []step
	index     int
	startedAt time.Time
	userInfo  map[string]string
}

type Option func(*Controller)

func WithCatalog(c Catalog) Option { return func(ctl *Controller) { ctl.catalog = c } }

func WithClock(now func() time.Time) Option { return func(ctl *Controller) { ctl.now = now } }

func WithLogger(log *logger.Logger) Option { return func(ctl *Controller) { ctl.log = log } }

func NewController(sessionID string, emitter Emitter, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		catalog:   DefaultCatalog(),
		emitter:   emitter,
		log:       logger.Nop(),
		now:       time.Now,
		userInfo:  map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) State() State { return c.state }

// Current returns the question being asked, if any.
func (c *Controller) Current() (Question, bool) {
	if c.state != StateAskingQuestion || c.index >= len(c.steps) {
		return Question{}, false
	}
	return c.steps[c.index].question, true
}

func (c *Controller) Answered() int {
	n := 0
	for _, s := range c.steps {
		if s.answered {
			n++
		}
	}
	return n
}

// Completion is the share of the order set answered so far, in percent.
func (c *Controller) Completion() float64 {
	if len(c.steps) == 0 {
		return 0
	}
	return float64(c.Answered()) / float64(len(c.steps)) * 100
}

// UserInfo returns answers keyed by the question's api field.
func (c *Controller) UserInfo() map[string]string {
	out := make(map[string]string, len(c.userInfo))
	for k, v := range c.userInfo {
		out[k] = v
	}
	return out
}

// Select binds the session to an order set.
func (c *Controller) Select(ctx context.Context, set orderset.Definition) error {
	if c.state != StateIdle {
		return fmt.Errorf("%w: select from %s", ErrInvalidTransition, c.state)
	}
	order := set.Questions
	if len(order) == 0 {
		order = orderset.Defaults()[0].Questions
	}
	steps := make([]step, 0, len(order))
	for _, id := range order {
		q, ok := c.catalog[id]
		if !ok {
			return fmt.Errorf("order set %s: unknown question %s", set.ID, id)
		}
		steps = append(steps, step{question: q})
	}
	set.Questions = order

	c.orderSet = set
	c.steps = steps
	c.state = StateFlowSelected

	c.emit(ctx, analytics.EventOrderSetSelected, map[string]interface{}{
		"orderSetId":    set.ID,
		"orderSetName":  set.Name,
		"description":   set.Description,
		"questionOrder": json.RawMessage(orderset.EncodeQuestionOrder(order)),
		"userInfo":      c.UserInfo(),
	})
	return nil
}

// Start asks the first question.
func (c *Controller) Start(ctx context.Context) (Question, error) {
	if c.state != StateFlowSelected {
		return Question{}, fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.state)
	}
	c.startedAt = c.now()
	c.index = 0
	return c.ask(ctx), nil
}

// Answer validates a reply to the current question. A valid reply advances
// the flow; an invalid one leaves it on the same question.
func (c *Controller) Answer(ctx context.Context, answer string) (Outcome, error) {
	if c.state != StateAskingQuestion {
		return Outcome{}, fmt.Errorf("%w: answer from %s", ErrInvalidTransition, c.state)
	}
	c.state = StateValidating
	cur := &c.steps[c.index]

	if !cur.question.Validate(answer) {
		c.state = StateAskingQuestion
		return Outcome{Valid: false, Reply: cur.question.ErrorMessage()}, nil
	}

	stored := cur.question.Normalize(answer)
	cur.answered = true
	cur.answer = stored
	cur.answeredAt = c.now()
	if cur.question.APIField != "" {
		c.userInfo[cur.question.APIField] = stored
	}

	c.emit(ctx, analytics.EventQuestionAnswered, map[string]interface{}{
		"orderSetId":    c.orderSet.ID,
		"questionId":    questionID(cur.question.ID),
		"questionIndex": c.index,
		"answer":        stored,
		"timeToAnswer":  cur.answeredAt.Sub(cur.startedAt).Milliseconds(),
		"timestamp":     cur.answeredAt.UnixMilli(),
	})

	out := Outcome{Valid: true}
	if cur.question.TriggersFollowUp(stored) {
		out.FollowUp = cur.question.FollowUp.Message
	}

	c.index++
	if c.index >= len(c.steps) {
		c.finish(ctx)
		out.Done = true
		return out, nil
	}
	next := c.ask(ctx)
	out.Next = &next
	return out, nil
}

// Abandon ends the flow early, reporting the partial completion the way the
// widget does when the page is closed mid-flow.
func (c *Controller) Abandon(ctx context.Context) error {
	switch c.state {
	case StateAskingQuestion, StateValidating:
	default:
		return fmt.Errorf("%w: abandon from %s", ErrInvalidTransition, c.state)
	}
	c.emitCompleted(ctx)
	c.state = StateCompleted
	return nil
}

func (c *Controller) ask(ctx context.Context) Question {
	cur := &c.steps[c.index]
	cur.startedAt = c.now()
	c.state = StateAskingQuestion

	c.emit(ctx, analytics.EventQuestionStarted, map[string]interface{}{
		"orderSetId":    c.orderSet.ID,
		"questionId":    questionID(cur.question.ID),
		"questionIndex": c.index,
		"timestamp":     cur.startedAt.UnixMilli(),
	})
	return cur.question
}

func (c *Controller) finish(ctx context.Context) {
	c.emitCompleted(ctx)

	questions := make([]map[string]interface{}, 0, len(c.steps))
	for _, s := range c.steps {
		q := map[string]interface{}{
			"questionId":   questionID(s.question.ID),
			"answered":     s.answered,
			"answer":       nil,
			"timestamp":    nil,
			"timeToAnswer": nil,
		}
		if s.answered {
			q["answer"] = s.answer
			q["timestamp"] = s.answeredAt.UnixMilli()
			q["timeToAnswer"] = s.answeredAt.Sub(s.startedAt).Milliseconds()
		}
		questions = append(questions, q)
	}
	c.emit(ctx, analytics.EventFlowData, map[string]interface{}{
		"orderSetId":           c.orderSet.ID,
		"orderSetName":         c.orderSet.Name,
		"questionOrder":        json.RawMessage(orderset.EncodeQuestionOrder(c.orderSet.Questions)),
		"questions":            questions,
		"completionPercentage": c.Completion(),
		"totalTime":            c.now().Sub(c.startedAt).Milliseconds(),
		"userInfo":             c.UserInfo(),
	})
	c.state = StateCompleted
}

func (c *Controller) emitCompleted(ctx context.Context) {
	c.emit(ctx, analytics.EventFlowCompleted, map[string]interface{}{
		"orderSetId":           c.orderSet.ID,
		"completionPercentage": c.Completion(),
		"totalTime":            c.now().Sub(c.startedAt).Milliseconds(),
		"questionsAnswered":    c.Answered(),
		"totalQuestions":       len(c.steps),
	})
}

func (c *Controller) emit(ctx context.Context, eventType string, data interface{}) {
	ev := Event{EventType: eventType, SessionID: c.sessionID, Timestamp: c.now().UTC(), Data: data}
	if err := c.emitter.Emit(ctx, ev); err != nil {
		c.log.Warn("emit flow event", "session_id", c.sessionID, "event", eventType, "error", err)
	}
}

// questionID sends numeric ids as JSON numbers, matching the widget.
func questionID(id string) interface{} {
	if n, err := strconv.Atoi(id); err == nil && strconv.Itoa(n) == id {
		return n
	}
	return id
}
