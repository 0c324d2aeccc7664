package react

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/llm"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/observability"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// DefaultMaxSteps bounds a session when no option overrides it.
const DefaultMaxSteps = 10

// DefaultSystemPrompt explains the reply grammar to the model.
const DefaultSystemPrompt = `You are an assistant that completes tasks by calling tools.
Reply in exactly this format:
Thought: <your reasoning>
Action: <ToolName>(param="value", other=42)

Call one tool per reply and wait for its Observation.
When you know the answer, reply with:
Thought: <your reasoning>
Action: FINISH
Answer: <the final answer>`

const formatCorrection = `Your reply could not be parsed. Use exactly:
Thought: <your reasoning>
Action: <ToolName>(param="value")
or
Action: FINISH
Answer: <the final answer>`

// Engine runs reasoning sessions. An Engine may serve several Run calls
// concurrently; each session is strictly sequential.
type Engine struct {
	model        llm.Model
	tools        Toolbox
	parser       Parser
	maxSteps     int
	logger       *zap.Logger
	metrics      *observability.Metrics
	recorder     Recorder
	systemPrompt string
	toolLimit    int
	now          func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithMaxSteps bounds the number of model turns per session.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithParser replaces the reply grammar.
func WithParser(p Parser) Option {
	return func(e *Engine) {
		if p != nil {
			e.parser = p
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records sessions and steps.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder persists every finished session.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithSystemPrompt replaces the instructions placed before the tool list.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(prompt) != "" {
			e.systemPrompt = prompt
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithToolLimit renders only the n tools most relevant to the query in the
// prompt. Calls to other advertised tools still go through.
func WithToolLimit(n int) Option {
	return func(e *Engine) { e.toolLimit = n }
}

// NewEngine creates an engine over model and tools.
func NewEngine(model llm.Model, tools Toolbox, opts ...Option) *Engine {
	e := &Engine{
		model:        model,
		tools:        tools,
		parser:       TextParser{},
		maxSteps:     DefaultMaxSteps,
		logger:       zap.NewNop(),
		systemPrompt: DefaultSystemPrompt,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run answers query. The returned session is always non-nil; the error is set
// only when the session ends in Error or Cancelled.
func (e *Engine) Run(ctx context.Context, query string) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusInProgress,
		StartedAt: e.now(),
	}
	log := e.logger.With(zap.String("session_id", s.ID))
	log.Info("session started", zap.String("query", query))

	tools, err := e.tools.Tools(ctx)
	if err != nil {
		return e.finish(ctx, log, s, StatusError, fmt.Errorf("list tools: %w", err))
	}
	if e.toolLimit > 0 {
		tools = manifest.Search(tools, query, e.toolLimit)
	}

	var history strings.Builder
	history.WriteString(e.systemPrompt)
	history.WriteString("\n\nAvailable tools:\n")
	history.WriteString(manifest.Render(tools))
	history.WriteString("\nQuestion: ")
	history.WriteString(query)
	history.WriteByte('\n')

	for i := 1; i <= e.maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, log, s, StatusCancelled, err)
		}

		start := e.now()
		reply, err := e.model.Generate(ctx, history.String())
		if err != nil {
			if ctx.Err() != nil {
				return e.finish(ctx, log, s, StatusCancelled, ctx.Err())
			}
			return e.finish(ctx, log, s, StatusError, fmt.Errorf("model: %w", err))
		}

		parsed := e.parser.Parse(reply)
		step := Step{Index: i, Thought: parsed.Thought, Action: parsed.Action}
		e.metrics.RecordReactStep(parsed.Action.actionType())

		switch a := parsed.Action.(type) {
		case Finish:
			step.Duration = e.now().Sub(start)
			s.Steps = append(s.Steps, step)
			s.FinalAnswer = a.Answer
			return e.finish(ctx, log, s, StatusCompleted, nil)

		case Invalid:
			step.Observation = protocol.Errorf(protocol.KindReasoningFormatError, "%s", a.Reason).Error()
			log.Debug("unparseable reply", zap.Int("step", i), zap.String("reason", a.Reason))
			writeTurn(&history, step.Thought, a.Raw, step.Observation, formatCorrection)

		case FunctionCall:
			// In-flight tool calls are not aborted; cancellation is seen at
			// the top of the next iteration.
			result, err := e.tools.Call(context.WithoutCancel(ctx), a.Name, a.Args)
			step.Observation = observation(result, err)
			hint := ""
			if err != nil || IsError(step.Observation) {
				step.Failure = Classify(step.Observation)
				hint = Hint(step.Failure)
			}
			log.Debug("tool call",
				zap.Int("step", i),
				zap.String("method", a.Name),
				zap.String("failure", string(step.Failure)))
			writeTurn(&history, step.Thought, a.String(), step.Observation, hint)
		}
		step.Duration = e.now().Sub(start)
		s.Steps = append(s.Steps, step)
	}
	return e.finish(ctx, log, s, StatusMaxStepsReached, nil)
}

func (e *Engine) finish(ctx context.Context, log *zap.Logger, s *Session, status Status, err error) (*Session, error) {
	s.Status = status
	s.EndedAt = e.now()
	if err != nil {
		s.Error = err.Error()
	}
	if status != StatusCompleted {
		s.Summary = summarize(s.Steps)
	}
	e.metrics.RecordReactSession(string(status))

	fields := []zap.Field{zap.String("status", string(status)), zap.Int("steps", len(s.Steps))}
	if err != nil {
		log.Warn("session ended", append(fields, zap.Error(err))...)
	} else {
		log.Info("session ended", fields...)
	}

	if e.recorder != nil {
		if rerr := e.recorder.Record(context.WithoutCancel(ctx), s); rerr != nil {
			log.Error("record session", zap.Error(rerr))
		}
	}
	return s, err
}

func writeTurn(b *strings.Builder, thought, action, obs, hint string) {
	fmt.Fprintf(b, "Thought: %s\nAction: %s\nObservation: %s\n", thought, action, obs)
	if hint != "" {
		fmt.Fprintf(b, "Hint: %s\n", hint)
	}
}

// observation renders a tool result as text. JSON strings are unquoted.
func observation(result json.RawMessage, err error) string {
	if err != nil {
		return "Error: " + err.Error()
	}
	if len(result) == 0 {
		return "null"
	}
	if result[0] == '"' {
		if s, uerr := strconv.Unquote(string(result)); uerr == nil {
			return s
		}
		var s string
		if json.Unmarshal(result, &s) == nil {
			return s
		}
	}
	return string(result)
}
