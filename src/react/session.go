// Package react runs the Thought/Action/Observation reasoning loop. A model
// proposes one action per turn in plain text; the loop parses it, executes
// tool calls through a Toolbox and feeds the observation back until the model
// finishes or the step budget runs out.
package react

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusInProgress      Status = "InProgress"
	StatusCompleted       Status = "Completed"
	StatusMaxStepsReached Status = "MaxStepsReached"
	StatusError           Status = "Error"
	StatusCancelled       Status = "Cancelled"
)

// Terminal reports whether s ends a session.
func (s Status) Terminal() bool {
	return s != StatusInProgress && s != ""
}

// Action is what the model asked for in one step: a FunctionCall, a Finish or
// an Invalid reply.
type Action interface {
	actionType() string
	String() string
}

// FunctionCall asks to run a tool.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// Finish ends the session with an answer.
type Finish struct {
	Answer string
}

// Invalid holds a reply whose action could not be parsed.
type Invalid struct {
	Raw    string
	Reason string
}

const (
	actionCall    = "call"
	actionFinish  = "finish"
	actionInvalid = "invalid"
)

func (FunctionCall) actionType() string { return actionCall }
func (Finish) actionType() string       { return actionFinish }
func (Invalid) actionType() string      { return actionInvalid }

// String renders the call back in the action grammar.
func (c FunctionCall) String() string {
	keys := make([]string, 0, len(c.Args))
	for k := range c.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(c.Args[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%q", fmt.Sprint(c.Args[k])))
		}
		parts = append(parts, k+"="+string(v))
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (Finish) String() string { return "FINISH" }

func (i Invalid) String() string { return i.Raw }

// Step is one reasoning iteration.
type Step struct {
	Index       int
	Thought     string
	Action      Action
	Observation string
	// Failure is the classified error of a failed tool call.
	Failure  ErrorKind
	Duration time.Duration
}

// Session is the record of one query.
type Session struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Steps       []Step    `json:"steps"`
	Status      Status    `json:"status"`
	FinalAnswer string    `json:"finalAnswer,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt,omitempty"`
}

// Observations returns the observations of every executed tool call.
func (s *Session) Observations() []string {
	var out []string
	for _, st := range s.Steps {
		if _, ok := st.Action.(FunctionCall); ok {
			out = append(out, st.Observation)
		}
	}
	return out
}

// summarize lists the collected observations, one line per tool call.
func summarize(steps []Step) string {
	var b strings.Builder
	for _, st := range steps {
		call, ok := st.Action.(FunctionCall)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Step %d (%s): %s\n", st.Index, call.Name, oneLine(st.Observation))
	}
	if b.Len() == 0 {
		return "No observations were collected."
	}
	return strings.TrimRight(b.String(), "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type actionRecord struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Answer string         `json:"answer,omitempty"`
	Raw    string         `json:"raw,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

type stepRecord struct {
	Index       int           `json:"index"`
	Thought     string        `json:"thought"`
	Action      *actionRecord `json:"action,omitempty"`
	Observation string        `json:"observation,omitempty"`
	Failure     ErrorKind     `json:"failure,omitempty"`
	DurationMS  int64         `json:"durationMs"`
}

// MarshalJSON encodes the action as a tagged object.
func (s Step) MarshalJSON() ([]byte, error) {
	rec := stepRecord{
		Index:       s.Index,
		Thought:     s.Thought,
		Observation: s.Observation,
		Failure:     s.Failure,
		DurationMS:  s.Duration.Milliseconds(),
	}
	switch a := s.Action.(type) {
	case FunctionCall:
		rec.Action = &actionRecord{Type: actionCall, Name: a.Name, Args: a.Args}
	case Finish:
		rec.Action = &actionRecord{Type: actionFinish, Answer: a.Answer}
	case Invalid:
		rec.Action = &actionRecord{Type: actionInvalid, Raw: a.Raw, Reason: a.Reason}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON restores a Step written by MarshalJSON.
func (s *Step) UnmarshalJSON(data []byte) error {
	var rec stepRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*s = Step{
		Index:       rec.Index,
		Thought:     rec.Thought,
		Observation: rec.Observation,
		Failure:     rec.Failure,
		Duration:    time.Duration(rec.DurationMS) * time.Millisecond,
	}
	if rec.Action == nil {
		return nil
	}
	switch rec.Action.Type {
	case actionCall:
		s.Action = FunctionCall{Name: rec.Action.Name, Args: rec.Action.Args}
	case actionFinish:
		s.Action = Finish{Answer: rec.Action.Answer}
	case actionInvalid:
		s.Action = Invalid{Raw: rec.Action.Raw, Reason: rec.Action.Reason}
	default:
		return fmt.Errorf("unknown action type %q", rec.Action.Type)
	}
	return nil
}
