package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RAIL-Suite/RAIL-sub001/src/llm"
	"github.com/RAIL-Suite/RAIL-sub001/src/react"
)

// NewAskCmd runs the reasoning loop over the broker's tools.
func NewAskCmd(opts *Options) *cobra.Command {
	var maxSteps int
	var verbose bool
	var script []string

	cmd := &cobra.Command{
		Use:   `ask "<question>"`,
		Short: "Answer a question by letting the model call broker tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(args[0])
			if query == "" {
				return fmt.Errorf("question cannot be empty")
			}
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			modelCfg := rt.cfg.LLM()
			if len(script) > 0 {
				modelCfg.Provider, modelCfg.Script = llm.ProviderScripted, script
			}
			model, err := llm.New(modelCfg)
			if err != nil {
				return err
			}

			engineOpts := []react.Option{
				react.WithMaxSteps(rt.cfg.Agent.MaxSteps),
				react.WithLogger(rt.logger),
				react.WithMetrics(rt.metrics),
				react.WithSystemPrompt(rt.cfg.Agent.SystemPrompt),
				react.WithToolLimit(rt.cfg.Agent.ToolLimit),
			}
			if maxSteps > 0 {
				engineOpts = append(engineOpts, react.WithMaxSteps(maxSteps))
			}
			if path := rt.cfg.Agent.RecorderPath; path != "" {
				engineOpts = append(engineOpts, react.WithRecorder(react.NewJSONLRecorder(path)))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			tools := react.NewRemoteToolbox(rt.client, rt.endpoint)
			session, runErr := react.NewEngine(model, tools, engineOpts...).Run(ctx, query)
			if verbose {
				writeSteps(cmd.ErrOrStderr(), session)
			}
			if runErr != nil {
				return runErr
			}
			return writeOutcome(cmd.OutOrStdout(), session)
		},
	}

	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Override agent.max_steps")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every step to stderr")
	cmd.Flags().StringArrayVar(&script, "script", nil, "Use canned model replies instead of a model (repeatable)")
	return cmd
}

func writeSteps(w io.Writer, s *react.Session) {
	for _, st := range s.Steps {
		fmt.Fprintf(w, "[%d] Thought: %s\n    Action: %s\n", st.Index, st.Thought, st.Action)
		if st.Observation != "" {
			fmt.Fprintf(w, "    Observation: %s\n", st.Observation)
		}
		if st.Failure != react.ErrorNone {
			fmt.Fprintf(w, "    Failure: %s\n", st.Failure)
		}
	}
}

func writeOutcome(w io.Writer, s *react.Session) error {
	switch s.Status {
	case react.StatusCompleted:
		_, err := fmt.Fprintln(w, s.FinalAnswer)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s after %d steps. Collected so far:\n%s\n", s.Status, len(s.Steps), s.Summary)
		return err
	}
}
