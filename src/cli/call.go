package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

// NewCallCmd sends one EXECUTE to the broker.
func NewCallCmd(opts *Options) *cobra.Command {
	var argsJSON string
	var class string

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Invoke a method through the broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			var payload json.RawMessage
			if s := strings.TrimSpace(argsJSON); s != "" {
				if !json.Valid([]byte(s)) {
					return fmt.Errorf("--args is not valid JSON")
				}
				payload = json.RawMessage(s)
			}

			result, err := rt.client.Execute(cmd.Context(), rt.endpoint, args[0], class, payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", `Arguments as a JSON object or array, e.g. '{"code":"M1"}'`)
	cmd.Flags().StringVar(&class, "class", "", "Owner type of the method, when the name alone is ambiguous")
	return cmd
}

// NewPingCmd checks that the broker accepts connections.
func NewPingCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the broker is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			start := time.Now()
			if err := rt.client.Ping(cmd.Context(), rt.endpoint); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%s)\n", rt.endpoint, time.Since(start).Round(time.Microsecond))
			return nil
		},
	}
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := indentJSON(&buf, raw); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

func indentJSON(buf *bytes.Buffer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	buf.Write(out)
	return nil
}
