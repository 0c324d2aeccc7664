package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RAIL-Suite/RAIL-sub001/src/broker"
)

// NewToolsCmd lists the broker's sessions and their tools.
func NewToolsCmd(opts *Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List connected processes and the methods they advertise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			resp, err := rt.client.List(cmd.Context(), rt.endpoint)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp.Result)
			}
			var list broker.ListResult
			if err := resp.Decode(&list); err != nil {
				return err
			}
			return writeSessions(cmd, list)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw LIST result")
	return cmd
}

func writeSessions(cmd *cobra.Command, list broker.ListResult) error {
	out := cmd.OutOrStdout()
	if len(list.Sessions) == 0 {
		_, err := fmt.Fprintln(out, "no connected processes")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range list.Sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d tools\n", s.ModuleID, s.InstanceID, s.Endpoint, len(s.Tools))
		for _, t := range s.Tools {
			fmt.Fprintf(tw, "\t%s\t%s\t\n", t.Signature(), t.Description)
		}
	}
	return tw.Flush()
}

