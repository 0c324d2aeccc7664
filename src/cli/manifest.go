package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RAIL-Suite/RAIL-sub001/src/config"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
)

// NewManifestCmd groups manifest utilities.
func NewManifestCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with manifest files",
	}
	cmd.AddCommand(newManifestValidateCmd(opts))
	return cmd
}

func newManifestValidateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a JSON or YAML manifest loads and has unique tool names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			m, err := manifest.LoadFile(args[0], manifest.WithTransform(cfg.Resolver().Substitute))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: module %s, %d tools\n", m.ModuleID, len(m.Tools))
			fmt.Fprint(out, manifest.Render(m.Tools))
			return nil
		},
	}
}
