package cli

import (
	"fmt"

	"github.com/reglet-dev/dlhost/application/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := schema.HostConfigSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, string(raw))
			return err
		},
	}
}

func newValidateCommand(a *app) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print the effective settings",
		Long: `Load the configuration file given with --config, apply DLHOST_*
environment overrides and flags, and validate the result against the
configuration schema and its rules. With --show the effective
configuration is printed as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The configuration was loaded and validated before this runs.
			v := newView(a.out, ContentsRaw)
			v.success("configuration is valid (backend %s)", a.cfg.Backend)
			if !show {
				return nil
			}
			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = a.out.Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the effective configuration")
	return cmd
}
