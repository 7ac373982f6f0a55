package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tduhfajd/sql-guard/governance"
	"github.com/tduhfajd/sql-guard/governance/policy"
)

// policyCmd returns the policy management command group.
func policyCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and validate security policies",
	}

	cmd.AddCommand(policyDefaultsCmd())
	cmd.AddCommand(policyTypesCmd())
	cmd.AddCommand(policyValidateCmd())
	cmd.AddCommand(policyExportCmd(configPath))
	return cmd
}

func policyDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in policies as a policy file",
		Long: `Print the built-in policies in policy file format. The output can be
edited and loaded with policy.file.

Examples:
  sqlguard policy defaults > policies.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := policy.EncodeFile(policy.DefaultPolicies())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func policyTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List policy types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, policy.TypeInfos())
		},
	}
}

func policyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a policy file",
		Long: `Parse and validate every entry of a policy file. All problems are
reported together.

Examples:
  sqlguard policy validate policies.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policies, err := policy.LoadFile(args[0])
			if err != nil {
				return err
			}
			if _, err := policy.NewStore(nil).Replace(policies); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d policies OK\n", args[0], len(policies))
			return err
		},
	}
}

func policyExportCmd(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the configured policy set",
		Long: `Load policies from the configured source (policy database, policy file or
built-in defaults) and print them.

Examples:
  sqlguard policy export --config sqlguard.yaml
  sqlguard policy export --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := governance.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{logs: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			policies := a.store.Snapshot().Policies()
			switch format {
			case "yaml":
				data, err := policy.EncodeFile(policies)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "json":
				return printJSON(cmd, policies)
			default:
				return fmt.Errorf("unknown format %q: use yaml or json", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	return cmd
}
