package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tduhfajd/sql-guard/governance"
	"github.com/tduhfajd/sql-guard/governance/api"
	"github.com/tduhfajd/sql-guard/governance/pii"
	"github.com/tduhfajd/sql-guard/governance/rbac"
	"github.com/tduhfajd/sql-guard/governance/sqlscan"
)

// analyzeCmd returns the command that classifies a statement.
func analyzeCmd() *cobra.Command {
	var params string
	var sanitize bool

	cmd := &cobra.Command{
		Use:   "analyze [sql|-]",
		Short: "Classify a SQL statement",
		Long: `Tokenize and classify a SQL statement without any policy or role.

Examples:
  sqlguard analyze "SELECT * FROM users WHERE id = :id" --params '{"id": 1}'
  echo "DROP TABLE users" | sqlguard analyze`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			if sanitize {
				sql = sqlscan.Sanitize(sql)
			}
			values, err := parseParams(params)
			if err != nil {
				return err
			}

			analyzer, err := sqlscan.NewAnalyzerFromConfig(sqlscan.ConfigFromEnv())
			if err != nil {
				return err
			}
			cls, err := analyzer.Analyze(sql)
			if err != nil {
				return err
			}
			out := map[string]interface{}{"classification": cls}
			if values != nil {
				report, err := analyzer.ValidateParameters(sql, values)
				if err != nil {
					return err
				}
				out["parameters"] = report
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&params, "params", "p", "", "Named parameter values as a JSON object")
	cmd.Flags().BoolVar(&sanitize, "sanitize", false, "Strip comments and repeated semicolons first")
	return cmd
}

type statementFlags struct {
	subjectFlags
	params       string
	databaseID   string
	databaseType string
	schema       string
}

func (f *statementFlags) register(cmd *cobra.Command) {
	f.subjectFlags.register(cmd)
	cmd.Flags().StringVarP(&f.params, "params", "p", "", "Named parameter values as a JSON object")
	cmd.Flags().StringVar(&f.databaseID, "database-id", "", "Database ID (default: target.database_id)")
	cmd.Flags().StringVar(&f.databaseType, "database-type", "", "PRODUCTION, STAGING, DEVELOPMENT or AUDIT (default: target.database_type)")
	cmd.Flags().StringVar(&f.schema, "schema", "", "Schema the statement runs in")
}

func (f *statementFlags) request(cmd *cobra.Command, args []string, cfg governance.Config) (governance.Request, error) {
	sql, err := inputText(cmd, args)
	if err != nil {
		return governance.Request{}, err
	}
	subject, err := f.subject()
	if err != nil {
		return governance.Request{}, err
	}
	params, err := parseParams(f.params)
	if err != nil {
		return governance.Request{}, err
	}
	req := governance.Request{
		SQL:          sql,
		Parameters:   params,
		Subject:      subject,
		DatabaseID:   f.databaseID,
		DatabaseType: f.databaseType,
		Schema:       f.schema,
		UserAgent:    "sqlguard-cli/" + version,
	}
	if req.DatabaseID == "" {
		req.DatabaseID = cfg.Target.DatabaseID
	}
	if req.DatabaseType == "" {
		req.DatabaseType = cfg.Target.DatabaseType
	}
	return req, nil
}

// checkCmd returns the command that governs a statement without running it.
func checkCmd(configPath *string) *cobra.Command {
	var flags statementFlags

	cmd := &cobra.Command{
		Use:   "check [sql|-]",
		Short: "Govern a statement without running it",
		Long: `Run a statement through access control and policy evaluation and print
the decision, including the rewritten statement. Exits non-zero when the
statement is rejected.

Examples:
  sqlguard check "SELECT * FROM orders" --role VIEWER
  sqlguard check "DELETE FROM orders" --role ADMIN --database-type STAGING`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := governance.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			req, err := flags.request(cmd, args, cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{logs: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			d, checkErr := a.pipeline.Check(cmd.Context(), req)
			if err := printJSON(cmd, d); err != nil {
				return err
			}
			return checkErr
		},
	}

	flags.register(cmd)
	return cmd
}

// executeCmd returns the command that governs and runs a statement.
func executeCmd(configPath *string) *cobra.Command {
	var flags statementFlags

	cmd := &cobra.Command{
		Use:   "execute [sql|-]",
		Short: "Govern a statement, run it against the target database and mask the result",
		Long: `Govern a statement and run the rewritten form against the target database
(target.dsn or $SQLGUARD_TARGET_DSN). Result rows are masked before printing.

Examples:
  sqlguard execute "SELECT id, email FROM users WHERE id = :id" -p '{"id": 7}' --role OPERATOR`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := governance.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Target.DSN == "" {
				return fmt.Errorf("target database is not configured: set target.dsn or %s", governance.EnvTargetDSN)
			}
			req, err := flags.request(cmd, args, cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{execute: true, quota: true, logs: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			res, execErr := a.pipeline.Execute(cmd.Context(), req)
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			return execErr
		},
	}

	flags.register(cmd)
	return cmd
}

// redactCmd returns the command that masks PII.
func redactCmd() *cobra.Command {
	var detect bool
	var salt string

	cmd := &cobra.Command{
		Use:   "redact [text|-]",
		Short: "Mask PII in text",
		Long: `Mask emails, phone numbers, card numbers and other PII in free text.

Examples:
  sqlguard redact "contact alice@example.com or 555-123-4567"
  sqlguard redact --detect < export.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			cfg := pii.ConfigFromEnv()
			if salt != "" {
				cfg = cfg.WithSalt(salt)
			}
			redactor, err := pii.NewRedactorFromConfig(cfg)
			if err != nil {
				return err
			}

			if !detect {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), redactor.MaskText(text))
				return err
			}
			type finding struct {
				Type       pii.Type `json:"pii_type"`
				Masked     string   `json:"masked_value"`
				Hash       string   `json:"hash"`
				Confidence float64  `json:"confidence"`
				Start      int      `json:"start"`
				End        int      `json:"end"`
			}
			findings := []finding{}
			for _, m := range redactor.Detect(text) {
				findings = append(findings, finding{
					Type:       m.Type,
					Masked:     m.Masked,
					Hash:       redactor.Hash(m.Original),
					Confidence: m.Confidence,
					Start:      m.Start,
					End:        m.End,
				})
			}
			return printJSON(cmd, map[string]interface{}{
				"masked_text": redactor.MaskText(text),
				"matches":     findings,
			})
		},
	}

	cmd.Flags().BoolVarP(&detect, "detect", "d", false, "Print matches with salted hashes instead of only the masked text")
	cmd.Flags().StringVar(&salt, "salt", "", "Hash salt (default: $SQLGUARD_PII_SALT)")
	return cmd
}

// accessCmd returns the command that prints a role's effective access.
func accessCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "access",
		Short: "Show the effective access of a role",
		Long: `Print permissions, database and schema access, query restrictions and the
execution quota of a role.

Examples:
  sqlguard access --role OPERATOR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rbac.ParseRole(role)
			if err != nil {
				return err
			}
			summary := rbac.SummaryFor(rbac.Subject{ID: "-", Role: r, Active: true})
			return printJSON(cmd, map[string]interface{}{
				"summary":         summary,
				"execution_quota": rbac.ExecutionQuota(r),
				"inherits_from":   rbac.RoleHierarchy()[r],
			})
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", "VIEWER", "Role: VIEWER, OPERATOR, APPROVER or ADMIN")
	return cmd
}

// tokenCmd returns the command that issues API tokens.
func tokenCmd(configPath *string) *cobra.Command {
	var flags subjectFlags
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Sign an HS256 token for the governance API with server.jwt_secret
(or $JWT_SECRET).

Examples:
  sqlguard token --subject alice --role APPROVER --ttl 8h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := governance.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			subject, err := flags.subject()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Server.TokenTTL
			}
			auth, err := api.NewAuthenticator(cfg.Server.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(subject)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: server.token_ttl)")
	return cmd
}
