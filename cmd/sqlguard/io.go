package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tduhfajd/sql-guard/governance/rbac"
)

// inputText returns the first argument, or stdin when it is "-" or absent.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no input: pass an argument or pipe text on stdin")
	}
	return text, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseParams(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid --params: %w", err)
	}
	return params, nil
}

// subjectFlags are the flags naming the subject a statement runs as.
type subjectFlags struct {
	id       string
	role     string
	inactive bool
}

func (f *subjectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "subject", "cli", "Subject ID")
	cmd.Flags().StringVarP(&f.role, "role", "r", "VIEWER", "Role: VIEWER, OPERATOR, APPROVER or ADMIN")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "Treat the subject as inactive")
}

func (f *subjectFlags) subject() (rbac.Subject, error) {
	role, err := rbac.ParseRole(f.role)
	if err != nil {
		return rbac.Subject{}, err
	}
	return rbac.Subject{ID: f.id, Role: role, Active: !f.inactive}, nil
}
