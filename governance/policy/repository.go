// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Listing limits.
const (
	// DefaultPageSize is the default number of items per page for listing.
	DefaultPageSize = 20

	// MaxPageSize is the maximum number of items per page for listing.
	MaxPageSize = 100
)

// ErrPolicyNotFound is returned when a policy is not found.
var ErrPolicyNotFound = errors.New("policy not found")

// ErrDuplicatePolicyName is returned when a policy name is already taken.
var ErrDuplicatePolicyName = errors.New("policy name already exists")

// Dialect adapts repository statements to a SQL database.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// JSONCast is appended to the placeholder of the value column.
	JSONCast string
	// IsDuplicate reports whether err is a unique-constraint violation.
	IsDuplicate func(err error) bool
	// CreateTable is the DDL for the policies table.
	CreateTable string
}

// PostgresDialect targets PostgreSQL through lib/pq.
var PostgresDialect = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	JSONCast:    "::jsonb",
	IsDuplicate: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	},
	CreateTable: `
		CREATE TABLE IF NOT EXISTS security_policies (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			description VARCHAR(500),
			policy_type VARCHAR(64) NOT NULL,
			value JSONB NOT NULL DEFAULT '{}',
			applies_to VARCHAR(32) NOT NULL,
			target VARCHAR(255),
			priority VARCHAR(16) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_enforced BOOLEAN NOT NULL DEFAULT TRUE,
			created_by VARCHAR(255),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
}

// MySQLDialect targets MySQL through go-sql-driver/mysql.
var MySQLDialect = Dialect{
	Name:        "mysql",
	Placeholder: func(int) string { return "?" },
	IsDuplicate: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
	CreateTable: `
		CREATE TABLE IF NOT EXISTS security_policies (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			description VARCHAR(500),
			policy_type VARCHAR(64) NOT NULL,
			value JSON NOT NULL,
			applies_to VARCHAR(32) NOT NULL,
			target VARCHAR(255),
			priority VARCHAR(16) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_enforced BOOLEAN NOT NULL DEFAULT TRUE,
			created_by VARCHAR(255),
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL
		)`,
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "":
		return PostgresDialect, nil
	case "mysql":
		return MySQLDialect, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

const policyColumns = `id, name, description, policy_type, value, applies_to, target,
			priority, is_active, is_enforced, created_by, created_at, updated_at`

// Repository provides CRUD operations for security policies.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewRepository creates a repository over db.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// EnsureSchema creates the policies table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.CreateTable); err != nil {
		return fmt.Errorf("failed to create policies table: %w", err)
	}
	return nil
}

// Create validates and inserts p. ID and timestamps are assigned here.
func (r *Repository) Create(ctx context.Context, p *Policy, createdBy string) error {
	p.Name = NormalizeName(p.Name)
	if err := Validate(p); err != nil {
		return err
	}

	raw, err := EncodeValue(p.Value)
	if err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	p.CreatedBy = createdBy

	ph := r.dialect.Placeholder
	query := fmt.Sprintf(`
		INSERT INTO security_policies (
			%s
		) VALUES (
			%s, %s, %s, %s, %s%s, %s, %s,
			%s, %s, %s, %s, %s, %s
		)
	`, policyColumns,
		ph(1), ph(2), ph(3), ph(4), ph(5), r.dialect.JSONCast, ph(6), ph(7),
		ph(8), ph(9), ph(10), ph(11), ph(12), ph(13))

	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.Name, nullString(p.Description), string(p.Type), string(raw), string(p.AppliesTo), nullString(p.Target),
		string(p.Priority), p.Active, p.Enforced, nullString(p.CreatedBy), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if r.dialect.IsDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicatePolicyName, p.Name)
		}
		return fmt.Errorf("failed to insert policy: %w", err)
	}
	return nil
}

// Update is a partial policy change. Nil fields are left unchanged.
type Update struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Value       Value     `json:"-"`
	AppliesTo   *Target   `json:"applies_to,omitempty"`
	Target      *string   `json:"target,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Active      *bool     `json:"is_active,omitempty"`
	Enforced    *bool     `json:"is_enforced,omitempty"`
}

// Empty reports whether u changes nothing.
func (u *Update) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Value == nil && u.AppliesTo == nil &&
		u.Target == nil && u.Priority == nil && u.Active == nil && u.Enforced == nil
}

// Apply returns a copy of p with u applied. The result is not validated.
func (u *Update) Apply(p *Policy) *Policy {
	c := p.Clone()
	if u.Name != nil {
		c.Name = NormalizeName(*u.Name)
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Value != nil {
		c.Value = u.Value
	}
	if u.AppliesTo != nil {
		c.AppliesTo = *u.AppliesTo
	}
	if u.Target != nil {
		c.Target = strings.TrimSpace(*u.Target)
	}
	if u.Priority != nil {
		c.Priority = *u.Priority
	}
	if u.Active != nil {
		c.Active = *u.Active
	}
	if u.Enforced != nil {
		c.Enforced = *u.Enforced
	}
	return c
}

// Update applies u to the policy with the given id and returns the result.
// The merged policy must pass Validate.
func (r *Repository) Update(ctx context.Context, id string, u *Update) (*Policy, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Empty() {
		return existing, nil
	}

	updated := u.Apply(existing)
	if err := Validate(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	ph := r.dialect.Placeholder
	updates := []string{}
	args := []interface{}{}
	argNum := 1

	set := func(column string, value interface{}, cast string) {
		updates = append(updates, fmt.Sprintf("%s = %s%s", column, ph(argNum), cast))
		args = append(args, value)
		argNum++
	}

	if u.Name != nil {
		set("name", updated.Name, "")
	}
	if u.Description != nil {
		set("description", nullString(updated.Description), "")
	}
	if u.Value != nil {
		raw, err := EncodeValue(updated.Value)
		if err != nil {
			return nil, err
		}
		set("value", string(raw), r.dialect.JSONCast)
	}
	if u.AppliesTo != nil {
		set("applies_to", string(updated.AppliesTo), "")
	}
	if u.Target != nil {
		set("target", nullString(updated.Target), "")
	}
	if u.Priority != nil {
		set("priority", string(updated.Priority), "")
	}
	if u.Active != nil {
		set("is_active", updated.Active, "")
	}
	if u.Enforced != nil {
		set("is_enforced", updated.Enforced, "")
	}
	set("updated_at", updated.UpdatedAt, "")

	query := fmt.Sprintf("UPDATE security_policies SET %s WHERE id = %s",
		strings.Join(updates, ", "), ph(argNum))
	args = append(args, existing.ID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if r.dialect.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePolicyName, updated.Name)
		}
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrPolicyNotFound
	}
	return updated, nil
}

// Delete removes the policy with the given id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM security_policies WHERE id = %s", r.dialect.Placeholder(1))
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

// Get retrieves a policy by id.
func (r *Repository) Get(ctx context.Context, id string) (*Policy, error) {
	query := fmt.Sprintf("SELECT %s FROM security_policies WHERE id = %s",
		policyColumns, r.dialect.Placeholder(1))

	p, err := scanPolicy(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return p, nil
}

// ListParams filters and pages List.
type ListParams struct {
	Type      *PolicyType
	AppliesTo *Target
	Active    *bool
	Search    string
	Page      int
	PageSize  int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ListResult is one page of policies.
type ListResult struct {
	Policies   []*Policy  `json:"policies"`
	Pagination Pagination `json:"pagination"`
}

func (lp *ListParams) normalize() {
	if lp.Page < 1 {
		lp.Page = 1
	}
	if lp.PageSize < 1 {
		lp.PageSize = DefaultPageSize
	}
	if lp.PageSize > MaxPageSize {
		lp.PageSize = MaxPageSize
	}
}

// List retrieves policies with filtering and pagination, highest priority
// first.
func (r *Repository) List(ctx context.Context, params *ListParams) (*ListResult, error) {
	if params == nil {
		params = &ListParams{}
	}
	params.normalize()

	ph := r.dialect.Placeholder
	where := []string{"1 = 1"}
	args := []interface{}{}
	argNum := 1

	if params.Type != nil {
		where = append(where, fmt.Sprintf("policy_type = %s", ph(argNum)))
		args = append(args, string(*params.Type))
		argNum++
	}
	if params.AppliesTo != nil {
		where = append(where, fmt.Sprintf("applies_to = %s", ph(argNum)))
		args = append(args, string(*params.AppliesTo))
		argNum++
	}
	if params.Active != nil {
		where = append(where, fmt.Sprintf("is_active = %s", ph(argNum)))
		args = append(args, *params.Active)
		argNum++
	}
	if params.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(description) LIKE %s)", ph(argNum), ph(argNum+1)))
		pattern := "%" + strings.ToLower(params.Search) + "%"
		args = append(args, pattern, pattern)
		argNum += 2
	}
	whereClause := strings.Join(where, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM security_policies WHERE %s", whereClause)
	var totalItems int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalItems); err != nil {
		return nil, fmt.Errorf("failed to count policies: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(`
		SELECT %s
		FROM security_policies
		WHERE %s
		ORDER BY %s, created_at ASC, id ASC
		LIMIT %s OFFSET %s
	`, policyColumns, whereClause, priorityOrder, ph(argNum), ph(argNum+1))
	args = append(args, params.PageSize, offset)

	policies, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Policies: policies,
		Pagination: Pagination{
			Page:       params.Page,
			PageSize:   params.PageSize,
			TotalItems: totalItems,
			TotalPages: (totalItems + params.PageSize - 1) / params.PageSize,
		},
	}, nil
}

// ListAll returns every policy in creation order. It implements Source.
func (r *Repository) ListAll(ctx context.Context) ([]*Policy, error) {
	query := fmt.Sprintf("SELECT %s FROM security_policies ORDER BY created_at ASC, id ASC", policyColumns)
	return r.query(ctx, query)
}

const priorityOrder = `CASE priority
			WHEN 'CRITICAL' THEN 1
			WHEN 'HIGH' THEN 2
			WHEN 'MEDIUM' THEN 3
			ELSE 4
		END`

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]*Policy, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	policies := make([]*Policy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}
	return policies, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(row rowScanner) (*Policy, error) {
	var p Policy
	var description, target, createdBy sql.NullString
	var policyType, appliesTo, priority string
	var raw []byte

	err := row.Scan(
		&p.ID, &p.Name, &description, &policyType, &raw, &appliesTo, &target,
		&priority, &p.Active, &p.Enforced, &createdBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = PolicyType(policyType)
	p.AppliesTo = Target(appliesTo)
	p.Priority = Priority(priority)
	if description.Valid {
		p.Description = description.String
	}
	if target.Valid {
		p.Target = target.String
	}
	if createdBy.Valid {
		p.CreatedBy = createdBy.String
	}

	v, err := DecodeValue(p.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", p.Name, err)
	}
	p.Value = v
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
