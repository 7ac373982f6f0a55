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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/tduhfajd/sql-guard/governance/sqlscan"
)

// Value is the typed configuration of a policy. Each PolicyType has exactly
// one implementation.
type Value interface {
	// Type returns the policy type this value configures.
	Type() PolicyType

	validate() error
}

// TimeoutValue configures STATEMENT_TIMEOUT.
type TimeoutValue struct {
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// MaxRowsValue configures MAX_ROWS.
type MaxRowsValue struct {
	MaxRows int `json:"max_rows" yaml:"max_rows"`
}

// AutoLimitValue configures AUTO_LIMIT.
type AutoLimitValue struct {
	Limit int `json:"limit" yaml:"limit"`
}

// BlockStatementsValue configures BLOCK_DDL, BLOCK_DML and BLOCK_DCL.
type BlockStatementsValue struct {
	Class             PolicyType `json:"-" yaml:"-"`
	BlockedStatements []string   `json:"blocked_statements" yaml:"blocked_statements"`
}

// RequireWhereValue configures REQUIRE_WHERE_CLAUSE.
type RequireWhereValue struct {
	RequiredFor []string `json:"required_for" yaml:"required_for"`
}

// SensitiveTablesValue configures BLOCK_SENSITIVE_TABLES.
type SensitiveTablesValue struct {
	Tables []string `json:"tables" yaml:"tables"`
}

// SensitiveColumnsValue configures BLOCK_SENSITIVE_COLUMNS.
type SensitiveColumnsValue struct {
	Columns []string `json:"columns" yaml:"columns"`
}

// ColumnMaskRule masks every column whose name matches ColumnPattern.
type ColumnMaskRule struct {
	ColumnPattern string `json:"column_pattern" yaml:"column_pattern"`
	Mask          string `json:"mask" yaml:"mask"`
}

// PIIMaskingValue configures PII_MASKING.
type PIIMaskingValue struct {
	Patterns []ColumnMaskRule `json:"patterns" yaml:"patterns"`
}

// ComplexityValue configures QUERY_COMPLEXITY_LIMIT.
type ComplexityValue struct {
	MaxComplexity float64 `json:"max_complexity" yaml:"max_complexity"`
}

// ConnectionLimitValue configures CONNECTION_LIMIT.
type ConnectionLimitValue struct {
	MaxConnections int `json:"max_connections" yaml:"max_connections"`
}

// IPListValue configures IP_WHITELIST and IP_BLACKLIST. Entries are single
// addresses or CIDR ranges.
type IPListValue struct {
	Kind      PolicyType `json:"-" yaml:"-"`
	Addresses []string   `json:"addresses" yaml:"addresses"`
}

// TimeRestrictionValue configures TIME_RESTRICTION. Access is allowed from
// StartHour up to, not including, EndHour. A window with EndHour before
// StartHour wraps past midnight; equal hours allow the whole day.
type TimeRestrictionValue struct {
	StartHour int      `json:"start_hour" yaml:"start_hour"`
	EndHour   int      `json:"end_hour" yaml:"end_hour"`
	Days      []string `json:"days,omitempty" yaml:"days,omitempty"`
	Timezone  string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// SchemaAccessValue configures SCHEMA_ACCESS.
type SchemaAccessValue struct {
	Schemas []string `json:"schemas" yaml:"schemas"`
}

// TableAccessValue configures TABLE_ACCESS.
type TableAccessValue struct {
	Tables []string `json:"tables" yaml:"tables"`
}

func (TimeoutValue) Type() PolicyType           { return TypeStatementTimeout }
func (MaxRowsValue) Type() PolicyType           { return TypeMaxRows }
func (AutoLimitValue) Type() PolicyType         { return TypeAutoLimit }
func (v BlockStatementsValue) Type() PolicyType { return v.Class }
func (RequireWhereValue) Type() PolicyType      { return TypeRequireWhereClause }
func (SensitiveTablesValue) Type() PolicyType   { return TypeBlockSensitiveTables }
func (SensitiveColumnsValue) Type() PolicyType  { return TypeBlockSensitiveColumns }
func (PIIMaskingValue) Type() PolicyType        { return TypePIIMasking }
func (ComplexityValue) Type() PolicyType        { return TypeQueryComplexityLimit }
func (ConnectionLimitValue) Type() PolicyType   { return TypeConnectionLimit }
func (v IPListValue) Type() PolicyType          { return v.Kind }
func (TimeRestrictionValue) Type() PolicyType   { return TypeTimeRestriction }
func (SchemaAccessValue) Type() PolicyType      { return TypeSchemaAccess }
func (TableAccessValue) Type() PolicyType       { return TypeTableAccess }

func (v TimeoutValue) validate() error {
	if v.TimeoutSeconds <= 0 {
		return errors.New("statement timeout policy requires positive timeout_seconds")
	}
	return nil
}

func (v MaxRowsValue) validate() error {
	if v.MaxRows <= 0 {
		return errors.New("max rows policy requires positive max_rows")
	}
	return nil
}

func (v AutoLimitValue) validate() error {
	if v.Limit <= 0 {
		return errors.New("auto limit policy requires positive limit")
	}
	return nil
}

func (v BlockStatementsValue) validate() error {
	var known func(string) bool
	var class string
	switch v.Class {
	case TypeBlockDDL:
		known, class = sqlscan.IsDDLKeyword, "DDL"
	case TypeBlockDML:
		known, class = sqlscan.IsDMLKeyword, "DML"
	case TypeBlockDCL:
		known, class = sqlscan.IsDCLKeyword, "DCL"
	default:
		return fmt.Errorf("blocked statements value has invalid class %q", v.Class)
	}
	if len(v.BlockedStatements) == 0 {
		return fmt.Errorf("block %s policy requires a non-empty blocked_statements list", class)
	}
	var errs []error
	for _, s := range v.BlockedStatements {
		if !known(s) {
			errs = append(errs, fmt.Errorf("%q is not a %s keyword", s, class))
		}
	}
	return errors.Join(errs...)
}

func (v RequireWhereValue) validate() error {
	var errs []error
	for _, s := range v.RequiredFor {
		switch strings.ToUpper(s) {
		case "UPDATE", "DELETE":
		default:
			errs = append(errs, fmt.Errorf("required_for entry %q must be UPDATE or DELETE", s))
		}
	}
	return errors.Join(errs...)
}

// statements returns RequiredFor, defaulting to UPDATE and DELETE.
func (v RequireWhereValue) statements() []string {
	if len(v.RequiredFor) == 0 {
		return []string{"UPDATE", "DELETE"}
	}
	return v.RequiredFor
}

func (v SensitiveTablesValue) validate() error {
	if v.Tables == nil {
		return errors.New("block sensitive tables policy requires tables list")
	}
	return nil
}

func (v SensitiveColumnsValue) validate() error {
	if v.Columns == nil {
		return errors.New("block sensitive columns policy requires columns list")
	}
	return nil
}

func (v PIIMaskingValue) validate() error {
	if v.Patterns == nil {
		return errors.New("PII masking policy requires patterns list")
	}
	var errs []error
	for i, p := range v.Patterns {
		if p.ColumnPattern == "" {
			errs = append(errs, fmt.Errorf("patterns[%d]: column_pattern is required", i))
			continue
		}
		if _, err := regexp.Compile(p.ColumnPattern); err != nil {
			errs = append(errs, fmt.Errorf("patterns[%d]: invalid column_pattern: %v", i, err))
		}
	}
	return errors.Join(errs...)
}

func (v ComplexityValue) validate() error {
	if v.MaxComplexity <= 0 || v.MaxComplexity > 1 {
		return errors.New("query complexity policy requires max_complexity in (0, 1]")
	}
	return nil
}

func (v ConnectionLimitValue) validate() error {
	if v.MaxConnections <= 0 {
		return errors.New("connection limit policy requires positive max_connections")
	}
	return nil
}

func (v IPListValue) validate() error {
	if v.Kind != TypeIPWhitelist && v.Kind != TypeIPBlacklist {
		return fmt.Errorf("ip list value has invalid kind %q", v.Kind)
	}
	if len(v.Addresses) == 0 {
		return errors.New("ip list policy requires a non-empty addresses list")
	}
	var errs []error
	for _, a := range v.Addresses {
		if _, err := parseIPNet(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v TimeRestrictionValue) validate() error {
	var errs []error
	if v.StartHour < 0 || v.StartHour > 23 {
		errs = append(errs, errors.New("start_hour must be in [0, 24)"))
	}
	if v.EndHour < 0 || v.EndHour > 23 {
		errs = append(errs, errors.New("end_hour must be in [0, 24)"))
	}
	for _, d := range v.Days {
		if _, ok := weekdays[strings.ToUpper(d)]; !ok {
			errs = append(errs, fmt.Errorf("invalid day %q, expected MON..SUN", d))
		}
	}
	if v.Timezone != "" {
		if _, err := time.LoadLocation(v.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone %q: %v", v.Timezone, err))
		}
	}
	return errors.Join(errs...)
}

func (v SchemaAccessValue) validate() error {
	if len(v.Schemas) == 0 {
		return errors.New("schema access policy requires a non-empty schemas list")
	}
	return nil
}

func (v TableAccessValue) validate() error {
	if len(v.Tables) == 0 {
		return errors.New("table access policy requires a non-empty tables list")
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday, "WED": time.Wednesday,
	"THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

// parseIPNet accepts "10.0.0.1" or "10.0.0.0/8" style entries.
func parseIPNet(s string) (*net.IPNet, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q", s)
		}
		return n, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP address %q", s)
	}
	bits := 128
	if ip4 := ip.To4(); ip4 != nil {
		ip, bits = ip4, 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// newValue returns an empty value for t, ready to be decoded into.
func newValue(t PolicyType) (Value, error) {
	switch t {
	case TypeStatementTimeout:
		return &TimeoutValue{}, nil
	case TypeMaxRows:
		return &MaxRowsValue{}, nil
	case TypeAutoLimit:
		return &AutoLimitValue{}, nil
	case TypeBlockDDL, TypeBlockDML, TypeBlockDCL:
		return &BlockStatementsValue{Class: t}, nil
	case TypeRequireWhereClause:
		return &RequireWhereValue{}, nil
	case TypeBlockSensitiveTables:
		return &SensitiveTablesValue{}, nil
	case TypeBlockSensitiveColumns:
		return &SensitiveColumnsValue{}, nil
	case TypePIIMasking:
		return &PIIMaskingValue{}, nil
	case TypeQueryComplexityLimit:
		return &ComplexityValue{}, nil
	case TypeConnectionLimit:
		return &ConnectionLimitValue{}, nil
	case TypeIPWhitelist, TypeIPBlacklist:
		return &IPListValue{Kind: t}, nil
	case TypeTimeRestriction:
		return &TimeRestrictionValue{}, nil
	case TypeSchemaAccess:
		return &SchemaAccessValue{}, nil
	case TypeTableAccess:
		return &TableAccessValue{}, nil
	default:
		return nil, fmt.Errorf("invalid policy type: %q", t)
	}
}

// deref turns the pointer returned by newValue back into a value type so
// every Value in a Policy is a plain struct.
func deref(v Value) Value {
	switch x := v.(type) {
	case *TimeoutValue:
		return *x
	case *MaxRowsValue:
		return *x
	case *AutoLimitValue:
		return *x
	case *BlockStatementsValue:
		return *x
	case *RequireWhereValue:
		return *x
	case *SensitiveTablesValue:
		return *x
	case *SensitiveColumnsValue:
		return *x
	case *PIIMaskingValue:
		return *x
	case *ComplexityValue:
		return *x
	case *ConnectionLimitValue:
		return *x
	case *IPListValue:
		return *x
	case *TimeRestrictionValue:
		return *x
	case *SchemaAccessValue:
		return *x
	case *TableAccessValue:
		return *x
	default:
		return v
	}
}

// DecodeValue parses the JSON configuration of a policy of type t and
// validates it. Unknown keys are ignored; keys of the wrong JSON type fail.
func DecodeValue(t PolicyType, raw []byte) (Value, error) {
	ptr, err := newValue(t)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, ptr); err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", t, err)
	}
	v := deref(ptr)
	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeValueMap is DecodeValue for an already parsed document, such as a
// YAML mapping.
func DecodeValueMap(t PolicyType, m map[string]any) (Value, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", t, err)
	}
	return DecodeValue(t, raw)
}

// EncodeValue renders v as its JSON configuration. A nil value encodes as {}.
func EncodeValue(v Value) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s value: %w", v.Type(), err)
	}
	return b, nil
}
