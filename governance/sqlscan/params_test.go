package sqlscan

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tduhfajd/sql-guard/governance/gerror"
)

func TestValidateParameters(t *testing.T) {
	a := NewAnalyzer()
	sql := "SELECT * FROM users WHERE id = :id AND name = :name"

	t.Run("all bound", func(t *testing.T) {
		r, err := a.ValidateParameters(sql, map[string]any{"id": 7, "name": "alice"})
		if err != nil {
			t.Fatal(err)
		}
		if !r.Valid() {
			t.Errorf("report should be valid: %+v", r)
		}
		if r.Err() != nil {
			t.Errorf("Err() = %v, want nil", r.Err())
		}
	})

	t.Run("missing and unused", func(t *testing.T) {
		r, err := a.ValidateParameters(sql, map[string]any{"id": 7, "extra": "x"})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(r.Missing, []string{"name"}) {
			t.Errorf("Missing = %v, want [name]", r.Missing)
		}
		if !reflect.DeepEqual(r.Unused, []string{"extra"}) {
			t.Errorf("Unused = %v, want [extra]", r.Unused)
		}
		if got := r.Warnings(); len(got) != 1 || got[0] != "Unused parameter: extra" {
			t.Errorf("Warnings() = %v", got)
		}
		if !gerror.Is(r.Err(), gerror.KindMissingParameter) {
			t.Errorf("Err() kind = %v, want MISSING_PARAMETER", gerror.KindOf(r.Err()))
		}
	})

	t.Run("injected value", func(t *testing.T) {
		r, err := a.ValidateParameters(sql, map[string]any{"id": "1 OR 1=1", "name": "bob"})
		if err != nil {
			t.Fatal(err)
		}
		kinds := r.Injected["id"]
		if len(kinds) != 1 || kinds[0] != InjectionBooleanBased {
			t.Errorf("Injected[id] = %v, want [BOOLEAN_BASED]", kinds)
		}
		if r.Valid() {
			t.Error("report with injected value should not be valid")
		}
		if !gerror.Is(r.Err(), gerror.KindInjectionDetected) {
			t.Errorf("Err() kind = %v, want INJECTION_DETECTED", gerror.KindOf(r.Err()))
		}
		if got := r.Errors(); len(got) != 1 || got[0] != "SQL injection detected in parameter id" {
			t.Errorf("Errors() = %v", got)
		}
	})

	t.Run("unused values are not scanned", func(t *testing.T) {
		r, err := a.ValidateParameters(sql, map[string]any{"id": 1, "name": "x", "junk": "UNION SELECT"})
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Injected) != 0 {
			t.Errorf("Injected = %v, want none", r.Injected)
		}
	})
}

func TestValidateParameters_Length(t *testing.T) {
	a := NewAnalyzer(WithMaxParameterLength(5))

	r, err := a.ValidateParameters("SELECT * FROM t WHERE a = :a AND b = :b", map[string]any{
		"a": "héllo",
		"b": strings.Repeat("x", 6),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.TooLong, []string{"b"}) {
		t.Errorf("TooLong = %v, want [b]", r.TooLong)
	}
	if got := r.Errors(); len(got) != 1 || got[0] != "Parameter b value too long" {
		t.Errorf("Errors() = %v", got)
	}
}

func TestValidateParameters_Unparsable(t *testing.T) {
	_, err := NewAnalyzer().ValidateParameters("SELECT ':a", nil)
	if !gerror.Is(err, gerror.KindParse) {
		t.Errorf("error = %v, want parse error", err)
	}
}
