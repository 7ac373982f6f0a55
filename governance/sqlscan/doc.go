// Package sqlscan classifies SQL statements before they reach a database.
//
// The Analyzer tokenizes a statement and reports its structure:
//   - which DDL/DML/DCL keywords it uses
//   - whether it has a WHERE clause or a LIMIT
//   - the bound parameters it expects
//   - the tables and columns it references
//   - heuristic cost and complexity scores
//
// Injection detection runs on the raw text through a PatternDetector. The
// default detector is regex based and groups its patterns into six
// families (union, boolean, time, error, comment and function-call based).
// Detection is a heuristic: false positives and false negatives are both
// possible, and the detector can be swapped without touching callers.
//
// # Usage
//
//	analyzer := sqlscan.NewAnalyzer()
//	cls, err := analyzer.Analyze("SELECT id, email FROM users WHERE id = :id")
//	if err != nil {
//	    // malformed statement: reject
//	}
//	if cls.Injected() {
//	    // reject, cls.InjectionAttempts lists the families that matched
//	}
//
// # Configuration
//
// Environment variables read by ConfigFromEnv:
//   - SQLGUARD_DETECTOR_MODE: regex, off (default: regex)
//   - SQLGUARD_INJECTION_MODE: block, warn (default: block)
//   - SQLGUARD_MAX_PARAM_LENGTH: longest accepted string parameter (default: 1000)
package sqlscan
