package types

import "fmt"

// ConfigError means the run could not even start: bad month, status or country.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// ConnectivityError wraps a failed gateway call. Fatal before period listing,
// scoped to the failing period afterwards.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("warehouse unreachable during %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// SchemaMismatchError means the sink rejected rows incompatible with an existing
// table schema.
type SchemaMismatchError struct {
	Table  string
	Detail string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch on table %s: %s", e.Table, e.Detail)
}

// PeriodError captures any failure while extracting, transforming or loading one
// period. It never aborts the run; the pipeline records it and moves on.
type PeriodError struct {
	PeriodID string
	Stage    string // extract | transform | load
	Err      error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("period %s failed during %s: %v", e.PeriodID, e.Stage, e.Err)
}

func (e *PeriodError) Unwrap() error { return e.Err }

// DataQualityIssue downgrades rows without failing anything. It is a value carried
// in transform output, not an error.
type DataQualityIssue struct {
	PeriodID string
	Kind     string
	Detail   string
	Count    int
}

func (i DataQualityIssue) String() string {
	return fmt.Sprintf("[%s] %s: %s (%d rows)", i.PeriodID, i.Kind, i.Detail, i.Count)
}
