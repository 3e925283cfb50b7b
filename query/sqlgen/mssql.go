package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/query"
)

// Placeholder prefixes used by the MERGE statement. Values are bound in the
// order conditions, update fields, insert fields.
const (
	ConditionPlaceholder = "db_condition_placeholder_"
	MergePlaceholder     = "db_merge_placeholder_"
)

// Field is a column name paired with a bound value.
type Field struct {
	Name  string
	Value interface{}
}

// Expression is a column assigned a raw SQL expression in the UPDATE branch.
type Expression struct {
	Name string
	SQL  string
}

// MergeSpec describes one upsert. Fields keep their caller order so the
// generated placeholders are deterministic.
type MergeSpec struct {
	Table string
	// Conditions correlate target and source rows. At least one is required.
	Conditions   []Field
	UpdateFields []Field
	// ExpressionFields win over UpdateFields with the same name.
	ExpressionFields []Expression
	InsertFields     []Field
	// IdentityInsert enables explicit values for an identity column for the
	// duration of the statement. The setting is switched off again after the
	// MERGE since a session allows it on one table at a time.
	IdentityInsert bool
}

// effectiveUpdates returns the update fields not shadowed by an expression.
func (s *MergeSpec) effectiveUpdates() []Field {
	if len(s.ExpressionFields) == 0 {
		return s.UpdateFields
	}
	shadowed := make(map[string]bool, len(s.ExpressionFields))
	for _, e := range s.ExpressionFields {
		shadowed[e.Name] = true
	}
	out := make([]Field, 0, len(s.UpdateFields))
	for _, f := range s.UpdateFields {
		if !shadowed[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks that s can produce a statement.
func (s *MergeSpec) Validate() error {
	if sanitize(s.Table) == "" {
		return &query.InvalidSpecError{Table: s.Table, Reason: "no table"}
	}
	if len(s.Conditions) == 0 {
		return &query.InvalidSpecError{Table: s.Table, Reason: "no conditions"}
	}
	return nil
}

// Arguments returns the bind parameters in placeholder generation order:
// conditions, then update values (expression fields excluded), then insert values.
func (s *MergeSpec) Arguments() []query.Arg {
	args := make([]query.Arg, 0, len(s.Conditions)+len(s.UpdateFields)+len(s.InsertFields))
	for i, c := range s.Conditions {
		args = append(args, query.Arg{Name: fmt.Sprintf("%s%d", ConditionPlaceholder, i), Value: c.Value})
	}
	n := 0
	for _, f := range s.effectiveUpdates() {
		args = append(args, query.Arg{Name: fmt.Sprintf("%s%d", MergePlaceholder, n), Value: f.Value})
		n++
	}
	for _, f := range s.InsertFields {
		args = append(args, query.Arg{Name: fmt.Sprintf("%s%d", MergePlaceholder, n), Value: f.Value})
		n++
	}
	return args
}

// BuildMerge generates a T-SQL MERGE statement for spec. The statement's
// only result is the OUTPUT $action column, holding UPDATE or INSERT.
func BuildMerge(spec *MergeSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	table := Quote(spec.Table)
	var parts []string

	if spec.IdentityInsert {
		parts = append(parts, fmt.Sprintf("SET IDENTITY_INSERT %s ON;", table))
	}
	parts = append(parts, fmt.Sprintf("MERGE INTO %s _target", table))

	// USING (source row) and ON
	source := make([]string, len(spec.Conditions))
	on := make([]string, len(spec.Conditions))
	for i, c := range spec.Conditions {
		col := Quote(c.Name)
		source[i] = fmt.Sprintf(":%s%d AS %s", ConditionPlaceholder, i, col)
		on[i] = fmt.Sprintf("_target.%s = _source.%s", col, col)
	}
	parts = append(parts, fmt.Sprintf("USING (SELECT %s) _source", strings.Join(source, ", ")))
	parts = append(parts, "ON "+strings.Join(on, " AND "))

	// WHEN MATCHED
	n := 0
	var set []string
	for _, e := range spec.ExpressionFields {
		set = append(set, fmt.Sprintf("%s=%s", Quote(e.Name), e.SQL))
	}
	for _, f := range spec.effectiveUpdates() {
		set = append(set, fmt.Sprintf("%s=:%s%d", Quote(f.Name), MergePlaceholder, n))
		n++
	}
	if len(set) > 0 {
		parts = append(parts, "WHEN MATCHED THEN UPDATE SET "+strings.Join(set, ", "))
	}

	// WHEN NOT MATCHED
	if len(spec.InsertFields) > 0 {
		cols := make([]string, len(spec.InsertFields))
		vals := make([]string, len(spec.InsertFields))
		for i, f := range spec.InsertFields {
			cols[i] = Quote(f.Name)
			vals[i] = fmt.Sprintf(":%s%d", MergePlaceholder, n)
			n++
		}
		parts = append(parts, fmt.Sprintf("WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
			strings.Join(cols, ", "), strings.Join(vals, ", ")))
	} else {
		parts = append(parts, "WHEN NOT MATCHED THEN INSERT DEFAULT VALUES")
	}

	parts = append(parts, "OUTPUT $action;")
	if spec.IdentityInsert {
		parts = append(parts, fmt.Sprintf("SET IDENTITY_INSERT %s OFF;", table))
	}

	return strings.Join(parts, "\n"), nil
}
