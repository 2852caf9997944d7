// Package alerts builds the all-patients alert table: alert rows joined
// with their condition, severities tidied and decorated for display.
package alerts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mskdash/mskdash/internal/platform/table"
)

// ErrMissingColumns means a required field could not be resolved. The
// table must not be shown partially.
var ErrMissingColumns = errors.New("missing required columns for the alerts table")

// RequiredFields are the five fields of the display table, in column order.
var RequiredFields = []table.Field{
	table.FieldPatientName,
	table.FieldPatientID,
	table.FieldCondition,
	table.FieldAlert,
	table.FieldReason,
}

// MissingColumnsError names the fields that stayed unresolved after the
// demographics join was attempted.
type MissingColumnsError struct {
	Fields []table.Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s: %s (needed: patient name, patient ID, condition, overall alert, overall reason)",
		ErrMissingColumns, strings.Join(names, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// Build produces the alert table. When the alerts table has no condition
// column, the condition is taken from demographics by a left join on the
// trimmed patient identifier; demographics is first reduced to one row per
// identifier.
func Build(alertsTbl, demographics *table.Table, rules *table.Rules) (*Table, error) {
	if alertsTbl == nil {
		return nil, errors.New("alerts table is not loaded")
	}

	cols := make(map[table.Field]string, len(RequiredFields))
	for _, f := range RequiredFields {
		if h, ok := rules.Resolve(alertsTbl, f); ok {
			cols[f] = h
		}
	}

	var conditionOf func(row []string) string
	if h, ok := cols[table.FieldCondition]; ok {
		idx := alertsTbl.Index(h)
		conditionOf = func(row []string) string { return row[idx] }
	} else if pid, ok := cols[table.FieldPatientID]; ok && demographics != nil {
		if lookup, ok := conditionLookup(demographics, rules); ok {
			idx := alertsTbl.Index(pid)
			conditionOf = func(row []string) string { return lookup[strings.TrimSpace(row[idx])] }
			cols[table.FieldCondition] = "(demographics)"
		}
	}

	var missing []table.Field
	for _, f := range RequiredFields {
		if _, ok := cols[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Fields: missing}
	}

	nameIdx := alertsTbl.Index(cols[table.FieldPatientName])
	idIdx := alertsTbl.Index(cols[table.FieldPatientID])
	alertIdx := alertsTbl.Index(cols[table.FieldAlert])
	reasonIdx := alertsTbl.Index(cols[table.FieldReason])

	out := &Table{Rows: make([]Row, 0, len(alertsTbl.Rows))}
	for _, row := range alertsTbl.Rows {
		severity := Tidy(row[alertIdx])
		out.Rows = append(out.Rows, Row{
			PatientName: row[nameIdx],
			PatientID:   row[idIdx],
			Condition:   conditionOf(row),
			Alert:       Decorate(severity),
			Reason:      row[reasonIdx],
			Severity:    severity,
		})
	}
	return out, nil
}

// conditionLookup maps trimmed patient identifier to condition, keeping the
// first demographics row per identifier so the join cannot fan out.
func conditionLookup(demographics *table.Table, rules *table.Rules) (map[string]string, bool) {
	pid, ok := rules.Resolve(demographics, table.FieldPatientID)
	if !ok {
		return nil, false
	}
	cond, ok := rules.Resolve(demographics, table.FieldCondition)
	if !ok {
		return nil, false
	}
	pidIdx, condIdx := demographics.Index(pid), demographics.Index(cond)

	lookup := make(map[string]string, len(demographics.Rows))
	for _, row := range demographics.Rows {
		id := strings.TrimSpace(row[pidIdx])
		if _, seen := lookup[id]; seen {
			continue
		}
		lookup[id] = row[condIdx]
	}
	return lookup, true
}
