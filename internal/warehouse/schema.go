package warehouse

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// column is one inferred output column.
type column struct {
	Name    string
	SQLType string
}

var timeType = reflect.TypeOf(time.Time{})

// inferSchema derives the column list from a slice of row structs. Embedded
// structs (the dimension key) are flattened in declaration order, so the column
// order is stable across runs.
func inferSchema(rows any) ([]column, reflect.Value, error) {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return nil, reflect.Value{}, fmt.Errorf("rows must be a slice, got %T", rows)
	}
	elem := v.Type().Elem()
	if elem.Kind() != reflect.Struct {
		return nil, reflect.Value{}, fmt.Errorf("rows must be a slice of structs, got %T", rows)
	}
	cols, err := columnsOf(elem)
	if err != nil {
		return nil, reflect.Value{}, err
	}
	return cols, v, nil
}

func columnsOf(t reflect.Type) ([]column, error) {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != timeType {
			nested, err := columnsOf(f.Type)
			if err != nil {
				return nil, err
			}
			cols = append(cols, nested...)
			continue
		}
		sqlType, err := sqlTypeOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		cols = append(cols, column{Name: snakeCase(f.Name), SQLType: sqlType})
	}
	return cols, nil
}

func sqlTypeOf(t reflect.Type) (string, error) {
	if t.Kind() == reflect.Pointer {
		return sqlTypeOf(t.Elem())
	}
	if t == timeType {
		return "timestamptz", nil
	}
	switch t.Kind() {
	case reflect.String:
		return "text", nil
	case reflect.Bool:
		return "boolean", nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "bigint", nil
	case reflect.Float32, reflect.Float64:
		return "double precision", nil
	default:
		return "", fmt.Errorf("unsupported column type %s", t)
	}
}

// rowValues extracts one row's values in the same flattened order as columnsOf.
func rowValues(row reflect.Value) []any {
	var vals []any
	t := row.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != timeType {
			vals = append(vals, rowValues(row.Field(i))...)
			continue
		}
		vals = append(vals, fieldValue(row.Field(i)))
	}
	return vals
}

func fieldValue(v reflect.Value) any {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return nil
		}
		return t
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		return v.Interface()
	}
}

// snakeCase converts an exported field name to its column name:
// TotalInteractions -> total_interactions, CustomerID -> customer_id.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
