package executor

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/satishbabariya/sqlsrv-go/query/engine"
)

// FetchMode is the shape of rows produced by Statement.FetchAll.
type FetchMode int

const (
	// FetchAssoc yields map[string]interface{} keyed by column name.
	FetchAssoc FetchMode = iota
	// FetchNum yields []interface{} in column order.
	FetchNum
	// FetchColumn yields the first column's value.
	FetchColumn
)

// Statement is an executed statement whose rows have not been read yet.
// Fetch methods return nil once the rows are exhausted; the statement then
// closes itself.
type Statement struct {
	rows    engine.Rows
	columns []string
	mode    FetchMode
	fail    func(error) error
	done    bool
}

func newStatement(rows engine.Rows, mode FetchMode, fail func(error) error) *Statement {
	return &Statement{rows: rows, mode: mode, fail: fail}
}

// Columns returns the result column names.
func (s *Statement) Columns() ([]string, error) {
	if s.columns != nil {
		return s.columns, nil
	}
	cols, err := s.rows.Columns()
	if err != nil {
		return nil, s.fail(err)
	}
	s.columns = cols
	return cols, nil
}

// Close releases the rows.
func (s *Statement) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.rows.Close()
}

// next scans the next row. It returns nil at the end of the rows.
func (s *Statement) next() ([]interface{}, error) {
	if s.done {
		return nil, nil
	}
	cols, err := s.Columns()
	if err != nil {
		return nil, err
	}
	if !s.rows.Next() {
		err := s.rows.Err()
		s.Close()
		if err != nil {
			return nil, s.fail(err)
		}
		return nil, nil
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.Close()
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return values, nil
}

// FetchNum returns the next row as values in column order.
func (s *Statement) FetchNum() ([]interface{}, error) {
	return s.next()
}

// FetchAssoc returns the next row keyed by column name.
func (s *Statement) FetchAssoc() (map[string]interface{}, error) {
	values, err := s.next()
	if values == nil || err != nil {
		return nil, err
	}
	return s.assoc(values), nil
}

func (s *Statement) assoc(values []interface{}) map[string]interface{} {
	row := make(map[string]interface{}, len(values))
	for i, col := range s.columns {
		row[col] = values[i]
	}
	return row
}

// FetchField returns column index of the next row.
func (s *Statement) FetchField(index int) (interface{}, error) {
	values, err := s.next()
	if values == nil || err != nil {
		return nil, err
	}
	if index < 0 || index >= len(values) {
		return nil, fmt.Errorf("column index %d out of range (%d columns)", index, len(values))
	}
	return values[index], nil
}

// FetchCol returns column index of every remaining row.
func (s *Statement) FetchCol(index int) ([]interface{}, error) {
	var out []interface{}
	for {
		v, err := s.next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return out, nil
		}
		if index < 0 || index >= len(v) {
			s.Close()
			return nil, fmt.Errorf("column index %d out of range (%d columns)", index, len(v))
		}
		out = append(out, v[index])
	}
}

// FetchAll returns every remaining row in the statement's fetch mode.
func (s *Statement) FetchAll() ([]interface{}, error) {
	var out []interface{}
	for {
		v, err := s.next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return out, nil
		}
		switch s.mode {
		case FetchNum:
			out = append(out, v)
		case FetchColumn:
			if len(v) == 0 {
				out = append(out, nil)
			} else {
				out = append(out, v[0])
			}
		default:
			out = append(out, s.assoc(v))
		}
	}
}

// FetchAllKeyed maps column key to column value for every remaining row.
// Keys are formatted with fmt.Sprint; later rows win.
func (s *Statement) FetchAllKeyed(key, value int) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for {
		v, err := s.next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return out, nil
		}
		if key >= len(v) || value >= len(v) || key < 0 || value < 0 {
			s.Close()
			return nil, fmt.Errorf("column index out of range (%d columns)", len(v))
		}
		out[fmt.Sprint(v[key])] = v[value]
	}
}

// FetchAllAssoc returns every remaining row keyed by the value of field.
func (s *Statement) FetchAllAssoc(field string) (map[string]map[string]interface{}, error) {
	out := make(map[string]map[string]interface{})
	for {
		v, err := s.next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return out, nil
		}
		row := s.assoc(v)
		k, ok := row[field]
		if !ok {
			s.Close()
			return nil, fmt.Errorf("no column %q in result", field)
		}
		out[fmt.Sprint(k)] = row
	}
}

// FetchObject scans the next row into the struct dest points to. Columns are
// matched to fields by `db` tag, else by the snake_case field name. It
// reports false at the end of the rows.
func (s *Statement) FetchObject(dest interface{}) (bool, error) {
	values, err := s.next()
	if values == nil || err != nil {
		return false, err
	}
	return true, mapValuesToStruct(s.columns, values, dest)
}

// FetchAllObjects appends every remaining row to the slice dest points to.
// The element type may be a struct or a pointer to a struct.
func (s *Statement) FetchAllObjects(dest interface{}) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Slice {
		s.Close()
		return fmt.Errorf("dest must be a pointer to slice")
	}
	sliceValue := destValue.Elem()
	elementType := sliceValue.Type().Elem()
	isPtr := elementType.Kind() == reflect.Ptr
	if isPtr {
		elementType = elementType.Elem()
	}

	for {
		element := reflect.New(elementType)
		ok, err := s.FetchObject(element.Interface())
		if err != nil {
			s.Close()
			return err
		}
		if !ok {
			break
		}
		if isPtr {
			sliceValue = reflect.Append(sliceValue, element)
		} else {
			sliceValue = reflect.Append(sliceValue, element.Elem())
		}
	}
	destValue.Elem().Set(sliceValue)
	return nil
}

// mapValuesToStruct maps database values to struct fields
func mapValuesToStruct(columns []string, values []interface{}, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct")
	}
	v = v.Elem()

	t := v.Type()
	columnMap := make(map[string]int, len(columns))
	for i, col := range columns {
		columnMap[strings.ToLower(col)] = i
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		columnName := field.Tag.Get("db")
		if columnName == "-" {
			continue
		}
		if columnName == "" {
			columnName = toSnakeCase(field.Name)
		}

		colIndex, ok := columnMap[strings.ToLower(columnName)]
		if !ok {
			continue
		}

		value := values[colIndex]
		if value == nil {
			fieldValue.Set(reflect.Zero(fieldValue.Type()))
			continue
		}

		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}

	return nil
}

// setFieldValue sets a struct field value from a database value
func setFieldValue(fieldValue reflect.Value, value interface{}) error {
	fieldType := fieldValue.Type()

	if fieldType.Kind() == reflect.Ptr {
		elemValue := reflect.New(fieldType.Elem()).Elem()
		if err := setFieldValue(elemValue, value); err != nil {
			return err
		}
		fieldValue.Set(elemValue.Addr())
		return nil
	}

	valueValue := reflect.ValueOf(value)
	valueType := valueValue.Type()

	// drivers return text as []byte
	if b, ok := value.([]byte); ok && fieldType.Kind() == reflect.String {
		fieldValue.SetString(string(b))
		return nil
	}

	if valueType.AssignableTo(fieldType) {
		fieldValue.Set(valueValue)
		return nil
	}

	if valueType.ConvertibleTo(fieldType) && valueType.Kind() != reflect.String {
		fieldValue.Set(valueValue.Convert(fieldType))
		return nil
	}

	return fmt.Errorf("cannot convert %s to %s", valueType, fieldType)
}

// toSnakeCase converts PascalCase to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
