// Package records holds query results: a Record is one row, a Collection lazily pulls rows from
// a database cursor and caches them so they can be iterated more than once.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNoSuchField is returned by Record.Get when no column has the requested name
	ErrNoSuchField = errors.New("Record contains no such field")
	// ErrDuplicateField is returned by Record.Get when more than one column has the requested name
	ErrDuplicateField = errors.New("Record contains multiple fields with that name")
	// ErrIndexOutOfRange is returned for positional lookups past the end of a Record or Collection
	ErrIndexOutOfRange = errors.New("Index out of range")
	// ErrMultipleRows is returned by Collection.One when the result has more than one row
	ErrMultipleRows = errors.New("Collection contained more than one row")
)

// NullString is how ValuesStr renders a NULL value
const NullString = "NULL"

// Record - a single row of a query result. Keys are the result's column names, in order. Column
// names are not necessarily unique (SELECT a.id, b.id ...).
type Record struct {
	keys   []string
	values []interface{}
}

// NewRecord builds a Record. It panics if there are not as many values as keys.
func NewRecord(keys []string, values []interface{}) *Record {
	if len(keys) != len(values) {
		panic(fmt.Sprintf("records: %d keys but %d values", len(keys), len(values)))
	}
	return &Record{keys: keys, values: values}
}

// Keys returns the column names of the row.
func (r *Record) Keys() []string {
	return r.keys
}

// Values returns the values of the row.
func (r *Record) Values() []interface{} {
	return r.values
}

// ValuesStr returns the values of the row formatted as strings. NULL becomes NullString and byte
// slices are hex encoded.
func (r *Record) ValuesStr() []string {
	result := make([]string, len(r.values))
	for i, value := range r.values {
		result[i] = formatValue(value)
	}
	return result
}

// Index returns the i-th value of the row.
func (r *Record) Index(i int) (interface{}, error) {
	if i < 0 || i >= len(r.values) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, record has %d fields", i, len(r.values))
	}
	return r.values[i], nil
}

// Get returns the value of the column named key.
func (r *Record) Get(key string) (interface{}, error) {
	index := -1
	for i, k := range r.keys {
		if k != key {
			continue
		}
		if index != -1 {
			return nil, errors.Wrap(ErrDuplicateField, key)
		}
		index = i
	}
	if index == -1 {
		return nil, errors.Wrap(ErrNoSuchField, key)
	}
	return r.values[index], nil
}

// GetDefault is Get, returning defaultValue when the lookup fails.
func (r *Record) GetDefault(key string, defaultValue interface{}) interface{} {
	value, err := r.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

// AsMap returns the row as a map from column name to value. Later duplicate columns overwrite
// earlier ones.
func (r *Record) AsMap() map[string]interface{} {
	result := make(map[string]interface{}, len(r.keys))
	for i, key := range r.keys {
		result[key] = r.values[i]
	}
	return result
}

// MarshalJSON encodes the row as a JSON object with keys in column order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		encodedValue, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "encode field %s", key)
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) String() string {
	encoded, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<Record %v>", r.values)
	}
	return fmt.Sprintf("<Record %s>", encoded[1:len(encoded)-1])
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return NullString
	case []byte:
		return fmt.Sprintf("%x", v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
