package records

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

// Rows is the cursor a Collection reads from. *sql.Rows implements it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Collection - the rows of a query result. Rows are pulled from the cursor only when they are
// needed and are cached, so a Collection may be iterated, indexed and counted repeatedly.
type Collection struct {
	mu      sync.Mutex
	rows    Rows
	keys    []string
	fetched []*Record
	pending bool
	err     error
}

// FromRows wraps a cursor in a Collection. The Collection closes the cursor once it is exhausted.
func FromRows(rows Rows) (*Collection, error) {
	keys, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "read result columns")
	}
	return &Collection{rows: rows, keys: keys, pending: true}, nil
}

// NewCollection builds an already exhausted Collection from in-memory records.
func NewCollection(keys []string, records []*Record) *Collection {
	return &Collection{keys: keys, fetched: records}
}

// Keys returns the column names of the result.
func (c *Collection) Keys() []string {
	return c.keys
}

// Len returns the number of rows fetched so far. Call All first for the total.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fetched)
}

// Pending reports whether the cursor may still hold rows that have not been fetched.
func (c *Collection) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// fetchUntil pulls rows from the cursor until at least n rows are cached or the cursor is done.
// Byte slices holding valid UTF-8 are stored as strings; other byte slices (BLOBs) are kept as
// []byte. c.mu must be held.
func (c *Collection) fetchUntil(n int) error {
	for c.pending && (n < 0 || len(c.fetched) < n) {
		if !c.rows.Next() {
			c.pending = false
			c.err = c.rows.Err()
			closeErr := c.rows.Close()
			if c.err == nil {
				c.err = closeErr
			}
			break
		}
		values := make([]interface{}, len(c.keys))
		dest := make([]interface{}, len(c.keys))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := c.rows.Scan(dest...); err != nil {
			c.pending = false
			c.err = errors.Wrapf(err, "scan row %d", len(c.fetched))
			c.rows.Close()
			break
		}
		for i, value := range values {
			if b, ok := value.([]byte); ok && utf8.Valid(b) {
				values[i] = string(b)
			}
		}
		c.fetched = append(c.fetched, NewRecord(c.keys, values))
	}
	return c.err
}

// Each calls handler on every row in order, fetching rows as it goes. Iteration stops at the
// first error returned by handler.
func (c *Collection) Each(handler func(index int, record *Record) error) error {
	for i := 0; ; i++ {
		record, err := c.At(i)
		if errors.Is(err, ErrIndexOutOfRange) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := handler(i, record); err != nil {
			return err
		}
	}
}

// At returns the i-th row, fetching as many rows as needed.
func (c *Collection) At(i int) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d", i)
	}
	if err := c.fetchUntil(i + 1); err != nil {
		return nil, err
	}
	if i >= len(c.fetched) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, collection has %d rows", i, len(c.fetched))
	}
	return c.fetched[i], nil
}

// All fetches every remaining row and returns all rows.
func (c *Collection) All() ([]*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fetchUntil(-1); err != nil {
		return nil, err
	}
	result := make([]*Record, len(c.fetched))
	copy(result, c.fetched)
	return result, nil
}

// AsMaps returns every row as a map from column name to value.
func (c *Collection) AsMaps() ([]map[string]interface{}, error) {
	all, err := c.All()
	if err != nil {
		return nil, err
	}
	result := make([]map[string]interface{}, len(all))
	for i, record := range all {
		result[i] = record.AsMap()
	}
	return result, nil
}

// First returns the first row, or defaultRecord if the result is empty.
func (c *Collection) First(defaultRecord *Record) (*Record, error) {
	record, err := c.At(0)
	if errors.Is(err, ErrIndexOutOfRange) {
		return defaultRecord, nil
	}
	return record, err
}

// One returns the only row, or defaultRecord if the result is empty. It returns ErrMultipleRows
// if there is more than one row.
func (c *Collection) One(defaultRecord *Record) (*Record, error) {
	_, err := c.At(1)
	if err == nil {
		return nil, ErrMultipleRows
	}
	if !errors.Is(err, ErrIndexOutOfRange) {
		return nil, err
	}
	return c.First(defaultRecord)
}

// Scalar returns the first column of the only row, or defaultValue if the result is empty.
func (c *Collection) Scalar(defaultValue interface{}) (interface{}, error) {
	record, err := c.One(nil)
	if err != nil {
		return nil, err
	}
	if record == nil || len(record.values) == 0 {
		return defaultValue, nil
	}
	return record.values[0], nil
}

// Close releases the cursor. Rows already fetched remain available.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return nil
	}
	c.pending = false
	return c.rows.Close()
}

func (c *Collection) String() string {
	return fmt.Sprintf("<Collection size=%d pending=%t>", c.Len(), c.Pending())
}
