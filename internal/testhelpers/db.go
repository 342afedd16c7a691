package testhelpers

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBCall records one statement issued against a FakeDB.
type DBCall struct {
	Method string // "Exec", "Query" or "QueryRow"
	SQL    string
	Args   []any
}

// FakeDB satisfies the Querier interfaces of the store packages without a
// live database. Behavior is supplied through the *Func fields; a nil
// field yields an empty result. Every call is recorded in Calls.
type FakeDB struct {
	ExecFunc     func(sql string, args []any) (pgconn.CommandTag, error)
	QueryFunc    func(sql string, args []any) (pgx.Rows, error)
	QueryRowFunc func(sql string, args []any) pgx.Row

	mu    sync.Mutex
	Calls []DBCall
}

func (f *FakeDB) record(method, sql string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, DBCall{Method: method, SQL: sql, Args: args})
}

// CallsFor returns the recorded calls whose SQL contains the fragment
func (f *FakeDB) CallsFor(fragment string) []DBCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DBCall
	for _, c := range f.Calls {
		if fragment == "" || strings.Contains(c.SQL, fragment) {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.record("Exec", sql, args)
	if f.ExecFunc != nil {
		return f.ExecFunc(sql, args)
	}
	return pgconn.CommandTag{}, nil
}

func (f *FakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record("Query", sql, args)
	if f.QueryFunc != nil {
		return f.QueryFunc(sql, args)
	}
	return NewFakeRows(nil), nil
}

func (f *FakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.record("QueryRow", sql, args)
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(sql, args)
	}
	return ErrRow(pgx.ErrNoRows)
}

// ==================== Rows ====================

// FakeRows implements pgx.Rows over an in-memory value grid
type FakeRows struct {
	rows    [][]any
	idx     int
	closed  bool
	scanErr error
	rowsErr error
}

// NewFakeRows builds rows from a grid; each inner slice is one row in
// column order.
func NewFakeRows(rows [][]any) *FakeRows {
	return &FakeRows{rows: rows, idx: -1}
}

// FailRowsAfter makes Err() report err once iteration finishes, the way a
// connection dropped mid-result-set surfaces in pgx.
func (r *FakeRows) FailRowsAfter(err error) *FakeRows {
	r.rowsErr = err
	return r
}

func (r *FakeRows) Close() { r.closed = true }

func (r *FakeRows) Err() error { return r.rowsErr }

func (r *FakeRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.rows)
}

func (r *FakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if r.idx < 0 || r.idx >= len(r.rows) {
		return fmt.Errorf("testhelpers: Scan called without Next")
	}
	return assignRow(r.rows[r.idx], dest)
}

func (r *FakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *FakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *FakeRows) Values() ([]any, error) { return nil, nil }

func (r *FakeRows) RawValues() [][]byte { return nil }

func (r *FakeRows) Conn() *pgx.Conn { return nil }

// ==================== Row ====================

// FakeRow implements pgx.Row for a single result
type FakeRow struct {
	values []any
	err    error
}

// NewFakeRow builds a row whose Scan assigns the given column values
func NewFakeRow(values ...any) *FakeRow {
	return &FakeRow{values: values}
}

// ErrRow builds a row whose Scan returns err
func ErrRow(err error) *FakeRow {
	return &FakeRow{err: err}
}

func (r *FakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignRow(r.values, dest)
}

// ==================== Scan plumbing ====================

func assignRow(src []any, dest []any) error {
	if len(src) != len(dest) {
		return fmt.Errorf("testhelpers: scan expects %d destinations, got %d", len(src), len(dest))
	}
	for i := range src {
		if err := assignValue(dest[i], src[i]); err != nil {
			return fmt.Errorf("testhelpers: column %d: %w", i, err)
		}
	}
	return nil
}

func assignValue(dest, src any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer, got %T", dest)
	}
	ev := dv.Elem()

	if src == nil {
		ev.Set(reflect.Zero(ev.Type()))
		return nil
	}

	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(ev.Type()):
		ev.Set(sv)
	case sv.Type().ConvertibleTo(ev.Type()):
		ev.Set(sv.Convert(ev.Type()))
	case ev.Kind() == reflect.Ptr && sv.Type().AssignableTo(ev.Type().Elem()):
		p := reflect.New(ev.Type().Elem())
		p.Elem().Set(sv)
		ev.Set(p)
	case ev.Kind() == reflect.Ptr && sv.Type().ConvertibleTo(ev.Type().Elem()):
		p := reflect.New(ev.Type().Elem())
		p.Elem().Set(sv.Convert(ev.Type().Elem()))
		ev.Set(p)
	default:
		return fmt.Errorf("cannot assign %T to %T", src, dest)
	}
	return nil
}

