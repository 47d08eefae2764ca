package executor

import (
	"log"

	"github.com/mirvladiandr/t-pg/datum"
	"github.com/mirvladiandr/t-pg/libpq"
)

// Result owns one result handle and caches its row and column counts for
// the handle's lifetime. The zero Result is invalid. A Result is the sole
// owner of its handle; Close releases it and invalidates every cursor that
// still points at it.
type Result struct {
	h     *libpq.ResultHandle
	nRows uint32
	nCols uint32
}

// NewResult wraps a handle, caching its counts. A nil or inconsistent
// handle yields an invalid Result.
func NewResult(h *libpq.ResultHandle) Result {
	if h == nil {
		return Result{}
	}
	nRows, nCols := h.Ntuples(), h.Nfields()
	if nRows < 0 || nCols < 0 {
		log.Printf("invalid SQL result: tuples count or fields count < 0")
		h.Close()
		return Result{}
	}
	return Result{h: h, nRows: uint32(nRows), nCols: uint32(nCols)}
}

// Valid reports whether the Result owns a handle.
func (r *Result) Valid() bool {
	return r != nil && r.h != nil
}

// Handle exposes the underlying result handle.
func (r *Result) Handle() *libpq.ResultHandle {
	if r == nil {
		return nil
	}
	return r.h
}

func (r *Result) RowCount() uint32 {
	if r == nil {
		return 0
	}
	return r.nRows
}

func (r *Result) ColumnCount() uint32 {
	if r == nil {
		return 0
	}
	return r.nCols
}

func (r *Result) Size() uint32 {
	return r.RowCount()
}

func (r *Result) Empty() bool {
	return r.Size() == 0
}

// Close releases the handle's storage. The Result and any outstanding Row
// or RowColumn cursors must not be read afterwards.
func (r *Result) Close() {
	if r == nil || r.h == nil {
		return
	}
	r.h.Close()
	r.h = nil
	r.nRows = 0
	r.nCols = 0
}

// At returns the row cursor at index; out of range yields an unbound Row
// rather than failing.
func (r *Result) At(index uint32) Row {
	if index < r.Size() {
		return Row{res: r, row: index}
	}
	return Row{}
}

func (r *Result) Row(index uint32) Row {
	return r.At(index)
}

func (r *Result) Begin() Row {
	return Row{res: r, row: 0}
}

func (r *Result) End() Row {
	return Row{res: r, row: r.Size()}
}

func (r *Result) Front() Row {
	return r.At(0)
}

func (r *Result) Back() Row {
	return r.At(r.Size() - 1)
}

// Cell addresses one cell directly.
func (r *Result) Cell(row, column uint32) RowColumn {
	return r.Row(row).At(column)
}

// Row is a non-owning cursor over one result row. The zero Row is unbound:
// size 0, no readable columns. A Row stays usable only while its Result is
// open; that discipline is the caller's.
type Row struct {
	res *Result
	row uint32
}

// Size returns the owning result's column count, or 0 when unbound.
func (r Row) Size() uint32 {
	if r.res == nil {
		return 0
	}
	return r.res.ColumnCount()
}

func (r Row) Empty() bool {
	return r.Size() == 0
}

func (r Row) Valid() bool {
	return !r.Empty()
}

// At returns the cell cursor for the given column index.
func (r Row) At(column uint32) RowColumn {
	return RowColumn{res: r.res, row: r.row, column: column}
}

func (r Row) Column(column uint32) RowColumn {
	return r.At(column)
}

func (r Row) Begin() RowColumn {
	return r.At(0)
}

func (r Row) End() RowColumn {
	return r.At(r.Size())
}

// Next returns the cursor advanced to the following row.
func (r Row) Next() Row {
	r.row++
	return r
}

// Equal compares the stored row index only.
func (r Row) Equal(o Row) bool {
	return r.row == o.row
}

// RowColumn is a non-owning cursor over one result cell. Next advances the
// row index while Equal compares only the column index; both operate purely
// on the stored indices.
type RowColumn struct {
	res    *Result
	row    uint32
	column uint32
}

func (c RowColumn) Next() RowColumn {
	c.row++
	return c
}

func (c RowColumn) Equal(o RowColumn) bool {
	return c.column == o.column
}

// To decodes the referenced cell as T. A column index out of range for the
// owning result yields T's zero value, never an error.
func To[T datum.Scalar](c RowColumn) T {
	if c.res == nil || c.column >= c.res.ColumnCount() {
		var zero T
		return zero
	}
	h := c.res.Handle()
	row, col := int(c.row), int(c.column)
	return datum.Decode[T](h.Value(row, col), h.IsNull(row, col))
}

// Value decodes one column of a row as T.
//
//	name := executor.Value[string](res.Row(0), 1)
func Value[T datum.Scalar](r Row, column uint32) T {
	return To[T](r.At(column))
}
