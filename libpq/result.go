package libpq

// Cell is one result value: its raw bytes in the requested format, plus the
// null flag the wire carries separately from the payload.
type Cell struct {
	Data []byte
	Null bool
}

// ResultHandle holds one completed command's rows, columns, status, and
// error text. It is produced by Conn.ExecParams and owned by exactly one
// holder, which releases the row storage with Close.
type ResultHandle struct {
	status  ExecStatus
	errText string
	cmdTag  string
	columns []Column
	rows    [][]Cell
}

func (r *ResultHandle) Status() ExecStatus {
	if r == nil {
		return StatusBadResponse
	}
	return r.status
}

// ErrorMessage returns the backend's error text for a failed command, or "".
func (r *ResultHandle) ErrorMessage() string {
	if r == nil {
		return ""
	}
	return r.errText
}

// CmdTag returns the CommandComplete tag, eg "SELECT 3" or "INSERT 0 1".
func (r *ResultHandle) CmdTag() string {
	if r == nil {
		return ""
	}
	return r.cmdTag
}

func (r *ResultHandle) Ntuples() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

func (r *ResultHandle) Nfields() int {
	if r == nil {
		return 0
	}
	return len(r.columns)
}

// Column returns the description of column i from the row description.
func (r *ResultHandle) Column(i int) Column {
	if r == nil || i < 0 || i >= len(r.columns) {
		return Column{}
	}
	return r.columns[i]
}

// Value returns the raw bytes of one cell, nil for a null cell or an
// out-of-range index. The slice aliases the result's storage.
func (r *ResultHandle) Value(row, column int) []byte {
	if !r.inRange(row, column) {
		return nil
	}
	return r.rows[row][column].Data
}

// Length returns the byte length of one cell, 0 for null or out of range.
func (r *ResultHandle) Length(row, column int) int {
	return len(r.Value(row, column))
}

// IsNull reports whether a cell is null; out-of-range cells read as null.
func (r *ResultHandle) IsNull(row, column int) bool {
	if !r.inRange(row, column) {
		return true
	}
	return r.rows[row][column].Null
}

func (r *ResultHandle) inRange(row, column int) bool {
	return r != nil &&
		row >= 0 && row < len(r.rows) &&
		column >= 0 && column < len(r.columns) && column < len(r.rows[row])
}

// Close releases the row storage. Calling it more than once is harmless.
func (r *ResultHandle) Close() {
	if r == nil {
		return
	}
	r.rows = nil
	r.columns = nil
}
