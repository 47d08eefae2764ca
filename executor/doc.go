package executor

// package executor binds a command's parameters into the wire call and
// exposes the answer as cursors.
//
// The division of labor: sqlcmd builds and validates, libpq moves bytes,
// executor glues the two and owns the result's lifetime. Row and RowColumn
// carry no data of their own, only indices plus a back reference, so they
// cost nothing to copy and must not outlive their Result.
