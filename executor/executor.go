package executor

import (
	"errors"
	"log"

	"github.com/mirvladiandr/t-pg/libpq"
	"github.com/mirvladiandr/t-pg/sqlcmd"
)

// Exec validates cmd, logs its rendered form, and submits it with its
// parameters bound over the connection. All failures come back as an
// invalid Result plus a descriptive error; callers check Result.Valid
// before reading rows. Exec blocks until the backend answers.
func Exec(conn *libpq.Conn, cmd *sqlcmd.Command) (Result, error) {
	fail := func(msg string) (Result, error) {
		log.Printf("%s", msg)
		return Result{}, errors.New(msg)
	}

	if msg := connError(conn); msg != "" {
		return fail(msg)
	}

	if !cmd.Valid() {
		return fail("sql - too many parameters")
	}

	cmd.Debug()

	h, err := conn.ExecParams(cmd.Text(), cmd.Params().Payloads(), cmd.Params().Formats())
	if err != nil {
		return fail("libpq - " + err.Error())
	}
	if h == nil {
		return fail("PGresult - invalid result handle")
	}
	if st := h.Status(); st != libpq.StatusCommandOK && st != libpq.StatusTuplesOK {
		msg := h.ErrorMessage()
		h.Close()
		return fail("PGresult - " + msg)
	}

	return NewResult(h), nil
}

// connError mirrors the usual connection check: an absent handle or a
// connection in a failed state refuses to execute anything.
func connError(conn *libpq.Conn) string {
	if conn == nil {
		return "PGconn - invalid connection handle"
	}
	if conn.Status() != libpq.ConnectionOK {
		return "PGconn - " + conn.ErrorMessage()
	}
	return ""
}
