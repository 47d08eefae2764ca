package libpq

import (
	"github.com/lib/pq/oid"

	"github.com/mirvladiandr/t-pg/datum"
)

type ClientMessageType byte
type ServerMessageType byte

// http://www.postgresql.org/docs/9.5/static/protocol-message-formats.html
const (
	ClientMsgBind        ClientMessageType = 'B'
	ClientMsgClose       ClientMessageType = 'C'
	ClientMsgDescribe    ClientMessageType = 'D'
	ClientMsgExecute     ClientMessageType = 'E'
	ClientMsgFlush       ClientMessageType = 'H'
	ClientMsgParse       ClientMessageType = 'P'
	ClientMsgPassword    ClientMessageType = 'p'
	ClientMsgSimpleQuery ClientMessageType = 'Q'
	ClientMsgTerminate   ClientMessageType = 'X'
	ClientMsgSync        ClientMessageType = 'S'

	ServerMsgAuth                 ServerMessageType = 'R'
	ServerMsgBindComplete         ServerMessageType = '2'
	ServerMsgCommandComplete      ServerMessageType = 'C'
	ServerMsgCloseComplete        ServerMessageType = '3'
	ServerMsgDataRow              ServerMessageType = 'D'
	ServerMsgEmptyQuery           ServerMessageType = 'I'
	ServerMsgErrorResponse        ServerMessageType = 'E'
	ServerMsgKeyData              ServerMessageType = 'K'
	ServerMsgNoData               ServerMessageType = 'n'
	ServerMsgNoticeResponse       ServerMessageType = 'N'
	ServerMsgParameterDescription ServerMessageType = 't'
	ServerMsgParameterStatus      ServerMessageType = 'S'
	ServerMsgParseComplete        ServerMessageType = '1'
	ServerMsgPortalSuspended      ServerMessageType = 's'
	ServerMsgReady                ServerMessageType = 'Z'
	ServerMsgRowDescription       ServerMessageType = 'T'
)

type PrepareType byte

const (
	PrepareStatement PrepareType = 'S'
	PreparePortal    PrepareType = 'P'
)

// Authentication request codes carried in the ServerMsgAuth payload.
const (
	AuthOK                int32 = 0
	AuthCleartextPassword int32 = 3
)

const version30 = 0x30000

// ConnStatus is the connection's health as reported by Conn.Status.
type ConnStatus int

const (
	ConnectionOK ConnStatus = iota
	ConnectionBad
)

// ExecStatus classifies a completed command, mirroring the result statuses
// this client distinguishes.
type ExecStatus int

const (
	StatusEmptyQuery ExecStatus = iota
	StatusCommandOK
	StatusTuplesOK
	StatusBadResponse
	StatusFatalError
)

func (s ExecStatus) String() string {
	switch s {
	case StatusEmptyQuery:
		return "PGRES_EMPTY_QUERY"
	case StatusCommandOK:
		return "PGRES_COMMAND_OK"
	case StatusTuplesOK:
		return "PGRES_TUPLES_OK"
	case StatusBadResponse:
		return "PGRES_BAD_RESPONSE"
	case StatusFatalError:
		return "PGRES_FATAL_ERROR"
	default:
		return "PGRES_UNKNOWN"
	}
}

// Column describes one result column from a RowDescription message.
type Column struct {
	Name    string
	TypeOid oid.Oid

	// Variable-size types have Size=-1. This is the pg_type typlen of the
	// column's type, not the encoded length of any particular cell.
	Size   int16
	Format datum.Format
}

// PG error codes from:
// http://www.postgresql.org/docs/9.5/static/errcodes-appendix.html
const (
	// CodeSyntaxError represents a malformed statement rejected at parse time.
	CodeSyntaxError string = "42601"
	// CodeUniquenessConstraintViolationError represents violations of
	// uniqueness constraints.
	CodeUniquenessConstraintViolationError string = "23505"
	// CodeInternalError acts as a catch-all for server errors without a more
	// specific code.
	CodeInternalError string = "XX000"
)
