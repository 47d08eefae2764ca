package libpq

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/lib/pq/oid"
	"golang.org/x/net/context"

	"github.com/mirvladiandr/t-pg/datum"
)

// Conn is one client connection to a backend. It is not safe for concurrent
// use: the extended-query exchange is strictly request/response and every
// call blocks until the backend answers.
type Conn struct {
	conn net.Conn

	r        *bufio.Reader
	w        *bufio.Writer
	readBuf  ReadBuffer
	writeBuf WriteBuffer

	status       ConnStatus
	errMsg       string
	serverParams map[string]string
	backendPID   int32
	secretKey    int32
}

// Connect dials the backend named by conninfo, performs the startup
// handshake, and negotiates the client encoding (see datum.ClientEncoding).
// ctx bounds dialing only; once the connection is established, protocol
// calls block until the backend answers.
func Connect(ctx context.Context, conninfo string) (*Conn, error) {
	opts, err := ParseConninfo(conninfo)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(opts.Host, opts.Port))
	if err != nil {
		return nil, err
	}

	c := &Conn{
		conn:         nc,
		r:            bufio.NewReader(nc),
		w:            bufio.NewWriter(nc),
		status:       ConnectionBad,
		serverParams: make(map[string]string),
	}

	if err := c.startup(opts); err != nil {
		c.errMsg = err.Error()
		_ = nc.Close()
		return nil, err
	}

	c.status = ConnectionOK
	return c, nil
}

// startup sends the protocol 3.0 startup message and drives authentication
// until the backend reports ReadyForQuery.
func (c *Conn) startup(opts Options) error {
	c.writeBuf.InitUntypedMsg()
	c.writeBuf.PutInt32(version30)
	for _, kv := range [][2]string{
		{"user", opts.User},
		{"database", opts.Database},
		{"client_encoding", datum.ClientEncoding},
	} {
		if err := c.writeBuf.WriteCString(kv[0]); err != nil {
			return err
		}
		if err := c.writeBuf.WriteCString(kv[1]); err != nil {
			return err
		}
	}
	c.writeBuf.WriteByte(0)
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return err
	}

	for {
		typ, _, err := c.readBuf.ReadTypedMsg(c.r)
		if err != nil {
			return err
		}

		switch ServerMessageType(typ) {
		case ServerMsgAuth:
			code, err := c.readBuf.GetInt32()
			if err != nil {
				return err
			}
			switch code {
			case AuthOK:
			case AuthCleartextPassword:
				c.writeBuf.InitMsg(byte(ClientMsgPassword))
				if err := c.writeBuf.WriteCString(opts.Password); err != nil {
					return err
				}
				if err := c.writeBuf.FinishMsg(c.w); err != nil {
					return err
				}
				if err := c.w.Flush(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported authentication request %d", code)
			}

		case ServerMsgParameterStatus:
			key, err := c.readBuf.GetString()
			if err != nil {
				return err
			}
			value, err := c.readBuf.GetString()
			if err != nil {
				return err
			}
			c.serverParams[key] = value

		case ServerMsgKeyData:
			if c.backendPID, err = c.readBuf.GetInt32(); err != nil {
				return err
			}
			if c.secretKey, err = c.readBuf.GetInt32(); err != nil {
				return err
			}

		case ServerMsgNoticeResponse:
			log.Printf("notice: %s", parseErrorResponse(&c.readBuf))

		case ServerMsgErrorResponse:
			return errors.New(parseErrorResponse(&c.readBuf))

		case ServerMsgReady:
			return nil

		default:
			return fmt.Errorf("unexpected startup message type %c", typ)
		}
	}
}

// Status reports the connection's health. A transport failure marks the
// connection bad permanently.
func (c *Conn) Status() ConnStatus {
	if c == nil {
		return ConnectionBad
	}
	return c.status
}

// ErrorMessage returns the message of the failure that marked the
// connection bad, or "" while the connection is healthy.
func (c *Conn) ErrorMessage() string {
	return c.errMsg
}

// Parameter returns a run-time parameter the backend reported at startup,
// such as client_encoding or server_version.
func (c *Conn) Parameter(name string) string {
	return c.serverParams[name]
}

// Close sends Terminate and releases the network connection.
func (c *Conn) Close() {
	if c == nil || c.conn == nil {
		return
	}
	if c.status == ConnectionOK {
		c.writeBuf.InitMsg(byte(ClientMsgTerminate))
		if err := c.writeBuf.FinishMsg(c.w); err == nil {
			_ = c.w.Flush()
		}
	}
	_ = c.conn.Close()
	c.status = ConnectionBad
	c.conn = nil
}

func (c *Conn) fail(err error) error {
	c.status = ConnectionBad
	c.errMsg = err.Error()
	return err
}

// ExecParams submits one parameterized command over the extended-query
// protocol: Parse, Bind, Describe, Execute, Sync. Each parameter is sent
// with its explicit format code; results are always requested in binary
// format. The call blocks until the backend reports ReadyForQuery and
// returns the accumulated result handle. A transport failure returns a nil
// handle and marks the connection bad.
func (c *Conn) ExecParams(command string, params [][]byte, formats []datum.Format) (*ResultHandle, error) {
	if c == nil || c.conn == nil || c.status != ConnectionOK {
		return nil, errors.New("connection is not ready")
	}

	// Parse: unnamed statement, no parameter type hints; the backend infers
	// parameter types from the statement.
	c.writeBuf.InitMsg(byte(ClientMsgParse))
	c.writeBuf.WriteCString("")
	c.writeBuf.WriteCString(command)
	c.writeBuf.PutInt16(0)
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return nil, c.fail(err)
	}

	// Bind: unnamed portal over the unnamed statement, one format code per
	// parameter, binary result format for every column.
	c.writeBuf.InitMsg(byte(ClientMsgBind))
	c.writeBuf.WriteCString("")
	c.writeBuf.WriteCString("")
	c.writeBuf.PutInt16(int16(len(formats)))
	for _, f := range formats {
		c.writeBuf.PutInt16(int16(f))
	}
	c.writeBuf.PutInt16(int16(len(params)))
	for _, p := range params {
		c.writeBuf.PutInt32(int32(len(p)))
		c.writeBuf.Write(p)
	}
	c.writeBuf.PutInt16(1)
	c.writeBuf.PutInt16(int16(datum.FormatBinary))
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return nil, c.fail(err)
	}

	// Describe the portal so the row description arrives ahead of any data.
	c.writeBuf.InitMsg(byte(ClientMsgDescribe))
	c.writeBuf.WriteByte(byte(PreparePortal))
	c.writeBuf.WriteCString("")
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return nil, c.fail(err)
	}

	// Execute with no row limit.
	c.writeBuf.InitMsg(byte(ClientMsgExecute))
	c.writeBuf.WriteCString("")
	c.writeBuf.PutInt32(0)
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return nil, c.fail(err)
	}

	c.writeBuf.InitMsg(byte(ClientMsgSync))
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return nil, c.fail(err)
	}
	if err := c.w.Flush(); err != nil {
		return nil, c.fail(err)
	}

	res := &ResultHandle{status: StatusCommandOK}
	for {
		typ, _, err := c.readBuf.ReadTypedMsg(c.r)
		if err != nil {
			return nil, c.fail(err)
		}

		switch ServerMessageType(typ) {
		case ServerMsgParseComplete, ServerMsgBindComplete, ServerMsgNoData:

		case ServerMsgRowDescription:
			if res.columns, err = c.readRowDescription(); err != nil {
				return nil, c.fail(err)
			}
			res.status = StatusTuplesOK

		case ServerMsgDataRow:
			row, err := c.readDataRow()
			if err != nil {
				return nil, c.fail(err)
			}
			res.rows = append(res.rows, row)

		case ServerMsgCommandComplete:
			if res.cmdTag, err = c.readBuf.GetString(); err != nil {
				return nil, c.fail(err)
			}

		case ServerMsgEmptyQuery:
			res.status = StatusEmptyQuery

		case ServerMsgErrorResponse:
			res.status = StatusFatalError
			res.errText = parseErrorResponse(&c.readBuf)

		case ServerMsgNoticeResponse:
			log.Printf("notice: %s", parseErrorResponse(&c.readBuf))

		case ServerMsgReady:
			// The transaction status byte is not tracked; every command
			// here runs in its own implicit transaction.
			return res, nil

		default:
			return nil, c.fail(fmt.Errorf("unexpected message type %c", typ))
		}
	}
}

func (c *Conn) readRowDescription() ([]Column, error) {
	n, err := c.readBuf.GetInt16()
	if err != nil {
		return nil, err
	}

	cols := make([]Column, n)
	for i := range cols {
		name, err := c.readBuf.GetString()
		if err != nil {
			return nil, err
		}
		if _, err := c.readBuf.GetInt32(); err != nil { // table OID
			return nil, err
		}
		if _, err := c.readBuf.GetInt16(); err != nil { // column attribute ID
			return nil, err
		}
		typOid, err := c.readBuf.GetInt32()
		if err != nil {
			return nil, err
		}
		typSize, err := c.readBuf.GetInt16()
		if err != nil {
			return nil, err
		}
		if _, err := c.readBuf.GetInt32(); err != nil { // type modifier
			return nil, err
		}
		format, err := c.readBuf.GetInt16()
		if err != nil {
			return nil, err
		}

		cols[i] = Column{
			Name:    name,
			TypeOid: oid.Oid(typOid),
			Size:    typSize,
			Format:  datum.Format(format),
		}
	}
	return cols, nil
}

func (c *Conn) readDataRow() ([]Cell, error) {
	n, err := c.readBuf.GetInt16()
	if err != nil {
		return nil, err
	}

	row := make([]Cell, n)
	for i := range row {
		length, err := c.readBuf.GetInt32()
		if err != nil {
			return nil, err
		}
		// NULL is encoded as -1; all other cells have a length prefix.
		if length == -1 {
			row[i].Null = true
			continue
		}
		b, err := c.readBuf.GetBytes(int(length))
		if err != nil {
			return nil, err
		}
		// The read buffer's storage is recycled across messages; cells are
		// copied out so the result owns its bytes.
		row[i].Data = append([]byte(nil), b...)
	}
	return row, nil
}

// parseErrorResponse flattens the field list of an ErrorResponse or
// NoticeResponse message into one line.
func parseErrorResponse(buf *ReadBuffer) string {
	var severity, code, message string

	for {
		field, err := buf.GetBytes(1)
		if err != nil || field[0] == 0 {
			break
		}
		value, err := buf.GetString()
		if err != nil {
			break
		}
		switch field[0] {
		case 'S':
			severity = value
		case 'C':
			code = value
		case 'M':
			message = value
		}
	}

	if message == "" {
		return "malformed error response"
	}
	if severity == "" {
		severity = "ERROR"
	}
	if code == "" {
		return fmt.Sprintf("%s: %s", severity, message)
	}
	return fmt.Sprintf("%s: %s (SQLSTATE %s)", severity, message, code)
}
