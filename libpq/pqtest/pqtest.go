// Package pqtest is a scripted in-process backend speaking just enough of
// the extended-query protocol to exercise the client: startup handshake,
// Parse/Bind/Describe/Execute/Sync, binary DataRow emission, ErrorResponse.
// It records every Bind it receives so tests can assert on the exact
// payloads and format codes the client put on the wire.
package pqtest

import (
	"bufio"
	"io"
	"log"
	"net"
	"sync"

	"github.com/lib/pq/oid"

	"github.com/mirvladiandr/t-pg/datum"
	"github.com/mirvladiandr/t-pg/libpq"
)

// Column names one result column and its type OID.
type Column struct {
	Name string
	Oid  oid.Oid
}

// Cell is one scripted result cell in wire form.
type Cell struct {
	Data []byte
	Null bool
}

// CellOf encodes d into a binary result cell. It panics on types with no
// binary encoding; scripts are fixtures, not inputs.
func CellOf(d datum.Datum) Cell {
	if d == datum.DNull {
		return Cell{Null: true}
	}
	b, err := datum.EncodeBinary(d)
	if err != nil {
		panic(err)
	}
	return Cell{Data: b}
}

// Script is the canned response the server gives to the next command.
// When ErrMessage is set the server rejects the Parse message and ignores
// everything until Sync, the way a backend reports a statement error.
type Script struct {
	Columns []Column
	Rows    [][]Cell
	Tag     string

	ErrCode    string
	ErrMessage string
}

// Bound is one Bind message as received from the client.
type Bound struct {
	Query         string
	Params        [][]byte
	Formats       []int16
	ResultFormats []int16
}

// Server is the scripted backend. One Server handles any number of
// connections sequentially or concurrently; all of them answer from the
// same script.
type Server struct {
	ln net.Listener

	mu     sync.Mutex
	script Script
	bound  []Bound
	conns  []net.Conn
}

// Start listens on an ephemeral localhost port and begins serving.
func Start() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{ln: ln}
	go s.acceptLoop()
	return s, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return port
}

func (s *Server) Close() {
	_ = s.ln.Close()
	s.DropConnections()
}

// DropConnections severs every accepted connection without the Terminate
// exchange, the way a crashed backend disappears mid-session.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

// SetScript installs the response for subsequent commands and clears the
// record of received binds.
func (s *Server) SetScript(sc Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = sc
	s.bound = nil
}

// Bound returns the Bind messages received since the last SetScript.
func (s *Server) Bound() []Bound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bound, len(s.bound))
	copy(out, s.bound)
	return out
}

func (s *Server) currentScript() Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script
}

func (s *Server) record(b Bound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = append(s.bound, b)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go func() {
			if err := s.serve(conn); err != nil && err != io.EOF {
				log.Printf("pqtest: connection ended: %s", err)
			}
			_ = conn.Close()
		}()
	}
}

type session struct {
	srv *Server

	r        *bufio.Reader
	w        *bufio.Writer
	readBuf  libpq.ReadBuffer
	writeBuf libpq.WriteBuffer

	lastQuery      string
	ignoreTillSync bool
}

func (s *Server) serve(conn net.Conn) error {
	c := session{
		srv: s,
		r:   bufio.NewReader(conn),
		w:   bufio.NewWriter(conn),
	}
	if err := c.handshake(); err != nil {
		return err
	}
	return c.commandLoop()
}

// handshake consumes the startup message and answers with AuthOK, the
// parameters a real backend announces, and ReadyForQuery.
func (c *session) handshake() error {
	if _, err := c.readBuf.ReadUntypedMsg(c.r); err != nil {
		return err
	}
	if _, err := c.readBuf.GetInt32(); err != nil { // protocol version
		return err
	}

	c.writeBuf.InitMsg(byte(libpq.ServerMsgAuth))
	c.writeBuf.PutInt32(libpq.AuthOK)
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return err
	}

	for _, kv := range [][2]string{
		{"client_encoding", datum.ClientEncoding},
		{"server_version", "9.5.0"},
	} {
		c.writeBuf.InitMsg(byte(libpq.ServerMsgParameterStatus))
		c.writeBuf.WriteCString(kv[0])
		c.writeBuf.WriteCString(kv[1])
		if err := c.writeBuf.FinishMsg(c.w); err != nil {
			return err
		}
	}

	return c.sendReady()
}

func (c *session) sendReady() error {
	c.writeBuf.InitMsg(byte(libpq.ServerMsgReady))
	c.writeBuf.WriteByte('I')
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *session) commandLoop() error {
	for {
		typ, _, err := c.readBuf.ReadTypedMsg(c.r)
		if err != nil {
			return err
		}

		if c.ignoreTillSync && libpq.ClientMessageType(typ) != libpq.ClientMsgSync {
			continue
		}

		switch libpq.ClientMessageType(typ) {
		case libpq.ClientMsgParse:
			err = c.handleParse()
		case libpq.ClientMsgBind:
			err = c.handleBind()
		case libpq.ClientMsgDescribe:
			err = c.handleDescribe()
		case libpq.ClientMsgExecute:
			err = c.handleExecute()
		case libpq.ClientMsgSync:
			c.ignoreTillSync = false
			err = c.sendReady()
		case libpq.ClientMsgFlush:
			err = c.w.Flush()
		case libpq.ClientMsgTerminate:
			return nil
		default:
			err = c.sendError(libpq.CodeInternalError, "unknown client message type")
		}

		if err != nil {
			return err
		}
	}
}

func (c *session) handleParse() error {
	if _, err := c.readBuf.GetString(); err != nil { // statement name
		return err
	}
	query, err := c.readBuf.GetString()
	if err != nil {
		return err
	}
	c.lastQuery = query

	numTypes, err := c.readBuf.GetInt16()
	if err != nil {
		return err
	}
	for i := int16(0); i < numTypes; i++ {
		if _, err := c.readBuf.GetInt32(); err != nil {
			return err
		}
	}

	if sc := c.srv.currentScript(); sc.ErrMessage != "" {
		code := sc.ErrCode
		if code == "" {
			code = libpq.CodeInternalError
		}
		return c.sendError(code, sc.ErrMessage)
	}

	c.writeBuf.InitMsg(byte(libpq.ServerMsgParseComplete))
	return c.writeBuf.FinishMsg(c.w)
}

func (c *session) handleBind() error {
	if _, err := c.readBuf.GetString(); err != nil { // portal name
		return err
	}
	if _, err := c.readBuf.GetString(); err != nil { // statement name
		return err
	}

	b := Bound{Query: c.lastQuery}

	numFormats, err := c.readBuf.GetInt16()
	if err != nil {
		return err
	}
	for i := int16(0); i < numFormats; i++ {
		f, err := c.readBuf.GetInt16()
		if err != nil {
			return err
		}
		b.Formats = append(b.Formats, f)
	}

	numValues, err := c.readBuf.GetInt16()
	if err != nil {
		return err
	}
	for i := int16(0); i < numValues; i++ {
		plen, err := c.readBuf.GetInt32()
		if err != nil {
			return err
		}
		if plen == -1 {
			b.Params = append(b.Params, nil)
			continue
		}
		v, err := c.readBuf.GetBytes(int(plen))
		if err != nil {
			return err
		}
		b.Params = append(b.Params, append([]byte(nil), v...))
	}

	numResultFormats, err := c.readBuf.GetInt16()
	if err != nil {
		return err
	}
	for i := int16(0); i < numResultFormats; i++ {
		f, err := c.readBuf.GetInt16()
		if err != nil {
			return err
		}
		b.ResultFormats = append(b.ResultFormats, f)
	}

	c.srv.record(b)

	c.writeBuf.InitMsg(byte(libpq.ServerMsgBindComplete))
	return c.writeBuf.FinishMsg(c.w)
}

func (c *session) handleDescribe() error {
	if _, err := c.readBuf.GetBytes(1); err != nil { // 'S' or 'P'
		return err
	}
	if _, err := c.readBuf.GetString(); err != nil { // name
		return err
	}
	return c.sendRowDescription(c.srv.currentScript().Columns)
}

func (c *session) handleExecute() error {
	if _, err := c.readBuf.GetString(); err != nil { // portal name
		return err
	}
	if _, err := c.readBuf.GetInt32(); err != nil { // row limit
		return err
	}

	sc := c.srv.currentScript()
	for _, row := range sc.Rows {
		c.writeBuf.InitMsg(byte(libpq.ServerMsgDataRow))
		c.writeBuf.PutInt16(int16(len(row)))
		for _, cell := range row {
			if cell.Null {
				c.writeBuf.PutInt32(-1)
				continue
			}
			c.writeBuf.PutInt32(int32(len(cell.Data)))
			c.writeBuf.Write(cell.Data)
		}
		if err := c.writeBuf.FinishMsg(c.w); err != nil {
			return err
		}
	}

	tag := sc.Tag
	if tag == "" {
		tag = "SELECT"
	}
	c.writeBuf.InitMsg(byte(libpq.ServerMsgCommandComplete))
	if err := c.writeBuf.WriteCString(tag); err != nil {
		return err
	}
	return c.writeBuf.FinishMsg(c.w)
}

func (c *session) sendRowDescription(columns []Column) error {
	if len(columns) == 0 {
		c.writeBuf.InitMsg(byte(libpq.ServerMsgNoData))
		return c.writeBuf.FinishMsg(c.w)
	}

	c.writeBuf.InitMsg(byte(libpq.ServerMsgRowDescription))
	c.writeBuf.PutInt16(int16(len(columns)))

	for _, col := range columns {
		if err := c.writeBuf.WriteCString(col.Name); err != nil {
			return err
		}
		c.writeBuf.PutInt32(0) // table OID (optional)
		c.writeBuf.PutInt16(0) // column attribute ID (optional)
		c.writeBuf.PutInt32(int32(col.Oid))
		c.writeBuf.PutInt16(-1) // typlen; variable
		c.writeBuf.PutInt32(0)  // type modifier
		c.writeBuf.PutInt16(int16(datum.FormatBinary))
	}

	return c.writeBuf.FinishMsg(c.w)
}

func (c *session) sendError(code, message string) error {
	c.ignoreTillSync = true

	c.writeBuf.InitMsg(byte(libpq.ServerMsgErrorResponse))
	c.writeBuf.WriteByte('S')
	c.writeBuf.WriteCString("ERROR")
	c.writeBuf.WriteByte('C')
	c.writeBuf.WriteCString(code)
	c.writeBuf.WriteByte('M')
	c.writeBuf.WriteCString(message)
	c.writeBuf.WriteByte(0)
	if err := c.writeBuf.FinishMsg(c.w); err != nil {
		return err
	}
	return c.w.Flush()
}
