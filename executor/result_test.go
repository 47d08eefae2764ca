package executor_test

import (
	"fmt"
	"time"

	"github.com/lib/pq/oid"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/net/context"

	"github.com/mirvladiandr/t-pg/datum"
	"github.com/mirvladiandr/t-pg/executor"
	"github.com/mirvladiandr/t-pg/libpq"
	"github.com/mirvladiandr/t-pg/libpq/pqtest"
	"github.com/mirvladiandr/t-pg/sqlcmd"
)

var _ = Describe("Exec", func() {
	var srv *pqtest.Server
	var conn *libpq.Conn

	BeforeEach(func() {
		var err error
		srv, err = pqtest.Start()
		Expect(err).ShouldNot(HaveOccurred())

		conninfo := fmt.Sprintf("user=pqgotest dbname=pqgotest host=127.0.0.1 port=%s sslmode=disable", srv.Port())
		conn, err = libpq.Connect(context.Background(), conninfo)
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		conn.Close()
		srv.Close()
	})

	It("rejects an inconsistent command before any round-trip", func() {
		cmd := sqlcmd.New("INSERT INTO t VALUES ($1, $2)").Arg("only one")

		res, err := executor.Exec(conn, cmd)
		Expect(err).Should(MatchError("sql - too many parameters"))
		Expect(res.Valid()).Should(BeFalse())
		Expect(srv.Bound()).Should(BeEmpty())
	})

	It("rejects an absent connection handle", func() {
		res, err := executor.Exec(nil, sqlcmd.New("SELECT 1"))
		Expect(err).Should(MatchError("PGconn - invalid connection handle"))
		Expect(res.Valid()).Should(BeFalse())
	})

	It("refuses further commands once the transport fails", func() {
		srv.DropConnections()

		res, err := executor.Exec(conn, sqlcmd.New("SELECT 1"))
		Expect(err).Should(HaveOccurred())
		Expect(res.Valid()).Should(BeFalse())
		Expect(conn.Status()).Should(Equal(libpq.ConnectionBad))
		Expect(conn.ErrorMessage()).ShouldNot(BeEmpty())

		srv.SetScript(pqtest.Script{Tag: "SELECT 1"})
		res, err = executor.Exec(conn, sqlcmd.New("SELECT 1"))
		Expect(err).Should(MatchError("PGconn - " + conn.ErrorMessage()))
		Expect(res.Valid()).Should(BeFalse())
		Expect(srv.Bound()).Should(BeEmpty())
	})

	It("returns an invalid result with the backend's message on failure", func() {
		srv.SetScript(pqtest.Script{
			ErrCode:    libpq.CodeSyntaxError,
			ErrMessage: "relation \"missing\" does not exist",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT * FROM missing"))
		Expect(err).Should(HaveOccurred())
		Expect(err.Error()).Should(ContainSubstring("does not exist"))
		Expect(res.Valid()).Should(BeFalse())
	})

	It("executes a bound command and wraps the handle", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{
				{Name: "name", Oid: oid.T_text},
				{Name: "age", Oid: oid.T_int8},
				{Name: "active", Oid: oid.T_bool},
			},
			Rows: [][]pqtest.Cell{
				{pqtest.CellOf(datum.DString("xiaowang")), pqtest.CellOf(datum.DInt(32)), pqtest.CellOf(datum.DBool(true))},
				{pqtest.CellOf(datum.DString("xiaohuang")), pqtest.CellOf(datum.DInt(30)), pqtest.CellOf(datum.DBool(false))},
			},
			Tag: "SELECT 2",
		})

		cmd := sqlcmd.New("SELECT name, age, active FROM users WHERE age > $1").Arg(20)
		res, err := executor.Exec(conn, cmd)
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		Expect(res.Valid()).Should(BeTrue())
		Expect(res.RowCount()).Should(Equal(uint32(2)))
		Expect(res.ColumnCount()).Should(Equal(uint32(3)))

		row := res.Row(0)
		Expect(row.Size()).Should(Equal(uint32(3)))
		Expect(executor.Value[string](row, 0)).Should(Equal("xiaowang"))
		Expect(executor.Value[int64](row, 1)).Should(Equal(int64(32)))
		Expect(executor.Value[bool](row, 2)).Should(BeTrue())

		Expect(executor.Value[bool](res.Row(1), 2)).Should(BeFalse())

		bound := srv.Bound()
		Expect(bound).Should(HaveLen(1))
		Expect(bound[0].Params).Should(Equal([][]byte{[]byte("20")}))
	})

	It("iterates rows as a forward cursor range", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "n", Oid: oid.T_int8}},
			Rows: [][]pqtest.Cell{
				{pqtest.CellOf(datum.DInt(1))},
				{pqtest.CellOf(datum.DInt(2))},
				{pqtest.CellOf(datum.DInt(3))},
			},
			Tag: "SELECT 3",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT n FROM t"))
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		var got []int64
		for r := res.Begin(); !r.Equal(res.End()); r = r.Next() {
			got = append(got, executor.Value[int64](r, 0))
		}
		Expect(got).Should(Equal([]int64{1, 2, 3}))
	})

	It("addresses rows with front, back, and direct cell cursors", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "n", Oid: oid.T_int8}},
			Rows: [][]pqtest.Cell{
				{pqtest.CellOf(datum.DInt(10))},
				{pqtest.CellOf(datum.DInt(20))},
				{pqtest.CellOf(datum.DInt(30))},
			},
			Tag: "SELECT 3",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT n FROM t"))
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		Expect(executor.Value[int64](res.Front(), 0)).Should(Equal(int64(10)))
		Expect(executor.Value[int64](res.Back(), 0)).Should(Equal(int64(30)))
		Expect(executor.To[int64](res.Cell(1, 0))).Should(Equal(int64(20)))
	})

	It("yields an unbound back cursor for an empty result", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "n", Oid: oid.T_int8}},
			Tag:     "SELECT 0",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT n FROM t WHERE false"))
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		back := res.Back()
		Expect(back.Valid()).Should(BeFalse())
		Expect(back.Size()).Should(Equal(uint32(0)))
		Expect(executor.Value[int64](back, 0)).Should(Equal(int64(0)))
	})

	It("yields an unbound row for an empty result", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "n", Oid: oid.T_int8}},
			Tag:     "SELECT 0",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT n FROM t WHERE false"))
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		Expect(res.Empty()).Should(BeTrue())
		row := res.Row(0)
		Expect(row.Size()).Should(Equal(uint32(0)))
		Expect(row.Valid()).Should(BeFalse())
	})

	It("decodes an out-of-range column to the zero value", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "n", Oid: oid.T_int8}},
			Rows:    [][]pqtest.Cell{{pqtest.CellOf(datum.DInt(7))}},
			Tag:     "SELECT 1",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT n FROM t"))
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		row := res.Row(0)
		Expect(executor.To[int64](row.At(5))).Should(Equal(int64(0)))
		Expect(executor.To[string](row.At(5))).Should(Equal(""))
		Expect(executor.To[time.Time](row.At(5)).IsZero()).Should(BeTrue())
	})

	It("degrades malformed cells to zero values instead of failing", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "n", Oid: oid.T_int8}},
			Rows:    [][]pqtest.Cell{{{Data: []byte{1, 2, 3}}}},
			Tag:     "SELECT 1",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT n FROM t"))
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		Expect(executor.Value[int64](res.Row(0), 0)).Should(Equal(int64(0)))
	})

	It("decodes timestamps from the binary epoch encoding", func() {
		d := time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "ts", Oid: oid.T_timestamp}},
			Rows:    [][]pqtest.Cell{{pqtest.CellOf(datum.DTimestamp{Time: d})}},
			Tag:     "SELECT 1",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT ts FROM t"))
		Expect(err).ShouldNot(HaveOccurred())
		defer res.Close()

		got := executor.Value[time.Time](res.Row(0), 0)
		Expect(got.Equal(d)).Should(BeTrue())
	})

	It("leaves cursors dead once the result is closed", func() {
		srv.SetScript(pqtest.Script{
			Columns: []pqtest.Column{{Name: "n", Oid: oid.T_int8}},
			Rows:    [][]pqtest.Cell{{pqtest.CellOf(datum.DInt(7))}},
			Tag:     "SELECT 1",
		})

		res, err := executor.Exec(conn, sqlcmd.New("SELECT n FROM t"))
		Expect(err).ShouldNot(HaveOccurred())

		row := res.Row(0)
		res.Close()
		Expect(res.Valid()).Should(BeFalse())
		Expect(executor.Value[int64](row, 0)).Should(Equal(int64(0)))
	})
})
