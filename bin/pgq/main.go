package main

import (
	"flag"
	"fmt"
	"log"

	"golang.org/x/net/context"

	"github.com/mirvladiandr/t-pg/executor"
	"github.com/mirvladiandr/t-pg/libpq"
	"github.com/mirvladiandr/t-pg/sqlcmd"
)

var conninfo string
var query string

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)

	flag.StringVar(&conninfo, "c", "host=localhost port=5432 sslmode=disable", "conninfo to connect with")
	flag.StringVar(&query, "q", "SELECT name, age, description FROM users", "query to run")
	flag.Parse()

	conn, err := libpq.Connect(context.Background(), conninfo)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	res, err := executor.Exec(conn, sqlcmd.New(query))
	if err != nil {
		log.Fatal(err)
	}
	defer res.Close()

	for j := uint32(0); j < res.ColumnCount(); j++ {
		fmt.Printf("%s\t", res.Handle().Column(int(j)).Name)
	}
	fmt.Println()

	for r := res.Begin(); !r.Equal(res.End()); r = r.Next() {
		for j := uint32(0); j < r.Size(); j++ {
			fmt.Printf("%q\t", executor.Value[string](r, j))
		}
		fmt.Println()
	}
}
