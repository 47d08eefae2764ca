package libpq

import (
	"fmt"
	"log"
	"os/user"
	"strings"
)

// Options holds the conninfo settings this client understands.
type Options struct {
	Host     string
	Port     string
	User     string
	Database string
	Password string
}

// ParseConninfo parses a libpq-style connection string of space-separated
// key=value pairs, eg:
//
//	user=pqgotest dbname=pqgotest port=5432 sslmode=disable
//
// Unrecognized keys are logged and skipped. The user defaults to the
// operating system account, the database to the user. Quoted values are not
// supported.
func ParseConninfo(conninfo string) (Options, error) {
	opts := Options{Host: "localhost", Port: "5432"}

	for _, pair := range strings.Fields(conninfo) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return opts, fmt.Errorf("conninfo: malformed option %q", pair)
		}

		switch key {
		case "host":
			opts.Host = value
		case "port":
			opts.Port = value
		case "user":
			opts.User = value
		case "dbname":
			opts.Database = value
		case "password":
			opts.Password = value
		case "sslmode":
			// Only cleartext connections are made; every mode is accepted
			// but none negotiates TLS.
		default:
			log.Printf("unrecognized connection parameter %q", key)
		}
	}

	if opts.User == "" {
		opts.User = currentUsername()
	}
	if opts.Database == "" {
		opts.Database = opts.User
	}

	return opts, nil
}

func currentUsername() string {
	u, err := user.Current()
	if err != nil {
		return "postgres"
	}
	return u.Username
}
