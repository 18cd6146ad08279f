package journal

import (
	"database/sql"
	"regexp"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the sqlite driver registered with REGEXP support, used to
// filter history by command pattern.
const DriverName = "sqlite3_mxbridge"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// Usage: command REGEXP 'pattern'
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

func regexpMatch(pattern, text string) (bool, error) {
	return regexp.MatchString(pattern, text)
}
