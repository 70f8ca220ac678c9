package dialect

import (
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

const redacted = "xxxxx"

// passwordKV matches password pairs in key/value and ADO style connection
// strings: "password=secret", "Password = 'a b';", "pwd=secret".
var passwordKV = regexp.MustCompile(`(?i)\b(password|pwd)(\s*=\s*)('[^']*'|"[^"]*"|[^\s;]*)`)

// Redact returns dsn with any password replaced, suitable for logs and
// error messages. The connection string format is picked from the dialect.
func Redact(name, dsn string) string {
	if dsn == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(name, MySQL):
		if cfg, err := mysql.ParseDSN(dsn); err == nil {
			if cfg.Passwd != "" {
				cfg.Passwd = redacted
			}
			return cfg.FormatDSN()
		}
	case strings.HasPrefix(name, Postgres):
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			kv, err := pq.ParseURL(dsn)
			if err != nil {
				return redacted
			}
			dsn = kv
		}
	}
	return passwordKV.ReplaceAllString(dsn, "${1}${2}"+redacted)
}
