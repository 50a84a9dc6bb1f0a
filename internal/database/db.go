package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect は接続先データベースの種類を表す。
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// sqlitePragmas はSQLite接続ごとに適用するプラグマ。
// 外部キー制約を有効化し、ロック競合時は最大5秒待機する。
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// Target はDATABASE_URLを解釈した結果を保持する。
type Target struct {
	Dialect    Dialect
	DriverName string
	DSN        string
}

// ParseURL はDATABASE_URLのスキームから利用するドライバとDSNを決定する。
// "sqlite://path" はSQLiteファイル（":memory:"も可）、
// "postgres://" または "postgresql://" はPostgreSQLとして扱う。
func ParseURL(databaseURL string) (Target, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return Target{}, fmt.Errorf("sqlite database path is empty")
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return Target{
			Dialect:    DialectSQLite,
			DriverName: "sqlite",
			DSN:        path + sep + sqlitePragmas,
		}, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Target{
			Dialect:    DialectPostgres,
			DriverName: "postgres",
			DSN:        databaseURL,
		}, nil
	default:
		return Target{}, fmt.Errorf("unsupported database url scheme: %q", schemeOf(databaseURL))
	}
}

// Open はDATABASE_URLに応じてPostgreSQLまたはSQLiteの接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(target.DriverName, target.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは書き込みが直列化されるため、単一接続に制限してロック競合を避ける。
	// ":memory:" の場合は接続ごとに別DBになるため単一接続が必須。
	if target.Dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, target.Dialect, nil
}

func schemeOf(databaseURL string) string {
	scheme, _, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return ""
	}
	return scheme
}
