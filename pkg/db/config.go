package db

// Config describes the database connection. For sqlite, Name is the database file path.
type Config struct {
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxIdleConn int
	MaxOpenConn int
	// ConnMaxLifetime and ConnMaxIdleTime are in seconds.
	ConnMaxLifetime int
	ConnMaxIdleTime int
}
