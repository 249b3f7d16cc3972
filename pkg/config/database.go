package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DBConfig selects the store driver. DSN wins when set; otherwise postgres
// builds one from the discrete host variables and sqlite uses a local file.
type DBConfig struct {
	DSN    string `envconfig:"HOMECHEF_DB_DSN"`
	Driver string `envconfig:"HOMECHEF_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"HOMECHEF_DB_HOST"`
	Port     int    `envconfig:"HOMECHEF_DB_PORT" default:"5432"`
	User     string `envconfig:"HOMECHEF_DB_USER"`
	Password string `envconfig:"HOMECHEF_DB_PASSWORD"`
	Name     string `envconfig:"HOMECHEF_DB_NAME"`
	SSLMode  string `envconfig:"HOMECHEF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOMECHEF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOMECHEF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOMECHEF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOMECHEF_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// StoreTimeout bounds each store round-trip made by the services.
	StoreTimeout time.Duration `envconfig:"HOMECHEF_STORE_TIMEOUT" default:"5s"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

func (db *DBConfig) resolveDSN() error {
	switch {
	case db.DSN != "":
		return nil
	case db.IsSQLite():
		db.DSN = defaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}
	db.DSN = db.postgresURL()
	return nil
}

func (db DBConfig) postgresURL() string {
	u := url.URL{
		Scheme: DriverPostgres,
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return u.String()
}
