package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/betfair-instruments/internal/config"
)

// ApplicationName is reported to Postgres in pg_stat_activity.
const ApplicationName = "betfair-instruments"

// BuildConnString builds a PostgreSQL connection URL from config.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}, "application_name": {ApplicationName}}.Encode(),
	}
	return u.String()
}
