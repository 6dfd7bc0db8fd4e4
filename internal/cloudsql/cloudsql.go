// Package cloudsql builds Postgres connection strings for both direct URLs
// and Cloud SQL instances mounted as Unix sockets on Cloud Run.
package cloudsql

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/emarutian/recipesync/internal/config"
)

// ErrNotConfigured is returned when neither a URL nor an instance is set.
var ErrNotConfigured = errors.New("neither DATABASE_URL nor INSTANCE_CONNECTION_NAME is set")

var passwordParam = regexp.MustCompile(`password=\S+`)

// BuildDatabaseURL returns cfg.URL when set, otherwise a key/value DSN that
// connects through /cloudsql/<instance>. An empty password selects IAM auth.
func BuildDatabaseURL(cfg config.DatabaseConfig) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	if cfg.InstanceConnectionName == "" {
		return "", ErrNotConfigured
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	socketPath := socketPath(cfg.InstanceConnectionName)
	if cfg.Password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			socketPath, cfg.User, cfg.Password, cfg.Name), nil
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
		socketPath, cfg.User, cfg.Name), nil
}

// ConnectionInfo describes the configured connection for logging, with
// credentials redacted.
func ConnectionInfo(cfg config.DatabaseConfig) map[string]string {
	switch {
	case cfg.URL != "":
		return map[string]string{
			"connection_type": "direct",
			"database_url":    Redact(cfg.URL),
		}
	case cfg.InstanceConnectionName != "":
		return map[string]string{
			"connection_type": "cloud_sql",
			"instance":        cfg.InstanceConnectionName,
			"user":            cfg.User,
			"database":        cfg.Name,
			"socket_path":     socketPath(cfg.InstanceConnectionName),
		}
	default:
		return map[string]string{"connection_type": "none"}
	}
}

// Redact hides the password in either URL or key/value form.
func Redact(connStr string) string {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return passwordParam.ReplaceAllString(connStr, "password=xxxxx")
}

func socketPath(instance string) string {
	return "/cloudsql/" + instance
}
