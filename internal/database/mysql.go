package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

const defaultMySQLPort = 3306

// mysqlConfig builds the driver configuration from connection parameters.
// A URL, when set, is a go-sql-driver DSN and wins over the other fields.
func mysqlConfig(p Params) (*mysql.Config, error) {
	if p.URL != "" {
		cfg, err := mysql.ParseDSN(p.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
		}

		cfg.ParseTime = true

		return cfg, nil
	}

	port := p.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.ParseTime = true
	cfg.MultiStatements = false

	if p.Charset != "" {
		cfg.Params = map[string]string{"charset": p.Charset}
	}

	if !p.CreateDatabase {
		cfg.DBName = p.Database
	}

	return cfg, nil
}

func openMySQL(ctx context.Context, p Params, logger *slog.Logger) (Session, error) {
	cfg, err := mysqlConfig(p)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	s, err := newSQLSession(ctx, sql.OpenDB(connector), MySQL, logger)
	if err != nil {
		return nil, err
	}

	if p.CreateDatabase && p.Database != "" {
		if err := useDatabase(ctx, s, p.Database, p.Charset); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}

		logger.InfoContext(ctx, "database ready", "database", p.Database)
	}

	return s, nil
}

// useDatabase creates the database if missing and selects it for the
// pinned connection.
func useDatabase(ctx context.Context, s *sqlSession, name, charset string) error {
	stmt := "CREATE DATABASE IF NOT EXISTS " + MySQL.QuoteIdent(name)
	if charset != "" {
		stmt += " CHARACTER SET " + charset
	}

	if _, err := s.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("creating database %s: %w", name, err)
	}

	if _, err := s.Exec(ctx, "USE "+MySQL.QuoteIdent(name)); err != nil {
		return fmt.Errorf("selecting database %s: %w", name, err)
	}

	return nil
}
