//go:build integration

package integration

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

const (
	postgresImage = "postgres:16-alpine"
	mysqlImage    = "mysql:8.0"
	testDB        = "migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// backend is a database server the suite runs against.
type backend struct {
	name  string
	setup func(t *testing.T) database.Params
}

func backends() []backend {
	return []backend{
		{name: "postgres", setup: SetupPostgres},
		{name: "mysql", setup: SetupMySQL},
	}
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (string, int) {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)

	n, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return host, n
}

// SetupPostgres starts a PostgreSQL 16 container and returns the
// parameters to connect to it. The container is terminated when the test
// completes.
func SetupPostgres(t *testing.T) database.Params {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")

	return database.Params{
		Driver:   database.DriverPostgres,
		URL:      "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + strconv.Itoa(port) + "/" + testDB + "?sslmode=disable",
		Database: testDB,
	}
}

// SetupMySQL starts a MySQL 8 container and returns the parameters to
// connect to it as root.
func SetupMySQL(t *testing.T) database.Params {
	t.Helper()

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        mysqlImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": testPassword,
			"MYSQL_DATABASE":      testDB,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("port: 3306  MySQL Community Server"),
			wait.ForListeningPort("3306/tcp"),
		).WithStartupTimeoutDefault(120 * time.Second),
	}, "3306/tcp")

	return database.Params{
		Driver:   database.DriverMySQL,
		Host:     host,
		Port:     port,
		User:     "root",
		Password: testPassword,
		Database: testDB,
		Charset:  "utf8mb4",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Open connects to p and closes the session when the test completes.
func Open(t *testing.T, p database.Params) database.Session {
	t.Helper()

	ctx := context.Background()

	s, err := database.Open(ctx, p, testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close(ctx) })

	return s
}

func source(t *testing.T, name, content string) *migration.Source {
	t.Helper()

	src, err := migration.Parse(name, strings.NewReader(content))
	require.NoError(t, err)

	return src
}
