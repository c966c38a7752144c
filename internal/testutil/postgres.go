// Package testutil は統合テスト用のPostgreSQLコンテナを提供する。
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/usergate/internal/database"
)

const (
	postgresUser     = "usergate"
	postgresPassword = "usergate"
	postgresDB       = "usergate_test"
)

// IntegrationEnabled は統合テストを実行するかを返す。
// -shortが指定されている場合、またはUSERGATE_INTEGRATION=1でない場合はfalse。
func IntegrationEnabled() bool {
	return !testing.Short() && os.Getenv("USERGATE_INTEGRATION") == "1"
}

// StartPostgres はPostgreSQLコンテナを起動してマイグレーションを適用し、接続済みのDBを返す。
// コンテナはテスト終了時に破棄される。
func StartPostgres(t *testing.T) (*sql.DB, string) {
	t.Helper()
	if !IntegrationEnabled() {
		t.Skip("統合テストはUSERGATE_INTEGRATION=1の場合のみ実行する")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, host, port.Port(), postgresDB)

	db, err := database.Open(url, database.PoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// ポートが開いてもサーバーの初期化が終わっていない場合がある
	require.Eventually(t, func() bool {
		return db.PingContext(ctx) == nil
	}, 30*time.Second, 200*time.Millisecond, "postgres did not become ready")

	require.NoError(t, database.RunMigrations(url))
	return db, url
}

// TruncateUsers はusersテーブルを空にする。
func TruncateUsers(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE users`)
	require.NoError(t, err)
}
