package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xuri/excelize/v2"

	"github.com/sebasr/wifi-registry/internal/auth"
	"github.com/sebasr/wifi-registry/internal/config"
	"github.com/sebasr/wifi-registry/internal/database"
	"github.com/sebasr/wifi-registry/internal/enrichment"
	"github.com/sebasr/wifi-registry/internal/export"
	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/repository"
	"github.com/sebasr/wifi-registry/internal/server"
)

const jwtSecret = "test-secret-integration"

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestDatabase creates a migrated PostgreSQL database using Testcontainers
func setupTestDatabase(t *testing.T) (*database.DB, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Set Docker socket for Colima if not already set
	if os.Getenv("DOCKER_HOST") == "" {
		colimaSocket := os.ExpandEnv("$HOME/.colima/default/docker.sock")
		if _, err := os.Stat(colimaSocket); err == nil {
			os.Setenv("DOCKER_HOST", "unix://"+colimaSocket)
			// Disable Ryuk container for Colima (socket can't be mounted)
			os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
			t.Logf("Using Colima Docker socket: %s (Ryuk disabled)", colimaSocket)
		}
	}

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := postgres.Host(ctx)
	require.NoError(t, err)

	port, err := postgres.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.New(&config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     host,
		Port:     port.Port(),
		Name:     "testdb",
		User:     "testuser",
		Password: "testpass",
		SSLMode:  "disable",
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
		_ = postgres.Terminate(ctx)
	}

	return db, cleanup
}

type registry struct {
	router *gin.Engine
	repo   repository.AccessPointRepository
	token  string
}

func newRegistry(t *testing.T, db *database.DB) *registry {
	t.Helper()

	repo := repository.NewSQLAccessPointRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimit: 1000, UploadRateLimit: 1000, MaxUploadBytes: 1 << 20},
		Auth: config.AuthConfig{
			JWTSecret:         jwtSecret,
			JWTAccessTokenTTL: time.Hour,
			Required:          true,
		},
	}

	ctrl := ingest.NewController(repo, ingest.WithHistoryDedup(true))
	router := server.New(&server.Dependencies{
		Config:     cfg,
		Repo:       repo,
		Controller: ctrl,
		Machine:    enrichment.NewMachine(enrichment.NewMemoryStore(0), ctrl),
		DB:         db,
	})

	token, _, err := auth.NewJWTService(jwtSecret, time.Hour).GenerateOperatorToken("integration")
	require.NoError(t, err)

	return &registry{router: router, repo: repo, token: token}
}

func (r *registry) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.token))
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

func observation(bssid string, rssi int) string {
	return fmt.Sprintf(`{"bssid":%q,"frequency":2412,"rssi":%d,"ssid":"Lab","timestamp":1707708416,"channel_bandwidth":"20","capabilities":"WPA2"}`, bssid, rssi)
}

func TestRegistryFlow(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	r := newRegistry(t, db)

	t.Run("health reports the database", func(t *testing.T) {
		w := r.do(http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"ok"`)
	})

	t.Run("single record", func(t *testing.T) {
		w := r.do(http.MethodPost, "/api/v1/access-points", observation("aa:bb:cc:dd:ee:01", -40))
		require.Equal(t, http.StatusCreated, w.Code)

		w = r.do(http.MethodPost, "/api/v1/access-points", observation("AA:BB:CC:DD:EE:01", -40))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("batch skips history and in-batch repeats", func(t *testing.T) {
		body := "[" + strings.Join([]string{
			observation("aa:bb:cc:dd:ee:01", -40),
			observation("aa:bb:cc:dd:ee:02", -41),
			observation("aa:bb:cc:dd:ee:02", -41),
			observation("aa:bb:cc:dd:ee:03", 12),
		}, ",") + "]"

		w := r.do(http.MethodPost, "/api/v1/access-points/batch", body)
		require.Equal(t, http.StatusOK, w.Code)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, float64(1), result["succeeded"])
		assert.Equal(t, float64(2), result["duplicates"])
		assert.Equal(t, float64(1), result["failed"])
	})

	t.Run("enrichment conversation", func(t *testing.T) {
		require.Equal(t, http.StatusOK, r.do(http.MethodPost, "/api/v1/enrichment/it/start", `{"bssid":"aa:bb:cc:dd:ee:02"}`).Code)
		require.Equal(t, http.StatusOK, r.do(http.MethodPost, "/api/v1/enrichment/it/input", `{"text":"7"}`).Code)
		require.Equal(t, http.StatusOK, r.do(http.MethodPost, "/api/v1/enrichment/it/input", `{"text":"open sesame"}`).Code)

		stored, err := r.repo.Get(context.Background(), "AA:BB:CC:DD:EE:02")
		require.NoError(t, err)
		require.NotNil(t, stored.PavilionNumber)
		assert.Equal(t, 7, *stored.PavilionNumber)
		require.NotNil(t, stored.Password)
		assert.Equal(t, "open sesame", *stored.Password)
	})

	t.Run("spreadsheet export", func(t *testing.T) {
		w := r.do(http.MethodGet, "/api/v1/export.xlsx", "")
		require.Equal(t, http.StatusOK, w.Code)

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows(export.SheetName)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("update and delete", func(t *testing.T) {
		w := r.do(http.MethodPut, "/api/v1/access-points/aa:bb:cc:dd:ee:01", observation("aa:bb:cc:dd:ee:01", -70))
		require.Equal(t, http.StatusOK, w.Code)

		stored, err := r.repo.Get(context.Background(), "AA:BB:CC:DD:EE:01")
		require.NoError(t, err)
		assert.Equal(t, -70, stored.RSSI)

		assert.Equal(t, http.StatusNoContent, r.do(http.MethodDelete, "/api/v1/access-points/aa:bb:cc:dd:ee:01", "").Code)
		assert.Equal(t, http.StatusNotFound, r.do(http.MethodGet, "/api/v1/access-points/aa:bb:cc:dd:ee:01", "").Code)
	})
}

func TestProtectedEndpointAccess(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	r := newRegistry(t, db)

	t.Run("write without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/access-points", strings.NewReader(observation("aa:bb:cc:dd:ee:09", -40)))
		w := httptest.NewRecorder()

		r.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("write with invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/access-points", strings.NewReader(observation("aa:bb:cc:dd:ee:09", -40)))
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		r.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("read without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/access-points", nil)
		w := httptest.NewRecorder()

		r.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("export without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/export.json", nil)
		w := httptest.NewRecorder()

		r.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
