package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebasr/wifi-registry/internal/database"
	"github.com/sebasr/wifi-registry/internal/ingest"
	"github.com/sebasr/wifi-registry/internal/models"
	"github.com/sebasr/wifi-registry/internal/repository"
)

const observation = `{"bssid":"aa:bb:cc:dd:ee:ff","frequency":2412,"rssi":-50,"ssid":"Lab","timestamp":1707708416,"channel_bandwidth":"20","capabilities":"WPA2"}`

func observationFor(bssid string) string {
	return strings.Replace(observation, "aa:bb:cc:dd:ee:ff", bssid, 1)
}

// setupSQLiteRepo opens a fresh migrated SQLite store
func setupSQLiteRepo(t *testing.T) *repository.SQLAccessPointRepository {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "wifi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewSQLAccessPointRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func setupAccessPointTest(t *testing.T) (*gin.Engine, *repository.SQLAccessPointRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := setupSQLiteRepo(t)
	handler := NewAccessPointHandler(repo, ingest.NewController(repo), nil)

	router := gin.New()
	registerAccessPointRoutes(router, handler)
	return router, repo
}

func registerAccessPointRoutes(router *gin.Engine, handler *AccessPointHandler) {
	router.POST("/access-points", handler.Create)
	router.POST("/access-points/batch", handler.CreateBatch)
	router.POST("/access-points/upload", handler.Upload)
	router.GET("/access-points", handler.List)
	router.GET("/access-points/:bssid", handler.Get)
	router.PUT("/access-points/:bssid", handler.Update)
	router.DELETE("/access-points/:bssid", handler.Delete)
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestAccessPointHandler_Create(t *testing.T) {
	router, repo := setupAccessPointTest(t)

	w := doRequest(router, http.MethodPost, "/access-points", observation)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", decodeBody(t, w)["bssid"])

	stored, err := repo.Get(context.Background(), "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, "Lab", stored.SSID)
}

func TestAccessPointHandler_CreateRejections(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
		expectedField  string
	}{
		{
			name:           "malformed JSON",
			body:           `{"bssid":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  ingest.KindParse,
		},
		{
			name:           "array",
			body:           `[` + observation + `]`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  ingest.KindStructural,
		},
		{
			name:           "rssi out of range",
			body:           strings.Replace(observation, "-50", "-150", 1),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  ingest.KindValidation,
			expectedField:  "rssi",
		},
		{
			name:           "missing ssid",
			body:           strings.Replace(observation, `"ssid":"Lab",`, "", 1),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  ingest.KindValidation,
			expectedField:  "ssid",
		},
		{
			name:           "example payload",
			body:           observationFor(ingest.ExampleBSSID),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  ingest.KindExampleData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupAccessPointTest(t)

			w := doRequest(router, http.MethodPost, "/access-points", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			response := decodeBody(t, w)
			assert.Equal(t, tt.expectedError, response["error"])
			assert.NotEmpty(t, response["message"])
			if tt.expectedField != "" {
				assert.Equal(t, tt.expectedField, response["field"])
			} else {
				assert.NotContains(t, response, "field")
			}
		})
	}
}

func TestAccessPointHandler_CreateConflict(t *testing.T) {
	router, _ := setupAccessPointTest(t)

	first := doRequest(router, http.MethodPost, "/access-points", observation)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doRequest(router, http.MethodPost, "/access-points", observationFor("AA:BB:CC:DD:EE:FF"))

	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, ingest.KindConflict, decodeBody(t, second)["error"])
}

func TestAccessPointHandler_CreateDatabaseError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRepo := repository.NewMockAccessPointRepository()
	mockRepo.CreateFunc = func(_ context.Context, _ *models.AccessPoint) error {
		return errors.New("disk full")
	}

	router := gin.New()
	registerAccessPointRoutes(router, NewAccessPointHandler(mockRepo, ingest.NewController(mockRepo), nil))

	w := doRequest(router, http.MethodPost, "/access-points", observation)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, ingest.KindStorage, response["error"])
	assert.NotContains(t, response["message"], "disk full")
}

func TestAccessPointHandler_CreateTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := setupSQLiteRepo(t)
	handler := NewAccessPointHandler(repo, ingest.NewController(repo), nil).WithMaxUploadBytes(16)

	router := gin.New()
	registerAccessPointRoutes(router, handler)

	w := doRequest(router, http.MethodPost, "/access-points", observation)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAccessPointHandler_CreateBatch(t *testing.T) {
	router, _ := setupAccessPointTest(t)

	body := `[` + observation + `,` + observation + `,` + strings.Replace(observationFor("aa:bb:cc:dd:ee:01"), "-50", "7", 1) + `,"x"]`
	w := doRequest(router, http.MethodPost, "/access-points/batch", body)

	require.Equal(t, http.StatusOK, w.Code)

	var result models.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, result.Stored)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, ingest.KindValidation, result.Errors[0].Kind)
	assert.Equal(t, 2, result.Errors[0].Index)
	assert.Equal(t, ingest.KindStructural, result.Errors[1].Kind)
}

func TestAccessPointHandler_CreateBatchContainer(t *testing.T) {
	router, repo := setupAccessPointTest(t)

	w := doRequest(router, http.MethodPost, "/access-points/batch", `{"data":[`+observation+`]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["succeeded"])

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAccessPointHandler_CreateBatchRejectsSingleObject(t *testing.T) {
	router, repo := setupAccessPointTest(t)

	w := doRequest(router, http.MethodPost, "/access-points/batch", observation)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ingest.KindStructural, decodeBody(t, w)["error"])

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records, "a rejected batch stores nothing")
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/access-points/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAccessPointHandler_Upload(t *testing.T) {
	tests := []struct {
		name           string
		filename       string
		content        string
		expectedStatus int
		check          func(*testing.T, map[string]interface{})
	}{
		{
			name:           "array file",
			filename:       "scan.json",
			content:        `[` + observation + `,` + observationFor("aa:bb:cc:dd:ee:01") + `]`,
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, r map[string]interface{}) {
				assert.Equal(t, float64(2), r["succeeded"])
			},
		},
		{
			name:           "single record file",
			filename:       "one.JSON",
			content:        observation,
			expectedStatus: http.StatusCreated,
			check: func(t *testing.T, r map[string]interface{}) {
				assert.Equal(t, "AA:BB:CC:DD:EE:FF", r["bssid"])
			},
		},
		{
			name:           "wrong extension",
			filename:       "scan.csv",
			content:        observation,
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, r map[string]interface{}) {
				assert.Equal(t, "invalid_request", r["error"])
			},
		},
		{
			name:           "truncated array",
			filename:       "broken.json",
			content:        `[` + observation + `,{"bssid":`,
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, r map[string]interface{}) {
				assert.Equal(t, ingest.KindParse, r["error"])
				partial, ok := r["partial"].(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, float64(1), partial["succeeded"])
			},
		},
		{
			name:           "empty file",
			filename:       "empty.json",
			content:        "",
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, r map[string]interface{}) {
				assert.Equal(t, ingest.KindParse, r["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupAccessPointTest(t)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, tt.filename, tt.content))

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.check(t, decodeBody(t, w))
		})
	}
}

func TestAccessPointHandler_UploadMissingFile(t *testing.T) {
	router, _ := setupAccessPointTest(t)

	w := doRequest(router, http.MethodPost, "/access-points/upload", observation)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccessPointHandler_ListAndGet(t *testing.T) {
	router, _ := setupAccessPointTest(t)

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/access-points", observationFor("aa:bb:cc:dd:ee:01")).Code)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/access-points", observation).Code)

	w := doRequest(router, http.MethodGet, "/access-points", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", list.Records[0].BSSID)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", list.Records[1].BSSID)

	w = doRequest(router, http.MethodGet, "/access-points/aa:bb:cc:dd:ee:01", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", decodeBody(t, w)["bssid"])

	w = doRequest(router, http.MethodGet, "/access-points/AA:BB:CC:DD:EE:99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ingest.KindNotFound, decodeBody(t, w)["error"])
}

func TestAccessPointHandler_ListDatabaseError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRepo := repository.NewMockAccessPointRepository()
	mockRepo.ListFunc = func(_ context.Context) ([]*models.AccessPoint, error) {
		return nil, errors.New("connection reset")
	}

	router := gin.New()
	registerAccessPointRoutes(router, NewAccessPointHandler(mockRepo, ingest.NewController(mockRepo), nil))

	w := doRequest(router, http.MethodGet, "/access-points", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAccessPointHandler_Update(t *testing.T) {
	router, repo := setupAccessPointTest(t)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/access-points", observation).Code)

	body := `{"frequency":5180,"rssi":-61,"ssid":"Lab 5G","timestamp":1707708500,"channel_bandwidth":"80","capabilities":"WPA3","floor":2}`
	w := doRequest(router, http.MethodPut, "/access-points/aa:bb:cc:dd:ee:ff", body)

	require.Equal(t, http.StatusOK, w.Code)

	stored, err := repo.Get(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, 5180, stored.Frequency)
	assert.Equal(t, "Lab 5G", stored.SSID)
	require.NotNil(t, stored.Floor)
	assert.Equal(t, 2, *stored.Floor)
}

func TestAccessPointHandler_UpdateRejections(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "bssid change",
			path:           "/access-points/aa:bb:cc:dd:ee:ff",
			body:           observationFor("aa:bb:cc:dd:ee:02"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  ingest.KindValidation,
		},
		{
			name:           "unknown record",
			path:           "/access-points/aa:bb:cc:dd:ee:03",
			body:           observationFor("aa:bb:cc:dd:ee:03"),
			expectedStatus: http.StatusNotFound,
			expectedError:  ingest.KindNotFound,
		},
		{
			name:           "invalid bandwidth",
			path:           "/access-points/aa:bb:cc:dd:ee:ff",
			body:           strings.Replace(observation, `"20"`, `"25"`, 1),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  ingest.KindValidation,
		},
		{
			name:           "not an object",
			path:           "/access-points/aa:bb:cc:dd:ee:ff",
			body:           `[1]`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  ingest.KindStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupAccessPointTest(t)
			require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/access-points", observation).Code)

			w := doRequest(router, http.MethodPut, tt.path, tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedError, decodeBody(t, w)["error"])
		})
	}
}

func TestAccessPointHandler_Delete(t *testing.T) {
	router, repo := setupAccessPointTest(t)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/access-points", observation).Code)

	w := doRequest(router, http.MethodDelete, "/access-points/aa:bb:cc:dd:ee:ff", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := repo.Get(context.Background(), "AA:BB:CC:DD:EE:FF")
	assert.ErrorIs(t, err, repository.ErrAccessPointNotFound)

	w = doRequest(router, http.MethodDelete, "/access-points/aa:bb:cc:dd:ee:ff", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
