package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyStatus(t *testing.T, h *HealthHandler) (int, HealthStatus) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body struct {
		Data HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body.Data
}

func TestReady_WithoutRedis(t *testing.T) {
	code, status := readyStatus(t, NewHealthHandler(fakePinger{}, nil, time.Second))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status.Checks["database"])
	assert.Equal(t, "disabled", status.Checks["redis"])
}

func TestReady_WithRedis(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	redisMock.ExpectPing().SetVal("PONG")

	code, status := readyStatus(t, NewHealthHandler(fakePinger{}, client, time.Second))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status.Checks["redis"])
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestReady_StoreDown(t *testing.T) {
	code, status := readyStatus(t, NewHealthHandler(fakePinger{err: errors.New("connection refused")}, nil, time.Second))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", status.Status)
	assert.Contains(t, status.Checks["database"], "connection refused")
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(fakePinger{}, nil, 0).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
