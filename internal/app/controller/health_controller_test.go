package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/internal/changefeed"
	"github.com/ikkim/udonggeum-fulfillment/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	states map[string]reconcile.State
}

func (m *fakeMonitor) State(relation string) reconcile.State { return m.states[relation] }
func (m *fakeMonitor) StaleDropped() int64 { return 3 }

type healthBody struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	ChangeFeed   map[string]string `json:"change_feed"`
	StaleDropped int64             `json:"stale_dropped"`
}

func TestHealthController_Health(t *testing.T) {
	e := setupEnv(t)

	tests := []struct {
		name         string
		states       map[string]reconcile.State
		pingErr      error
		expectedCode int
		status       string
	}{
		{
			name:         "all live",
			states:       map[string]reconcile.State{changefeed.RelationOrders: reconcile.StateLive, changefeed.RelationDivisions: reconcile.StateLive},
			expectedCode: http.StatusOK,
			status:       "healthy",
		},
		{
			name:         "feed degraded",
			states:       map[string]reconcile.State{changefeed.RelationOrders: reconcile.StateLive, changefeed.RelationDivisions: reconcile.StateDegraded},
			expectedCode: http.StatusOK,
			status:       "degraded",
		},
		{
			name:         "redis down",
			states:       map[string]reconcile.State{changefeed.RelationOrders: reconcile.StateLive, changefeed.RelationDivisions: reconcile.StateLive},
			pingErr:      errors.New("connection refused"),
			expectedCode: http.StatusOK,
			status:       "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pingErr := tt.pingErr
			ctrl := NewHealthController(e.db, &fakeMonitor{states: tt.states}, map[string]func(context.Context) error{
				"redis": func(context.Context) error { return pingErr },
			})
			router := gin.New()
			router.GET("/health", ctrl.Health)

			w := doJSON(t, router, http.MethodGet, "/health", nil)
			assert.Equal(t, tt.expectedCode, w.Code)

			var body healthBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, "ok", body.Checks["database"])
			assert.Equal(t, string(tt.states[changefeed.RelationDivisions]), body.ChangeFeed[changefeed.RelationDivisions])
			assert.Equal(t, int64(3), body.StaleDropped)
		})
	}
}

func TestHealthController_DatabaseDown(t *testing.T) {
	e := setupEnv(t)
	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	router := gin.New()
	router.GET("/health", NewHealthController(e.db, nil, nil).Health)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Nil(t, body.ChangeFeed)
}
