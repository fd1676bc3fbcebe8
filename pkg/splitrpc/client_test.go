package splitrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret", Timeout: timeout})
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplitOrder_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/split-order", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var req SplitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint(42), req.OriginalOrderID)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"successful_splits":2,"total_stores":2,"results":[
			{"store_name":"Jongno","success":true,"order_id":100},
			{"store_name":"Jamsil","success":true,"order_id":101}]}`))
	}, time.Second)

	resp, err := client.SplitOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.SuccessfulSplits)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, uint(101), *resp.Results[1].OrderID)
}

func TestSplitOrder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, ErrUnexpectedStatus},
		{"not found", http.StatusNotFound, ``, ErrUnexpectedStatus},
		{"unsuccessful", http.StatusOK, `{"success":false,"successful_splits":1,"total_stores":2,"results":[{"store_name":"A","success":true,"order_id":1},{"store_name":"B","success":false,"error":"insert failed"}]}`, ErrUnsuccessful},
		{"malformed json", http.StatusOK, `{"success":`, ErrInvalidResponse},
		{"missing order id", http.StatusOK, `{"success":true,"successful_splits":1,"total_stores":1,"results":[{"store_name":"A","success":true}]}`, ErrInvalidResponse},
		{"counts inconsistent", http.StatusOK, `{"success":true,"successful_splits":3,"total_stores":2,"results":[]}`, ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, time.Second)

			_, err := client.SplitOrder(context.Background(), 1)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSplitOrder_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := client.SplitOrder(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNetworkError)
	assert.Less(t, time.Since(start), 2*time.Second)
}
