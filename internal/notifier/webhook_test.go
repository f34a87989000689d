package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ble-route-timer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookNotifier_NotifyResult(t *testing.T) {
	var received models.RaceResult
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, 5*time.Second, 0, zap.NewNop())

	duration := 12.5
	result := &models.RaceResult{
		RunID:           "run-1",
		RouteName:       "a_line",
		DurationSeconds: &duration,
		StopReason:      "completion_timer",
		FinishedAt:      time.Now(),
	}

	require.NoError(t, n.NotifyResult(context.Background(), result))
	assert.Equal(t, "run-1", received.RunID)
	assert.Equal(t, "a_line", received.RouteName)
}

func TestWebhookNotifier_NotifyResult_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, 5*time.Second, 0, zap.NewNop())

	err := n.NotifyResult(context.Background(), &models.RaceResult{RunID: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook returned status 500")
}

func TestWebhookNotifier_NotifyResult_Unreachable(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1", time.Second, 0, zap.NewNop())

	err := n.NotifyResult(context.Background(), &models.RaceResult{RunID: "run-1"})
	assert.Error(t, err)
}
