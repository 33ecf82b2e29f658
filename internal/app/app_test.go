package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teambilling/internal/clock"
	"teambilling/internal/config"
)

func memoryConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
server:
  port: 8080
database:
  type: memory
admin:
  token_hash: "$2a$04$abcdefghijklmnopqrstuu"
` + extra))
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t, ""), clock.NewFixed(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Health(context.Background()))

	report, err := a.Runner.RunDailyEvaluation(context.Background(), time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, report.TenantsEvaluated)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := New(context.Background(), memoryConfig(t, "redis:\n  url: redis://"+mr.Addr()+"/0\n"), clock.System())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Health(context.Background()))
	mr.Close()
	assert.Error(t, a.Health(context.Background()))
}

func TestChannels(t *testing.T) {
	channels, err := Channels(context.Background(), config.NotificationsConfig{
		SendGrid: config.SendGridConfig{APIKey: "SG.key", FromEmail: "billing@example.test"},
		WhatsApp: config.WhatsAppConfig{WebhookURL: "https://wa.example.test/send"},
	})
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "email", channels[0].Name())
	assert.Equal(t, "whatsapp", channels[1].Name())

	channels, err = Channels(context.Background(), config.NotificationsConfig{})
	require.NoError(t, err)
	assert.Empty(t, channels)
}
