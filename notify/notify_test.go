package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immo_scrooper/models"
)

func ptr[T any](v T) *T { return &v }

func sampleListing() *models.NormalizedListing {
	return &models.NormalizedListing{
		URL:        "https://example.at/expose/1?a=1&b=2",
		Title:      ptr("Altbau <renoviert>"),
		District:   ptr("1070"),
		Address:    ptr("Zieglergasse 14"),
		PriceTotal: ptr(450000.0),
		AreaM2:     ptr(85.0),
		PricePerM2: ptr(5294.12),
		Rooms:      ptr(3.0),
		YearBuilt:  ptr(1980),
		Score:      ptr(52.4),
		Mortgage:   &models.MortgageEstimate{MonthlyPayment: 1573.2},
		Transit:    &models.ProximityResult{WalkingMinutes: 6},
	}
}

func TestFormat(t *testing.T) {
	msg := Format(sampleListing())

	assert.Contains(t, msg, "€ 450.000")
	assert.Contains(t, msg, "€ 5.294")
	assert.Contains(t, msg, "85,0 m²")
	assert.Contains(t, msg, "1070 - Zieglergasse 14")
	assert.Contains(t, msg, "6 min")
	assert.Contains(t, msg, "Altbau &lt;renoviert&gt;")
	assert.Contains(t, msg, `href="https://example.at/expose/1?a=1&amp;b=2"`)

	empty := Format(&models.NormalizedListing{URL: "https://example.at/x"})
	assert.Contains(t, empty, "k.A.")
	assert.NotContains(t, empty, "Baujahr")
}

func TestTelegram_Send(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botsecret/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.Client(), "secret", "-100123").WithBaseURL(srv.URL)
	require.NoError(t, tg.Notify(context.Background(), sampleListing()))

	assert.Equal(t, "-100123", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, strings.HasPrefix(got.Text, "🏠"))
}

func TestTelegram_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegram(srv.Client(), "secret", "nope").WithBaseURL(srv.URL).Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
