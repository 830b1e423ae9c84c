package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierFiltersEvents(t *testing.T) {
	var got []discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body discordPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := NewNotifier([]Sender{NewDiscordSender(srv.URL)}, []string{"settlement.unpaid"}, logger)

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, "listing.sold", "sold", "ignored"))
	require.NoError(t, n.Notify(ctx, "settlement.unpaid", "Unpaid settlement", "seller s1 owed 40"))

	require.Len(t, got, 1)
	require.Len(t, got[0].Embeds, 1)
	assert.Equal(t, "Unpaid settlement", got[0].Embeds[0].Title)
	assert.Equal(t, "seller s1 owed 40", got[0].Embeds[0].Description)
}

func TestDiscordSenderSuppressesMentionsAndTruncates(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	long := strings.Repeat("x", discordMaxDescription+100)
	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Unpaid settlement", long))

	assert.Equal(t, discordUsername, raw["username"])
	mentions, ok := raw["allowed_mentions"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, mentions["parse"])

	embeds, ok := raw["embeds"].([]any)
	require.True(t, ok)
	require.Len(t, embeds, 1)
	desc := embeds[0].(map[string]any)["description"].(string)
	assert.Len(t, desc, discordMaxDescription)
	assert.True(t, strings.HasSuffix(desc, "..."))
}

func TestDiscordSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 404")
}

func TestTelegramSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendMessage", r.URL.Path)
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestNotifierWithoutSenders(t *testing.T) {
	n := NewNotifier(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
}
