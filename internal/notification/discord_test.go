package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscord(t *testing.T) {
	var got []DiscordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg DiscordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		got = append(got, msg)
		if strings.HasSuffix(r.URL.Path, "/broken") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := context.Background()
	d := NewDiscord(srv.URL+"/errors", "")
	require.NoError(t, d.Error(ctx, "2 datasets failed"))
	require.NoError(t, d.Success(ctx, "skipped, no webhook"))

	require.Len(t, got, 1)
	assert.Equal(t, colorRed, got[0].Embeds[0].Color)
	assert.Contains(t, got[0].Embeds[0].Description, "2 datasets failed")

	assert.Error(t, NewDiscord(srv.URL+"/broken", "").Error(ctx, "x"))
}

func TestDiscordTruncatesLongMessages(t *testing.T) {
	var desc string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg DiscordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		desc = msg.Embeds[0].Description
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscord("", srv.URL).Success(context.Background(), strings.Repeat("a", 5000)))
	assert.Len(t, desc, maxDescription)
}
