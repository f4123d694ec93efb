package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSummary(t *testing.T) {
	t.Parallel()

	var (
		path string
		msg  sendMessage
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&msg)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer server.Close()

	n := NewNotifier("token", "42", server.URL+"/")
	err := n.PublishSummary(context.Background(), "Created 2 nodes.\nUpdated 1 node.")
	require.NoError(t, err)

	assert.Equal(t, "/bottoken/sendMessage", path)
	assert.Equal(t, "42", msg.ChatID)
	assert.Equal(t, "Created 2 nodes.\nUpdated 1 node.", msg.Text)
	assert.True(t, msg.DisableWebPagePreview)
}

func TestPublishSummaryStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	}))
	defer server.Close()

	err := NewNotifier("token", "42", server.URL).PublishSummary(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "bot was blocked by the user")
}

func TestPublishSummaryRejectedWithOK(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer server.Close()

	err := NewNotifier("token", "42", server.URL).PublishSummary(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestPublishSummarySplitsLongText(t *testing.T) {
	t.Parallel()

	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg sendMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		texts = append(texts, msg.Text)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	line := strings.Repeat("a", 3000)
	err := NewNotifier("token", "42", server.URL).PublishSummary(context.Background(), line+"\n"+line)
	require.NoError(t, err)
	assert.Equal(t, []string{line, line}, texts)
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"abcdefghij", "kl"}, splitMessage("abcdefghijkl", 10))
	assert.Equal(t, []string{"abc", "defghij"}, splitMessage("abc\ndefghij", 10))
}

func TestPublishSummaryMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "42", "")
	assert.False(t, n.Enabled())
	require.Error(t, n.PublishSummary(context.Background(), "x"))
}
