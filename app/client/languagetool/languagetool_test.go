package languagetool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lingotutor/app/config"

	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
	"matches": [
		{
			"message": "Did you mean \"went\"?",
			"shortMessage": "Grammar error",
			"offset": 2,
			"length": 9,
			"replacements": [{"value": "went"}, {"value": "have gone"}],
			"rule": {
				"id": "HAVE_PART_AGREEMENT",
				"category": {"name": "Grammar"}
			}
		}
	]
}`

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	cfg := &config.Config{
		LanguageTool: config.LanguageTool{
			BaseURL:  server.URL,
			Language: "en-US",
		},
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		checkURL:   server.URL + "/check",
	}

	return client, server
}

func TestCheck(t *testing.T) {
	var gotForm map[string]string

	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/check", r.URL.Path)
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{
			"text":     r.PostFormValue("text"),
			"language": r.PostFormValue("language"),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	})
	defer server.Close()

	result, err := client.Check(context.Background(), "I have went to the store yesterday")
	require.NoError(t, err)

	require.Equal(t, "I have went to the store yesterday", gotForm["text"])
	require.Equal(t, "en-US", gotForm["language"])

	require.Len(t, result.Matches, 1)
	match := result.Matches[0]
	require.Equal(t, 2, match.Offset)
	require.Equal(t, 9, match.Length)
	require.Equal(t, "HAVE_PART_AGREEMENT", match.RuleID)
	require.Equal(t, "Grammar", match.Category)
	require.Equal(t, []string{"went", "have gone"}, match.Replacements)

	require.Equal(t, "I went to the store yesterday", result.CorrectedText)
}

func TestCheckServerError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.Check(context.Background(), "some text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestCheckSendsAPIKey(t *testing.T) {
	var gotAuth string

	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"matches": []}`))
	})
	defer server.Close()

	client.cfg.LanguageTool.APIKey = "secret"

	result, err := client.Check(context.Background(), "all good here")
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Empty(t, result.Matches)
	require.Equal(t, "all good here", result.CorrectedText)
}

func TestApplyCorrections(t *testing.T) {
	text := "Me and him goes to school"

	corrected := applyCorrections(text, []Match{
		{Offset: 0, Length: 10, Replacements: []string{"He and I"}},
		{Offset: 11, Length: 4, Replacements: []string{"go"}},
	})
	require.Equal(t, "He and I go to school", corrected)

	// Matches without replacements and out-of-bounds spans are skipped.
	corrected = applyCorrections(text, []Match{
		{Offset: 0, Length: 2},
		{Offset: 100, Length: 5, Replacements: []string{"x"}},
	})
	require.Equal(t, text, corrected)
}
