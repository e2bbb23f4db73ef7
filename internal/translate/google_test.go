package translate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DeafMist/econ-news-radar/backend/internal/translate"
	"github.com/stretchr/testify/require"
)

func TestGoogleTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "gtx", q.Get("client"))
		require.Equal(t, "ko", q.Get("tl"))
		require.Equal(t, "Fed holds rates. Markets rally.", q.Get("q"))
		_, _ = w.Write([]byte(`[[["연준 금리 동결. ","Fed holds rates. ",null,null,10],["시장 반등.","Markets rally.",null,null,10]],null,"en"]`))
	}))
	defer srv.Close()

	g := translate.NewGoogle(srv.URL, time.Second, 100)
	got := g.Translate(context.Background(), "  Fed holds rates. Markets rally. ", "ko")

	require.NoError(t, got.Err)
	require.True(t, got.Translated)
	require.Equal(t, "연준 금리 동결. 시장 반등.", got.Text)
}

func TestGoogleTranslateFailuresKeepOriginal(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{name: "rate limited", handler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{name: "malformed body", handler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>captcha</html>`))
		}},
		{name: "unexpected shape", handler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[null]`))
		}},
		{name: "empty translation", handler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[[[" ","x"]]]`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got := translate.NewGoogle(srv.URL, time.Second, 100).Translate(context.Background(), "hello", "ko")
			require.False(t, got.Translated)
			require.Error(t, got.Err)
			require.Equal(t, "hello", got.Text)
		})
	}
}

func TestGoogleTranslateEmptyInputSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	got := translate.NewGoogle(srv.URL, time.Second, 100).Translate(context.Background(), "   ", "ko")
	require.False(t, called)
	require.False(t, got.Translated)
	require.NoError(t, got.Err)
}

func TestGoogleTranslateCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[["x","y"]]]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := translate.NewGoogle(srv.URL, time.Second, 100).Translate(ctx, "hello", "ko")
	require.False(t, got.Translated)
	require.ErrorIs(t, got.Err, context.Canceled)
	require.Equal(t, "hello", got.Text)
}
