package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"news-analyzer/internal/analyzer"
	"news-analyzer/internal/events"
	"news-analyzer/internal/ml_client"
)

// newUpstream fakes the prediction service.
func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func happyUpstream(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/predict":
		_, _ = w.Write([]byte(`{"label":"Fake","score":0.873,"pattern":"clickbait","abstain":true}`))
	case "/explain":
		_, _ = w.Write([]byte(`{"top_terms":[{"term":"urgente","weight":0.5},{"term":"viral","weight":0.3}]}`))
	case "/metrics":
		_, _ = w.Write([]byte(`{"total":2,"by_label":[{"label":"Fake","count":2,"avg_score":0.9}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setupTestRouter(t *testing.T, upstream *httptest.Server) (*gin.Engine, *events.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	client := ml_client.NewClient(upstream.URL, 5*time.Second, logger)
	bus := events.NewBus(events.DefaultBuffer, logger)
	controller := analyzer.NewController(client, nil, nil, bus, logger)

	r := gin.New()
	NewHandler(controller, client, bus, logger).RegisterRoutes(r)
	return r, bus
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyze_Success(t *testing.T) {
	router, bus := setupTestRouter(t, newUpstream(t, happyUpstream))
	signals, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	w := postJSON(router, "/api/analyze", `{"url":"https://diario.pe/nota"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		View analyzer.ViewState `json:"view"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.View.CardVisible)
	assert.Equal(t, "Confianza: 87.3% • Patrón: clickbait", response.View.Confidence)
	assert.Equal(t, analyzer.BadgeNegative, response.View.BadgeStyle)
	assert.True(t, response.View.WarningVisible)
	assert.Equal(t, "Términos influyentes: urgente, viral", response.View.Terms)
	assert.True(t, response.View.TriggerEnabled)

	ev := <-signals
	assert.Equal(t, events.SignalDone, ev.Signal)
}

func TestAnalyze_ValidationError(t *testing.T) {
	called := false
	router, bus := setupTestRouter(t, newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	signals, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	w := postJSON(router, "/api/analyze", `{"text":"muy corto","url":"  "}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Escribe al menos 30 caracteres o ingresa una URL."}`, w.Body.String())
	assert.False(t, called)
	assert.Equal(t, events.SignalError, (<-signals).Signal)
}

func TestAnalyze_UpstreamError(t *testing.T) {
	router, _ := setupTestRouter(t, newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"model unavailable"}`))
	}))

	w := postJSON(router, "/api/analyze", `{"url":"https://diario.pe/nota"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"model unavailable"}`, w.Body.String())
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	router, _ := setupTestRouter(t, newUpstream(t, happyUpstream))

	w := postJSON(router, "/api/analyze", `{"text": 12}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeForm(t *testing.T) {
	t.Run("renders result", func(t *testing.T) {
		router, _ := setupTestRouter(t, newUpstream(t, happyUpstream))

		form := url.Values{"text": {strings.Repeat("noticia ", 5)}, "url": {""}}
		req, _ := http.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Confianza: 87.3%")
		assert.Contains(t, body, `class="badge negative"`)
		assert.Contains(t, body, `<section id="card" class="">`)
		assert.NotContains(t, body, `role="alert"`)
	})

	t.Run("renders alert", func(t *testing.T) {
		router, _ := setupTestRouter(t, newUpstream(t, happyUpstream))

		form := url.Values{"text": {"corto"}}
		req, _ := http.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Error: Escribe al menos 30 caracteres o ingresa una URL.")
		assert.Contains(t, body, `<section id="card" class="hidden">`)
	})
}

func TestAnalyzeForm_BusyShowsIdlePage(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	router, _ := setupTestRouter(t, newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/predict" {
			close(started)
			<-release
		}
		happyUpstream(w, r)
	}))

	done := make(chan int, 1)
	go func() {
		done <- postJSON(router, "/api/analyze", `{"url":"https://diario.pe/nota"}`).Code
	}()
	<-started

	form := url.Values{"url": {"https://diario.pe/otra"}}
	req, _ := http.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)

	assert.Equal(t, http.StatusConflict, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Error: analysis already in progress")
	assert.Contains(t, body, ">Analizar</button>")
	assert.NotContains(t, body, "Analizando")
}

func TestIndex(t *testing.T) {
	t.Run("starts empty", func(t *testing.T) {
		router, _ := setupTestRouter(t, newUpstream(t, happyUpstream))

		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), ">Analizar</button>")
		assert.Contains(t, w.Body.String(), `<section id="card" class="hidden">`)
	})

	t.Run("does not show another visitor's result", func(t *testing.T) {
		router, _ := setupTestRouter(t, newUpstream(t, happyUpstream))

		w := postJSON(router, "/api/analyze", `{"url":"https://diario.pe/nota"}`)
		require.Equal(t, http.StatusOK, w.Code)

		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `<section id="card" class="hidden">`)
		assert.NotContains(t, body, "Confianza: 87.3%")
		assert.NotContains(t, body, "clickbait")
	})
}

func TestGetStats(t *testing.T) {
	t.Run("proxies metrics", func(t *testing.T) {
		router, _ := setupTestRouter(t, newUpstream(t, happyUpstream))

		req, _ := http.NewRequest(http.MethodGet, "/api/stats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"total":2,"by_label":[{"label":"Fake","count":2,"avg_score":0.9}]}`, w.Body.String())
	})

	t.Run("upstream failure", func(t *testing.T) {
		router, _ := setupTestRouter(t, newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		req, _ := http.NewRequest(http.MethodGet, "/api/stats", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":"HTTP 503"}`, w.Body.String())
	})
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestRouter(t, newUpstream(t, happyUpstream))

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestEvents_BroadcastsSignals(t *testing.T) {
	router, bus := setupTestRouter(t, newUpstream(t, happyUpstream))
	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	w := postJSON(router, "/api/analyze", `{"text":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = postJSON(router, "/api/analyze", `{"url":"https://diario.pe/nota"}`)
	require.Equal(t, http.StatusOK, w.Code)

	typ, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, "analysis:error", string(msg))

	_, msg, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "analysis:done", string(msg))

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return bus.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusFor(nil))
	assert.Equal(t, http.StatusConflict, statusFor(analyzer.ErrBusy))
	assert.Equal(t, http.StatusBadGateway, statusFor(&ml_client.APIError{StatusCode: 500}))
}
