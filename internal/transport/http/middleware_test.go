package httptransport

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func TestInstrumentLogsRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	router := mux.NewRouter()
	router.Use(Instrument(logger))
	router.HandleFunc("/activities/{name}/signup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodPost)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/activities/Chess%20Club/signup", nil))

	require.Equal(t, http.StatusTeapot, rr.Code)
	require.Contains(t, buf.String(), "route=/activities/{name}/signup")
	require.Contains(t, buf.String(), "status=418")
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	rr := httptest.NewRecorder()
	CORS("http://localhost:5173")(next).ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/activities", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	CORS("")(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/activities", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
