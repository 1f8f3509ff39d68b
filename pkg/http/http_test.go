package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	Ticker string `param:"ticker" validate:"required,max=5"`
	Steps  int    `query:"steps" default:"30" validate:"gte=1,lte=365"`
	Day    string `query:"day" validate:"omitempty,datetime=2006-01-02"`
}

func bindContext(method, target, ticker string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("ticker")
	c.SetParamValues(ticker)
	return c
}

func TestReadAndValidateRequest(t *testing.T) {
	var r sampleRequest
	if errs := ReadAndValidateRequest(bindContext(http.MethodPost, "/x?day=2025-01-02", "AAPL"), &r); errs != nil {
		t.Fatalf("unexpected errors %+v", errs)
	}
	if r.Ticker != "AAPL" || r.Steps != 30 || r.Day != "2025-01-02" {
		t.Fatalf("unexpected bind %+v", r)
	}

	var bad sampleRequest
	errs := ReadAndValidateRequest(bindContext(http.MethodGet, "/x?steps=900&day=tomorrow", "TOOLONG"), &bad)
	if len(errs) != 3 {
		t.Fatalf("expected 3 validation errors, got %+v", errs)
	}
	if errs[0].Code != "ERR_MAX" || errs[1].Code != "ERR_LTE" || errs[2].Code != "ERR_DATETIME" {
		t.Fatalf("unexpected codes %+v", errs)
	}
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	wrapped := errors.Join(errors.New("ctx"), NotFoundError("no model"))
	if err := AppErrorResponse(c, wrapped); err != nil {
		t.Fatalf("response: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Status != 404 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "AAPL" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("missing symbol"))
			return
		}
		_, _ = w.Write([]byte(`{"close":"1.5"}`))
	}))
	defer srv.Close()

	c := NewClient(WithHTTPClient(srv.Client()))
	var out struct {
		Close string `json:"close"`
	}
	opts := &RequestOptions{URL: srv.URL, QueryParams: map[string][]string{"symbol": {"AAPL"}}}
	if err := c.SendAndParse(context.Background(), opts, &out); err != nil || out.Close != "1.5" {
		t.Fatalf("unexpected %+v %v", out, err)
	}

	err := c.SendAndParse(context.Background(), &RequestOptions{URL: srv.URL}, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest || se.Body != "missing symbol" {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestServerCORSFollowsOrigins(t *testing.T) {
	preflight := func(s *Server) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
		req.Header.Set(echo.HeaderOrigin, "https://app.example")
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight(NewServer(nil, nil, WithCORSOrigins("https://app.example")))
	if rec.Code != http.StatusNoContent || rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "https://app.example" {
		t.Fatalf("cors enabled: status %d headers %v", rec.Code, rec.Header())
	}
	rec = preflight(NewServer(nil, nil, WithCORSOrigins()))
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Fatalf("cors should be off, headers %v", rec.Header())
	}
}
