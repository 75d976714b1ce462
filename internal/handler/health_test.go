package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/tubescribe/internal/handler"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		ping       error
		ready      bool
		wantStatus int
		wantBody   string
	}{
		{name: "live ignores the store", ping: errors.New("down"), wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "ready with store up", ready: true, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "ready with store down", ready: true, ping: errors.New("down"), wantStatus: http.StatusServiceUnavailable, wantBody: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(pingFunc(func(context.Context) error { return tt.ping }), zerolog.Nop())
			serveFn := h.HandleLive
			if tt.ready {
				serveFn = h.HandleReady
			}

			rr := httptest.NewRecorder()
			serveFn(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}
