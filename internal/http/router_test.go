package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/maintenance-cmms/internal/application"
)

func testRouter(validator SessionValidator) http.Handler {
	logger := quietLogger()
	return NewRouter(RouterConfig{
		Auth: NewAuthHandler(&authServiceStub{
			authenticateFunc: func(context.Context, application.AuthenticateParams) (application.AuthenticateResult, error) {
				return application.AuthenticateResult{
					User:    application.User{ID: "tech-1", Role: application.RoleTech},
					Session: application.Session{Token: "token-a", ExpiresAt: handlerEpoch.Add(24 * time.Hour)},
				}, nil
			},
		}, logger),
		WorkOrders:        testWorkOrderHandler(nil, nil, nil),
		Timer:             NewTimerHandler(&timerServiceStub{}, &timerSwitcherStub{}, logger),
		Middleware:        []func(http.Handler) http.Handler{RequestLogger(logger)},
		SessionMiddleware: RequireSession(validator, logger),
	})
}

func TestRouter_LoginBypassesSessionMiddleware(t *testing.T) {
	t.Parallel()

	router := testRouter(&sessionValidatorStub{err: application.ErrNotFound})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"tech@example.com","password":"pw"}`)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 without a session, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	t.Parallel()

	router := testRouter(&sessionValidatorStub{})

	for _, target := range []string{"/timer/active", "/work-orders/"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401 for %s, got %d", target, rec.Code)
		}
	}
}

func TestRouter_SessionTokenReachesHandlers(t *testing.T) {
	t.Parallel()

	router := testRouter(&sessionValidatorStub{principal: techContext()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/timer/active", nil)
	req.Header.Set("Authorization", "Bearer token-a")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
