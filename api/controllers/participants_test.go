package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/api/middleware"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

type fakeParticipantsService struct {
	statuses []string
	err      error
}

func (f *fakeParticipantsService) Join(ctx context.Context, userID, rideID uuid.UUID) error {
	return f.err
}

func (f *fakeParticipantsService) Leave(ctx context.Context, userID, rideID uuid.UUID) error {
	return f.err
}

func (f *fakeParticipantsService) SetStatus(ctx context.Context, userID, rideID uuid.UUID, status string) error {
	f.statuses = append(f.statuses, status)
	return f.err
}

func (f *fakeParticipantsService) IsParticipant(ctx context.Context, userID, rideID uuid.UUID) (bool, error) {
	return false, f.err
}

func postStatus(t *testing.T, svc *fakeParticipantsService, body string) *httptest.ResponseRecorder {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := SetParticipantStatus(svc, logg)

	rideID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/rides/"+rideID.String()+"/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	ctx := middleware.WithUserID(req.Context(), uuid.New().String())
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("rideID", rideID.String())
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	rec := httptest.NewRecorder()
	handler(rec, req.WithContext(ctx))
	return rec
}

func TestSetParticipantStatusRejectsPending(t *testing.T) {
	svc := &fakeParticipantsService{}
	rec := postStatus(t, svc, `{"status":"pending"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.statuses) != 0 {
		t.Fatalf("service should not be called, got %v", svc.statuses)
	}
}

func TestSetParticipantStatusAcceptsDecision(t *testing.T) {
	svc := &fakeParticipantsService{}
	rec := postStatus(t, svc, `{"status":"accepted"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.statuses) != 1 || svc.statuses[0] != "accepted" {
		t.Fatalf("expected accepted passed through, got %v", svc.statuses)
	}
}
