package controllers

import (
	"net/http"

	"github.com/pelotonhq/peloton-backend/api/responses"
	"github.com/pelotonhq/peloton-backend/api/validators"
	"github.com/pelotonhq/peloton-backend/internal/participants"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

// Pending rows only ever come from join, the status endpoint moves a row
// between accepted and declined.
type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted declined"`
}

// JoinRide adds the caller to a ride's roster as pending.
func JoinRide(svc participants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participants service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rideID, err := rideIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Join(r.Context(), userID, rideID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "joined"})
	}
}

// LeaveRide removes the caller from a ride's roster. Leaving a ride the
// caller never joined succeeds quietly.
func LeaveRide(svc participants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participants service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rideID, err := rideIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Leave(r.Context(), userID, rideID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "left"})
	}
}

// SetParticipantStatus updates the caller's own roster status.
func SetParticipantStatus(svc participants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participants service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rideID, err := rideIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetStatus(r.Context(), userID, rideID, body.Status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": body.Status})
	}
}
