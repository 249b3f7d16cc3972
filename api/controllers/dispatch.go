package controllers

import (
	"net/http"

	"github.com/angelmondragon/homechef-backend/api/responses"
	"github.com/angelmondragon/homechef-backend/internal/dispatch"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

// SellerAssignRider binds the next rider of the seller's area to an order item.
// A repeated call for an already bound item returns the existing binding.
func SellerAssignRider(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}
		email, err := actorEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "orderItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.AssignRider(r.Context(), itemID, email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}
