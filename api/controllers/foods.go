package controllers

import (
	"net/http"

	"github.com/angelmondragon/homechef-backend/api/responses"
	"github.com/angelmondragon/homechef-backend/api/validators"
	"github.com/angelmondragon/homechef-backend/internal/foods"
	"github.com/angelmondragon/homechef-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/homechef-backend/pkg/errors"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/pagination"
)

const maxCursorLen = 512

// FoodsList pages through every listing, newest first.
func FoodsList(svc foods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "foods service unavailable"))
			return
		}

		limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.QueryString(r, "cursor", maxCursorLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit, Cursor: cursor}

		page, err := svc.ListAll(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// FoodsForArea lists the listings of sellers in the caller's area.
func FoodsForArea(svc foods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "foods service unavailable"))
			return
		}
		email, err := actorEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForArea(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func SellerCreateFood(svc foods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "foods service unavailable"))
			return
		}
		email, err := actorEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body foods.CreateFoodInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		food, err := svc.Create(r.Context(), email, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, food)
	}
}

func SellerListFoods(svc foods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "foods service unavailable"))
			return
		}
		email, err := actorEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListBySeller(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func SellerUpdateFood(svc foods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "foods service unavailable"))
			return
		}
		email, err := actorEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		foodID, err := pathUUID(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body foods.UpdateFoodInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		food, err := svc.Update(r.Context(), email, foodID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, food)
	}
}

// SellerFoodOrders lists confirmed order items for one of the caller's listings.
func SellerFoodOrders(foodSvc foods.Service, orderSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if foodSvc == nil || orderSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		email, err := actorEmail(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		foodID, err := pathUUID(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := foodSvc.RequireOwner(r.Context(), email, foodID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := orderSvc.ListConfirmedForFood(r.Context(), foodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
