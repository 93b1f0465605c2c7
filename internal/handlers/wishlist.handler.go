package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/tewereus/prime-property/internal/model"
	xhttp "github.com/tewereus/prime-property/pkg/http"
)

type WishlistService interface {
	Add(ctx context.Context, userID, propertyID int64) error
	Remove(ctx context.Context, userID, propertyID int64) error
	List(ctx context.Context, userID int64) ([]*model.WishlistEntry, error)
}

type WishlistHandler struct {
	svc WishlistService
}

func RegisterWishlistRoutes(e *router.Group, h *WishlistHandler) {
	e.POST("/wishlist", h.AddToWishlist)
	e.DELETE("/wishlist", h.RemoveFromWishlist)
	e.GET("/wishlist", h.ListWishlist)
}

func NewWishlistHandler(wishlistService WishlistService) *WishlistHandler {
	return &WishlistHandler{svc: wishlistService}
}

type wishlistRequest struct {
	UserID     int64 `json:"user_id"`
	PropertyID int64 `json:"property_id"`
}

type wishlistListResponse struct {
	Items []*model.WishlistEntry `json:"items"`
}

func (h *WishlistHandler) AddToWishlist(ctx *xhttp.RequestCtx) {
	var req wishlistRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == 0 || req.PropertyID == 0 {
		writeError(ctx, 400, "user_id and property_id are required")
		return
	}

	if err := h.svc.Add(ctx, req.UserID, req.PropertyID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "added"})
}

func (h *WishlistHandler) RemoveFromWishlist(ctx *xhttp.RequestCtx) {
	var req wishlistRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == 0 || req.PropertyID == 0 {
		writeError(ctx, 400, "user_id and property_id are required")
		return
	}

	if err := h.svc.Remove(ctx, req.UserID, req.PropertyID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "removed"})
}

func (h *WishlistHandler) ListWishlist(ctx *xhttp.RequestCtx) {
	userID, err := strconv.ParseInt(query(ctx, "user_id"), 10, 64)
	if err != nil || userID == 0 {
		writeError(ctx, 400, "user_id is required")
		return
	}

	items, err := h.svc.List(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, wishlistListResponse{Items: items})
}
