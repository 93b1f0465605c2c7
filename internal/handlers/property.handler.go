package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/internal/repository"
	"github.com/tewereus/prime-property/internal/services"
	xhttp "github.com/tewereus/prime-property/pkg/http"
)

type PropertyService interface {
	Create(ctx context.Context, req model.PropertyCreateRequest) (*model.Property, error)
	Get(ctx context.Context, id, callerID int64) (*model.Property, error)
	List(ctx context.Context, f model.PropertyFilter, callerID int64) ([]*model.Property, int64, error)
	ListOwner(ctx context.Context, ownerID int64, f model.PropertyFilter) ([]*model.PropertyWithTransactions, int64, error)
	Update(ctx context.Context, id, callerID int64, patch model.PropertyPatch) (*model.Property, error)
}

type ViewService interface {
	Increment(ctx context.Context, propertyID int64) error
	GetCount(ctx context.Context, propertyID int64) (int64, error)
	Total(ctx context.Context) (int64, error)
}

type PropertyHandler struct {
	svc   PropertyService
	views ViewService
}

func RegisterPropertyRoutes(e *router.Group, h *PropertyHandler) {
	e.POST("/properties", h.CreateProperty)
	e.GET("/properties", h.ListProperties)
	e.GET("/properties/owner", h.ListOwnerProperties)
	e.GET("/properties/{id}", h.GetProperty)
	e.PUT("/properties/{id}", h.UpdateProperty)
	e.POST("/properties/{id}/views", h.RecordView)
	e.GET("/views", h.TotalViews)
}

func NewPropertyHandler(propertyService PropertyService, viewService ViewService) *PropertyHandler {
	return &PropertyHandler{
		svc:   propertyService,
		views: viewService,
	}
}

type createPropertyRequest struct {
	OwnerID     int64          `json:"owner_id"`
	Type        string         `json:"property_type"`
	Use         string         `json:"listing_use"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Attributes  map[string]any `json:"attributes"`
	PriceCents  int64          `json:"price_cents"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Images      []string       `json:"images"`
}

type updatePropertyRequest struct {
	UserID      int64          `json:"user_id"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Attributes  map[string]any `json:"attributes"`
	PriceCents  *int64         `json:"price_cents"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	Images      []string       `json:"images"`
}

type propertyListResponse struct {
	Items []*model.Property `json:"items"`
	Total int64             `json:"total"`
}

type ownerListResponse struct {
	Items []*model.PropertyWithTransactions `json:"items"`
	Total int64                             `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PropertyHandler) CreateProperty(ctx *xhttp.RequestCtx) {
	var req createPropertyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p, err := h.svc.Create(ctx, model.PropertyCreateRequest{
		OwnerID:     req.OwnerID,
		Type:        model.PropertyType(req.Type),
		Use:         model.ListingUse(req.Use),
		Title:       req.Title,
		Description: req.Description,
		Attributes:  req.Attributes,
		PriceCents:  req.PriceCents,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Images:      req.Images,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, p)
}

func (h *PropertyHandler) GetProperty(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid property id")
		return
	}

	callerID, _ := strconv.ParseInt(query(ctx, "user_id"), 10, 64)

	p, err := h.svc.Get(ctx, id, callerID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, p)
}

func (h *PropertyHandler) ListProperties(ctx *xhttp.RequestCtx) {
	f := parsePropertyFilter(ctx)
	callerID, _ := strconv.ParseInt(query(ctx, "user_id"), 10, 64)

	items, total, err := h.svc.List(ctx, f, callerID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, propertyListResponse{Items: items, Total: total})
}

func (h *PropertyHandler) ListOwnerProperties(ctx *xhttp.RequestCtx) {
	ownerID, err := strconv.ParseInt(query(ctx, "owner_id"), 10, 64)
	if err != nil || ownerID == 0 {
		writeError(ctx, 400, "owner_id is required")
		return
	}

	items, total, err := h.svc.ListOwner(ctx, ownerID, parsePropertyFilter(ctx))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, ownerListResponse{Items: items, Total: total})
}

func (h *PropertyHandler) UpdateProperty(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid property id")
		return
	}

	var req updatePropertyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == 0 {
		writeError(ctx, 400, "user_id is required")
		return
	}

	p, err := h.svc.Update(ctx, id, req.UserID, model.PropertyPatch{
		Title:       req.Title,
		Description: req.Description,
		Attributes:  req.Attributes,
		PriceCents:  req.PriceCents,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Images:      req.Images,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, p)
}

// RecordView counts one view. Non-active properties absorb the hit silently,
// so the response carries no hint about hidden listings.
func (h *PropertyHandler) RecordView(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid property id")
		return
	}

	if err := h.views.Increment(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}

	count, err := h.views.GetCount(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]int64{"view_count": count})
}

func (h *PropertyHandler) TotalViews(ctx *xhttp.RequestCtx) {
	total, err := h.views.Total(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]int64{"total_views": total})
}

func parsePropertyFilter(ctx *xhttp.RequestCtx) model.PropertyFilter {
	var f model.PropertyFilter

	if v := query(ctx, "property_type"); v != "" {
		t := model.PropertyType(v)
		f.Type = &t
	}
	if v := query(ctx, "listing_use"); v != "" {
		u := model.ListingUse(v)
		f.Use = &u
	}
	if v := query(ctx, "state"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.States = append(f.States, model.PropertyState(parts[i]))
			}
		}
	}
	if v := query(ctx, "owner_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.OwnerID = &id
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	return f
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps service and repository sentinels to HTTP statuses.
// Anything not recognized is treated as a bad request rather than leaking
// a 500.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrTransactionNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrNotOwner):
		writeError(ctx, 403, err.Error())
	case errors.Is(err, services.ErrStateConflict),
		errors.Is(err, services.ErrPaymentPending),
		errors.Is(err, repository.ErrStateConflict),
		errors.Is(err, repository.ErrDuplicateTransaction),
		errors.Is(err, repository.ErrAlreadyResolved):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrMissingLocation),
		errors.Is(err, repository.ErrInvalidState):
		writeError(ctx, 422, err.Error())
	default:
		writeError(ctx, 400, err.Error())
	}
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
