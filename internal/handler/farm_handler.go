package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kevinjam/farmkeeper-sub001/internal/guard"
	"github.com/kevinjam/farmkeeper-sub001/internal/middleware"
	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/internal/store"
	"github.com/kevinjam/farmkeeper-sub001/pkg/jwtutil"
	"github.com/kevinjam/farmkeeper-sub001/pkg/logger"
	"github.com/kevinjam/farmkeeper-sub001/pkg/session"
	"github.com/kevinjam/farmkeeper-sub001/prometheus"
)

// FarmHandler owns farm creation (the onboarding flow) and farm-scoped
// profile and settings operations.
type FarmHandler struct {
	store   store.Store
	tokens  *jwtutil.Service
	cookies *session.Manager
}

// NewFarmHandler creates the farm handler.
func NewFarmHandler(st store.Store, tokens *jwtutil.Service, cookies *session.Manager) *FarmHandler {
	return &FarmHandler{store: st, tokens: tokens, cookies: cookies}
}

// Create finishes onboarding for an authenticated user with no farm yet
// (typically one provisioned through OAuth). It runs the create-then-link
// sequence and re-issues the session token bound to the new slug so the next
// request lands on the dashboard.
func (h *FarmHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordFarmOperation("create")
	ctx := c.Request().Context()

	userID, ok := c.Get(middleware.UserIDKey).(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	user, err := h.store.FindUserByID(ctx, userID)
	if err != nil {
		log.Error("Failed to load user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if user.FarmID != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "farm already exists"})
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	slug := model.DeriveSlug(req.Name)
	if slug == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name must contain letters or digits"})
	}

	farm := model.Farm{
		Name:    req.Name,
		Slug:    slug,
		OwnerID: user.ID,
	}
	if err := h.store.CreateFarm(ctx, &farm); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "farm name already taken"})
		}
		log.Error("Failed to create farm", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "farm creation failed"})
	}
	if err := h.store.LinkUserToFarm(ctx, user.ID, farm.ID); err != nil {
		log.Error("Failed to link user to farm, farm left for cleanup",
			zap.Uint("user_id", user.ID),
			zap.Uint("farm_id", farm.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "farm creation failed"})
	}

	token, _, err := h.tokens.Issue(user.ID, farm.Slug)
	if err != nil {
		log.Error("Failed to issue token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	h.cookies.Attach(c, token)

	log.Info("Farm created",
		zap.String("slug", farm.Slug),
		zap.Uint("owner_id", user.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"farm":     farm,
		"redirect": middleware.DashboardPath(farm.Slug),
	})
}

// Get returns the farm profile. Ownership was already asserted by the guard.
func (h *FarmHandler) Get(c echo.Context) error {
	prometheus.RecordFarmOperation("access")
	return c.JSON(http.StatusOK, echo.Map{"farm": guard.FarmFromContext(c)})
}

// UpdateSettings applies partial settings updates. The slug never changes,
// even when the farm is renamed.
func (h *FarmHandler) UpdateSettings(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordFarmOperation("update")
	farm := guard.FarmFromContext(c)

	var req struct {
		Name          string `json:"name"`
		Currency      string `json:"currency"`
		Locale        string `json:"locale"`
		Timezone      string `json:"timezone"`
		Notifications *bool  `json:"notifications"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name != "" {
		farm.Name = req.Name
	}
	if req.Currency != "" {
		farm.Currency = req.Currency
	}
	if req.Locale != "" {
		farm.Locale = req.Locale
	}
	if req.Timezone != "" {
		farm.Timezone = req.Timezone
	}
	if req.Notifications != nil {
		farm.Notifications = *req.Notifications
	}

	if err := h.store.UpdateFarm(c.Request().Context(), farm); err != nil {
		log.Error("Failed to update farm settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"farm": farm})
}

// Dashboard returns the farm summary backing the dashboard page.
func (h *FarmHandler) Dashboard(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordFarmOperation("access")
	ctx := c.Request().Context()
	farm := guard.FarmFromContext(c)

	eggs, err := h.store.ListEggRecords(ctx, farm.ID)
	if err != nil {
		log.Error("Failed to list egg records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	expenses, err := h.store.ListExpenses(ctx, farm.ID)
	if err != nil {
		log.Error("Failed to list expenses", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	var totalEggs int
	for _, rec := range eggs {
		totalEggs += rec.Quantity
	}
	var totalExpenses int64
	for _, exp := range expenses {
		totalExpenses += exp.Amount
	}

	return c.JSON(http.StatusOK, echo.Map{
		"farm": farm,
		"summary": map[string]interface{}{
			"egg_records":    len(eggs),
			"total_eggs":     totalEggs,
			"expense_count":  len(expenses),
			"total_expenses": totalExpenses,
		},
	})
}
