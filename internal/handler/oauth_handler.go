package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kevinjam/farmkeeper-sub001/internal/middleware"
	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/internal/store"
	"github.com/kevinjam/farmkeeper-sub001/pkg/jwtutil"
	"github.com/kevinjam/farmkeeper-sub001/pkg/logger"
	"github.com/kevinjam/farmkeeper-sub001/pkg/session"
	"github.com/kevinjam/farmkeeper-sub001/prometheus"
)

// OAuthHandler exchanges a provider assertion for the same session artifact
// the password path produces. Provider negotiation and assertion
// verification happen upstream; by the time Exchange runs the email is
// trusted.
type OAuthHandler struct {
	store   store.Store
	tokens  *jwtutil.Service
	cookies *session.Manager
}

// NewOAuthHandler creates the OAuth bridge handler.
func NewOAuthHandler(st store.Store, tokens *jwtutil.Service, cookies *session.Manager) *OAuthHandler {
	return &OAuthHandler{store: st, tokens: tokens, cookies: cookies}
}

// Exchange resolves or provisions the identity behind a verified provider
// assertion and issues a session token. A user without a farm is a valid
// outcome: they get a token with no farm slug and are routed to onboarding.
func (h *OAuthHandler) Exchange(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.OAuthExchangeCounter.Inc()
	ctx := c.Request().Context()

	var req struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse OAuth exchange request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" {
		prometheus.RecordAuthError("incomplete_assertion")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	user, err := h.store.FindUserByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user = &model.User{
			Email:     model.NormalizeEmail(req.Email),
			Name:      req.Name,
			AvatarURL: req.AvatarURL,
			Role:      model.RoleOwner,
		}
		// The random password is never disclosed; the account is only
		// reachable through the provider until a reset sets a real one.
		if err := user.SetPassword(uuid.New().String()); err != nil {
			log.Error("Failed to hash placeholder password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		if err := h.store.CreateUser(ctx, user); err != nil {
			log.Error("Failed to provision user", zap.Error(err))
			prometheus.RecordAuthError("user_creation_failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		log.Info("Provisioned user from OAuth assertion", zap.String("email", user.Email))
	case err != nil:
		log.Error("Failed to look up user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	slug := ""
	if user.FarmID != nil {
		farm, err := h.store.FindFarmByID(ctx, *user.FarmID)
		if err == nil {
			slug = farm.Slug
		} else if !errors.Is(err, store.ErrNotFound) {
			log.Error("Failed to resolve user's farm", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	token, _, err := h.tokens.Issue(user.ID, slug)
	if err != nil {
		log.Error("Failed to issue token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	h.cookies.Attach(c, token)
	prometheus.IncreaseActiveTokens()

	log.Info("OAuth exchange completed",
		zap.String("email", user.Email),
		zap.Bool("onboarding_required", slug == ""))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
		"onboarding_required": slug == "",
		"redirect":            middleware.DashboardPath(slug),
	})
}
