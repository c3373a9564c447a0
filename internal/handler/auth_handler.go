package handler

import (
	"errors"
	"net/http"

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

// AuthHandler owns the password identity path: registration, login, logout,
// password changes. Both it and the OAuth handler produce the same session
// artifact, a signed token attached as a cookie.
type AuthHandler struct {
	store   store.Store
	tokens  *jwtutil.Service
	cookies *session.Manager
}

// NewAuthHandler creates the password-path handler.
func NewAuthHandler(st store.Store, tokens *jwtutil.Service, cookies *session.Manager) *AuthHandler {
	return &AuthHandler{store: st, tokens: tokens, cookies: cookies}
}

// Register creates an identity and its farm in one request. The sequence is
// create user, create farm, link user to farm. A farm creation failure
// deletes the just-created user so an orphaned identity cannot log into a
// farm-scoped area; a link failure is surfaced as a registration failure
// with the farm left for operational cleanup.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()
	ctx := c.Request().Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		FarmName string `json:"farm_name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" || req.FarmName == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password and farm_name are required"})
	}

	// The slug is the farm's only external address, so a name that derives
	// an empty one is rejected before anything is written.
	slug := model.DeriveSlug(req.FarmName)
	if slug == "" {
		prometheus.RecordAuthError("invalid_farm_name")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "farm_name must contain letters or digits"})
	}

	user := model.User{
		Email: model.NormalizeEmail(req.Email),
		Name:  req.Name,
		Role:  model.RoleOwner,
	}
	if err := user.SetPassword(req.Password); err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	if err := h.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			log.Warn("Email already registered", zap.String("email", user.Email))
			prometheus.RecordAuthError("email_already_exists")
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Error("Failed to create user", zap.Error(err))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	farm := model.Farm{
		Name:    req.FarmName,
		Slug:    slug,
		OwnerID: user.ID,
	}
	if err := h.store.CreateFarm(ctx, &farm); err != nil {
		// Compensate: the identity must not survive without its farm.
		if delErr := h.store.DeleteUser(ctx, user.ID); delErr != nil {
			log.Error("Failed to delete orphaned user after farm creation failure",
				zap.Uint("user_id", user.ID), zap.Error(delErr))
		}
		if errors.Is(err, store.ErrDuplicateSlug) {
			log.Warn("Farm name already taken", zap.String("slug", slug))
			prometheus.RecordAuthError("farm_name_taken")
			return c.JSON(http.StatusConflict, echo.Map{"error": "farm name already taken"})
		}
		log.Error("Failed to create farm", zap.Error(err))
		prometheus.RecordAuthError("farm_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	if err := h.store.LinkUserToFarm(ctx, user.ID, farm.ID); err != nil {
		log.Error("Failed to link user to farm, farm left for cleanup",
			zap.Uint("user_id", user.ID),
			zap.Uint("farm_id", farm.ID),
			zap.Error(err))
		prometheus.RecordAuthError("farm_link_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	token, _, err := h.tokens.Issue(user.ID, farm.Slug)
	if err != nil {
		log.Error("Failed to issue token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}
	h.cookies.Attach(c, token)
	prometheus.IncreaseActiveTokens()

	log.Info("User registered",
		zap.String("email", user.Email),
		zap.String("farm_slug", farm.Slug))

	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
		"farm": map[string]interface{}{
			"name": farm.Name,
			"slug": farm.Slug,
		},
		"redirect": middleware.DashboardPath(farm.Slug),
	})
}

// Login authenticates an email/password pair. Unknown email and wrong
// password produce the same response so the endpoint cannot be used to
// enumerate accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()
	ctx := c.Request().Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, err := h.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if !user.CheckPassword(req.Password) {
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	slug, err := h.farmSlugFor(c, user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	token, _, err := h.tokens.Issue(user.ID, slug)
	if err != nil {
		log.Error("Failed to issue token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	h.cookies.Attach(c, token)
	prometheus.IncreaseActiveTokens()

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.String("farm_slug", slug))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
		"redirect": middleware.DashboardPath(slug),
	})
}

// Logout clears the session cookies. Logging out an already-cleared session
// succeeds the same way; the session gauge only moves when there was a
// session to end.
func (h *AuthHandler) Logout(c echo.Context) error {
	_, hadSession := h.cookies.Read(c)
	h.cookies.Clear(c)
	if hadSession {
		prometheus.DecreaseActiveTokens()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// ForgotPassword accepts a reset request. The response is identical whether
// or not the account exists; delivery is an external concern.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	log.Info("Password reset requested")
	return c.JSON(http.StatusAccepted, echo.Map{
		"message": "if the account exists, a reset link has been sent",
	})
}

// ChangePassword verifies the current password and stores a new hash. This
// is the only operation that recomputes the hash after registration.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	userID, ok := c.Get(middleware.UserIDKey).(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_password is required"})
	}

	user, err := h.store.FindUserByID(ctx, userID)
	if err != nil {
		log.Error("Failed to load user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	if !user.CheckPassword(req.CurrentPassword) {
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.store.UpdateUser(ctx, user); err != nil {
		log.Error("Failed to update user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// farmSlugFor resolves the slug of the user's linked farm, empty when the
// user has not created one yet.
func (h *AuthHandler) farmSlugFor(c echo.Context, user *model.User) (string, error) {
	if user.FarmID == nil {
		return "", nil
	}
	farm, err := h.store.FindFarmByID(c.Request().Context(), *user.FarmID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Dangling reference; treat as not onboarded.
			return "", nil
		}
		logger.FromContext(c).Error("Failed to resolve user's farm", zap.Error(err))
		return "", err
	}
	return farm.Slug, nil
}
