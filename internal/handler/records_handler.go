package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kevinjam/farmkeeper-sub001/internal/guard"
	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/internal/store"
	"github.com/kevinjam/farmkeeper-sub001/pkg/logger"
)

// RecordsHandler holds the tenant-scoped business record endpoints. The
// bodies are validate-then-persist; every route sits behind the ownership
// guard.
type RecordsHandler struct {
	store store.Store
}

// NewRecordsHandler creates the business records handler.
func NewRecordsHandler(st store.Store) *RecordsHandler {
	return &RecordsHandler{store: st}
}

func (h *RecordsHandler) ListEggs(c echo.Context) error {
	farm := guard.FarmFromContext(c)

	records, err := h.store.ListEggRecords(c.Request().Context(), farm.ID)
	if err != nil {
		logger.FromContext(c).Error("Failed to list egg records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"records": records})
}

func (h *RecordsHandler) CreateEgg(c echo.Context) error {
	log := logger.FromContext(c)
	farm := guard.FarmFromContext(c)

	var req struct {
		Quantity int       `json:"quantity"`
		Damaged  int       `json:"damaged"`
		Date     time.Time `json:"date"`
		Note     string    `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	rec := model.EggRecord{
		FarmID:   farm.ID,
		Quantity: req.Quantity,
		Damaged:  req.Damaged,
		Date:     req.Date,
		Note:     req.Note,
	}
	if err := h.store.CreateEggRecord(c.Request().Context(), &rec); err != nil {
		log.Error("Failed to create egg record", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"record": rec})
}

func (h *RecordsHandler) ListExpenses(c echo.Context) error {
	farm := guard.FarmFromContext(c)

	expenses, err := h.store.ListExpenses(c.Request().Context(), farm.ID)
	if err != nil {
		logger.FromContext(c).Error("Failed to list expenses", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"expenses": expenses})
}

func (h *RecordsHandler) CreateExpense(c echo.Context) error {
	log := logger.FromContext(c)
	farm := guard.FarmFromContext(c)

	var req struct {
		Amount   int64     `json:"amount"`
		Category string    `json:"category"`
		Date     time.Time `json:"date"`
		Note     string    `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}
	if req.Category == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category is required"})
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	exp := model.Expense{
		FarmID:   farm.ID,
		Amount:   req.Amount,
		Category: req.Category,
		Date:     req.Date,
		Note:     req.Note,
	}
	if err := h.store.CreateExpense(c.Request().Context(), &exp); err != nil {
		log.Error("Failed to create expense", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"expense": exp})
}
