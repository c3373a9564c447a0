package guard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/kevinjam/farmkeeper-sub001/internal/middleware"
	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/internal/store/storetest"
)

func seedFarm(t *testing.T, st *storetest.MemStore, ownerID uint, name string) *model.Farm {
	t.Helper()
	farm := &model.Farm{Name: name, Slug: model.DeriveSlug(name), OwnerID: ownerID}
	if err := st.CreateFarm(context.Background(), farm); err != nil {
		t.Fatalf("seed farm: %v", err)
	}
	return farm
}

func TestResolveOwnerAllowed(t *testing.T) {
	st := storetest.New()
	farm := seedFarm(t, st, 7, "Green Acres Farm")

	got, err := Resolve(context.Background(), st, farm.Slug, 7)
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if got.ID != farm.ID {
		t.Errorf("resolved farm %d, want %d", got.ID, farm.ID)
	}
}

func TestResolveNonOwnerForbidden(t *testing.T) {
	st := storetest.New()
	farm := seedFarm(t, st, 7, "Green Acres Farm")

	if _, err := Resolve(context.Background(), st, farm.Slug, 8); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResolveUnknownSlugNotFound(t *testing.T) {
	st := storetest.New()
	seedFarm(t, st, 7, "Green Acres Farm")

	if _, err := Resolve(context.Background(), st, "no-such-farm", 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveUsesURLSlugNotUserReference(t *testing.T) {
	st := storetest.New()
	mine := seedFarm(t, st, 7, "Mine")
	other := seedFarm(t, st, 8, "Other")

	// Owning a farm grants nothing on someone else's slug.
	if _, err := Resolve(context.Background(), st, other.Slug, 7); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on other farm, got %v", err)
	}
	if _, err := Resolve(context.Background(), st, mine.Slug, 7); err != nil {
		t.Fatalf("expected allow on own farm, got %v", err)
	}
}

func guardRequest(t *testing.T, st *storetest.MemStore, slug string, userID interface{}) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"slug": FarmFromContext(c).Slug})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/farms/"+slug, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/farms/:slug")
	c.SetParamNames("slug")
	c.SetParamValues(slug)
	if userID != nil {
		c.Set(middleware.UserIDKey, userID)
	}
	if err := RequireFarmOwner(st)(handler)(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return rec
}

func TestMiddlewareOwnerGetsFarm(t *testing.T) {
	st := storetest.New()
	farm := seedFarm(t, st, 7, "Green Acres Farm")

	rec := guardRequest(t, st, farm.Slug, uint(7))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["slug"] != farm.Slug {
		t.Errorf("handler saw slug %q, want %q", body["slug"], farm.Slug)
	}
}

func TestMiddlewareNonOwnerForbidden(t *testing.T) {
	st := storetest.New()
	farm := seedFarm(t, st, 7, "Green Acres Farm")

	rec := guardRequest(t, st, farm.Slug, uint(8))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestMiddlewareUnknownSlugNotFound(t *testing.T) {
	st := storetest.New()
	seedFarm(t, st, 7, "Green Acres Farm")

	rec := guardRequest(t, st, "no-such-farm", uint(7))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMiddlewareMissingUserUnauthorized(t *testing.T) {
	st := storetest.New()
	farm := seedFarm(t, st, 7, "Green Acres Farm")

	rec := guardRequest(t, st, farm.Slug, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRechecksOwnershipEachRequest(t *testing.T) {
	st := storetest.New()
	farm := seedFarm(t, st, 7, "Green Acres Farm")

	if rec := guardRequest(t, st, farm.Slug, uint(7)); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Ownership transfer takes effect on the very next request.
	farm.OwnerID = 9
	if err := st.UpdateFarm(context.Background(), farm); err != nil {
		t.Fatalf("update farm: %v", err)
	}
	if rec := guardRequest(t, st, farm.Slug, uint(7)); rec.Code != http.StatusForbidden {
		t.Fatalf("status after transfer = %d, want 403", rec.Code)
	}
}
