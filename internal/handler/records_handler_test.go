package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/kevinjam/farmkeeper-sub001/internal/guard"
	"github.com/kevinjam/farmkeeper-sub001/internal/model"
)

func TestCreateEggRecordValidatesAndPersists(t *testing.T) {
	f := newAuthFixture(t)
	h := NewRecordsHandler(f.store)

	farm := &model.Farm{Name: "Green Acres", Slug: "green-acres", OwnerID: 1}
	if err := f.store.CreateFarm(context.Background(), farm); err != nil {
		t.Fatalf("seed farm: %v", err)
	}

	c, rec := f.post(t, "/api/farms/green-acres/eggs", `{"quantity":0}`)
	c.Set(guard.FarmKey, farm)
	if err := h.CreateEgg(c); err != nil {
		t.Fatalf("create egg: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	c, rec = f.post(t, "/api/farms/green-acres/eggs", `{"quantity":24,"damaged":2,"note":"morning run"}`)
	c.Set(guard.FarmKey, farm)
	if err := h.CreateEgg(c); err != nil {
		t.Fatalf("create egg: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	records, err := f.store.ListEggRecords(context.Background(), farm.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Quantity != 24 {
		t.Fatalf("records = %+v", records)
	}
	if records[0].Date.IsZero() {
		t.Error("date not defaulted")
	}
}

func TestCreateExpenseValidatesAndPersists(t *testing.T) {
	f := newAuthFixture(t)
	h := NewRecordsHandler(f.store)

	farm := &model.Farm{Name: "Green Acres", Slug: "green-acres", OwnerID: 1}
	if err := f.store.CreateFarm(context.Background(), farm); err != nil {
		t.Fatalf("seed farm: %v", err)
	}

	c, rec := f.post(t, "/api/farms/green-acres/expenses", `{"amount":1250}`)
	c.Set(guard.FarmKey, farm)
	if err := h.CreateExpense(c); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (missing category)", rec.Code)
	}

	c, rec = f.post(t, "/api/farms/green-acres/expenses", `{"amount":1250,"category":"feed"}`)
	c.Set(guard.FarmKey, farm)
	if err := h.CreateExpense(c); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	expenses, err := f.store.ListExpenses(context.Background(), farm.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(expenses) != 1 || expenses[0].Amount != 1250 {
		t.Fatalf("expenses = %+v", expenses)
	}
}
