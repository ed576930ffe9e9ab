package products

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/airtable"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubSource struct {
	records  []airtable.Record
	listErr  error
	getErr   error
	lastOpts airtable.ListOptions
}

func (s *stubSource) List(ctx context.Context, table string, opts airtable.ListOptions) ([]airtable.Record, error) {
	s.lastOpts = opts
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.records, nil
}

func (s *stubSource) Get(ctx context.Context, table, recordID string) (*airtable.Record, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, rec := range s.records {
		if rec.ID == recordID {
			return &rec, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "airtable record not found")
}

func record(id, fields string) airtable.Record {
	rec := airtable.Record{ID: id}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		panic(err)
	}
	return rec
}

func newTestCatalog(t *testing.T, src *stubSource) Catalog {
	t.Helper()
	c, err := NewCatalog(src, "Products", logger.Nop())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return c
}

func TestListAllMapsImagesAndPrices(t *testing.T) {
	src := &stubSource{records: []airtable.Record{
		record("rec1", `{"title":"Widget","price":9.5,"category":"tools","image":[{"url":"https://cdn.test/w.png"}]}`),
		record("rec2", `{"title":"Gadget","price":3}`),
	}}

	items := newTestCatalog(t, src).ListAll(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected 2 products, got %d", len(items))
	}
	if items[0].Image != "https://cdn.test/w.png" || items[0].Price.String() != "9.5" {
		t.Fatalf("unexpected first product %+v", items[0])
	}
	if items[1].Image != PlaceholderImage {
		t.Fatalf("expected placeholder image, got %q", items[1].Image)
	}
}

func TestListByCategoryUsesFormula(t *testing.T) {
	src := &stubSource{}
	newTestCatalog(t, src).ListByCategory(context.Background(), "kid's")
	if src.lastOpts.FilterByFormula != `{category}='kid\'s'` {
		t.Fatalf("unexpected formula %q", src.lastOpts.FilterByFormula)
	}
}

func TestSearchMatchesTitleIgnoringCase(t *testing.T) {
	src := &stubSource{records: []airtable.Record{
		record("rec1", `{"title":"Blue Widget","price":9.5,"category":"tools"}`),
		record("rec2", `{"title":"Gadget","price":3,"category":"tools"}`),
		record("rec3", `{"title":"widget stand","price":4,"category":"tools"}`),
	}}
	c := newTestCatalog(t, src)

	items := c.Search(context.Background(), "tools", "  WIDGET ")
	if len(items) != 2 || items[0].ID != "rec1" || items[1].ID != "rec3" {
		t.Fatalf("unexpected matches %+v", items)
	}
	if src.lastOpts.FilterByFormula != `{category}='tools'` {
		t.Fatalf("expected category formula, got %q", src.lastOpts.FilterByFormula)
	}

	if items := c.Search(context.Background(), "", ""); len(items) != 3 {
		t.Fatalf("blank query should keep everything, got %d", len(items))
	}
	if items := c.Search(context.Background(), "", "lamp"); items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", items)
	}
}

func TestListFallsBackToEmpty(t *testing.T) {
	src := &stubSource{listErr: errors.New("timeout")}
	items := newTestCatalog(t, src).ListAll(context.Background())
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestGetByIDErrors(t *testing.T) {
	c := newTestCatalog(t, &stubSource{})
	if _, err := c.GetByID(context.Background(), "recX"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	c = newTestCatalog(t, &stubSource{getErr: errors.New("conn reset")})
	if _, err := c.GetByID(context.Background(), "recX"); !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestGetByIDReturnsProduct(t *testing.T) {
	c := newTestCatalog(t, &stubSource{records: []airtable.Record{record("rec1", `{"title":"Widget","price":"10.00","description":"Sturdy"}`)}})
	p, err := c.GetByID(context.Background(), "rec1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Title != "Widget" || p.Description != "Sturdy" || p.Price.StringFixed(2) != "10.00" {
		t.Fatalf("unexpected product %+v", p)
	}
}
