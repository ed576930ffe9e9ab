package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/airtable"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// PlaceholderImage is served for products without an attachment.
const PlaceholderImage = "https://via.placeholder.com/200x200.png?text=No+Image"

const categoryField = "category"

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image"`
}

// Catalog is the read side of the product source.
type Catalog interface {
	ListAll(ctx context.Context) []Product
	ListByCategory(ctx context.Context, category string) []Product
	Search(ctx context.Context, category, query string) []Product
	GetByID(ctx context.Context, id string) (*Product, error)
}

type recordSource interface {
	List(ctx context.Context, table string, opts airtable.ListOptions) ([]airtable.Record, error)
	Get(ctx context.Context, table, recordID string) (*airtable.Record, error)
}

type catalog struct {
	source recordSource
	table  string
	logg   *logger.Logger
}

func NewCatalog(source recordSource, table string, logg *logger.Logger) (Catalog, error) {
	if source == nil {
		return nil, fmt.Errorf("product source is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("products table is required")
	}
	return &catalog{source: source, table: table, logg: logg}, nil
}

// ListAll returns every product, or an empty list when the source fails.
func (c *catalog) ListAll(ctx context.Context) []Product {
	return c.list(ctx, airtable.ListOptions{})
}

func (c *catalog) ListByCategory(ctx context.Context, category string) []Product {
	category = strings.TrimSpace(category)
	if category == "" {
		return c.ListAll(ctx)
	}
	ctx = c.logg.WithField(ctx, "category", category)
	return c.list(ctx, airtable.ListOptions{FilterByFormula: airtable.EqualsFormula(categoryField, category)})
}

// Search lists the category (all products when blank) and keeps those whose
// title contains query, ignoring case. A blank query keeps everything.
func (c *catalog) Search(ctx context.Context, category, query string) []Product {
	return FilterByTitle(c.ListByCategory(ctx, category), query)
}

// FilterByTitle returns the products whose title contains query, ignoring case.
func FilterByTitle(items []Product, query string) []Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}
	out := make([]Product, 0, len(items))
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Title), query) {
			out = append(out, p)
		}
	}
	return out
}

func (c *catalog) GetByID(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	rec, err := c.source.Get(ctx, c.table, id)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch product")
	}
	product, err := fromRecord(*rec)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product")
	}
	return &product, nil
}

func (c *catalog) list(ctx context.Context, opts airtable.ListOptions) []Product {
	records, err := c.source.List(ctx, c.table, opts)
	if err != nil {
		c.logg.Error(ctx, "products.list_failed", err)
		return []Product{}
	}

	out := make([]Product, 0, len(records))
	for _, rec := range records {
		product, err := fromRecord(rec)
		if err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "record_id", rec.ID), "products.record_skipped")
			continue
		}
		out = append(out, product)
	}
	return out
}

type productFields struct {
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Image       []struct {
		URL string `json:"url"`
	} `json:"image"`
}

func fromRecord(rec airtable.Record) (Product, error) {
	var fields productFields
	if err := rec.DecodeFields(&fields); err != nil {
		return Product{}, err
	}
	image := PlaceholderImage
	if len(fields.Image) > 0 && strings.TrimSpace(fields.Image[0].URL) != "" {
		image = fields.Image[0].URL
	}
	return Product{
		ID:          rec.ID,
		Title:       fields.Title,
		Price:       fields.Price,
		Category:    fields.Category,
		Description: fields.Description,
		Image:       image,
	}, nil
}
