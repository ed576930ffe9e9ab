package comments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/airtable"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const productIDField = "product_id"

type Comment struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	UserID    string     `json:"user_id"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Store lists and records product comments.
type Store interface {
	ListForProduct(ctx context.Context, productID string) []Comment
	Create(ctx context.Context, productID, userID, content string) (*Comment, error)
}

type recordStore interface {
	List(ctx context.Context, table string, opts airtable.ListOptions) ([]airtable.Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (*airtable.Record, error)
}

type store struct {
	records recordStore
	table   string
	logg    *logger.Logger
}

func NewStore(records recordStore, table string, logg *logger.Logger) (Store, error) {
	if records == nil {
		return nil, fmt.Errorf("comment record store is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("comments table is required")
	}
	return &store{records: records, table: table, logg: logg}, nil
}

// ListForProduct returns the product's comments newest first, or an empty list
// when the source fails.
func (s *store) ListForProduct(ctx context.Context, productID string) []Comment {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return []Comment{}
	}
	ctx = s.logg.WithField(ctx, "product_id", productID)

	records, err := s.records.List(ctx, s.table, airtable.ListOptions{FilterByFormula: airtable.EqualsFormula(productIDField, productID)})
	if err != nil {
		s.logg.Error(ctx, "comments.list_failed", err)
		return []Comment{}
	}

	out := make([]Comment, 0, len(records))
	for _, rec := range records {
		comment, err := fromRecord(rec)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "record_id", rec.ID), "comments.record_skipped")
			continue
		}
		out = append(out, comment)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt)
	})
	return out
}

// newer orders undated comments last.
func newer(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return a.After(*b)
}

func (s *store) Create(ctx context.Context, productID, userID, content string) (*Comment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to comment")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment content is required")
	}

	rec, err := s.records.Create(ctx, s.table, map[string]any{
		productIDField: productID,
		"user_id":      userID,
		"content":      content,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create comment")
	}
	comment, err := fromRecord(*rec)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode comment")
	}
	return &comment, nil
}

func fromRecord(rec airtable.Record) (Comment, error) {
	var fields struct {
		ProductID string `json:"product_id"`
		UserID    string `json:"user_id"`
		Content   string `json:"content"`
	}
	if err := rec.DecodeFields(&fields); err != nil {
		return Comment{}, err
	}
	comment := Comment{
		ID:        rec.ID,
		ProductID: fields.ProductID,
		UserID:    fields.UserID,
		Content:   fields.Content,
	}
	if created, err := time.Parse(time.RFC3339, rec.CreatedTime); err == nil {
		comment.CreatedAt = &created
	}
	return comment, nil
}
