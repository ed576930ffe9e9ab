package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineItem is one product's quantity and price inside a cart snapshot. Its JSON
// form matches rows already stored in the carts table: prices are JSON numbers.
type LineItem struct {
	ProductID string
	Title     string
	Price     decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

type lineItemJSON struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
	Subtotal json.Number `json:"subtotal,omitempty"`
}

func (l LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineItemJSON{
		ID:       l.ProductID,
		Title:    l.Title,
		Price:    json.Number(l.Price.String()),
		Quantity: l.Quantity,
		Subtotal: json.Number(l.Subtotal.String()),
	})
}

// UnmarshalJSON accepts numeric or string prices and recomputes the subtotal.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Title    string          `json:"title"`
		Price    decimal.Decimal `json:"price"`
		Quantity int             `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := flexibleID(raw.ID)
	if err != nil {
		return err
	}
	l.ProductID = id
	l.Title = raw.Title
	l.Price = raw.Price
	l.Quantity = raw.Quantity
	l.Subtotal = raw.Price.Mul(decimal.NewFromInt(int64(raw.Quantity)))
	return nil
}

// flexibleID reads an id stored either as a JSON string or a JSON number.
func flexibleID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
