package cart

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the quantity of a single line.
const MaxLineQuantity = 999

var (
	ErrInvalidQuantity  = pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	ErrQuantityLimit    = pkgerrors.Newf(pkgerrors.CodeValidation, "line quantity must not exceed %d", MaxLineQuantity)
	ErrInvalidPrice     = pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	ErrMissingProductID = pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
)

// Line is one product's quantity and price within the cart.
type Line = types.LineItem

// State is an immutable snapshot of the cart. Lines are ordered by product id.
type State struct {
	Lines      []Line
	TotalPrice decimal.Decimal
}

// IsEmpty reports whether the snapshot has no lines.
func (s State) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s State) MarshalJSON() ([]byte, error) {
	lines := s.Lines
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(struct {
		Items      []Line      `json:"items"`
		TotalPrice json.Number `json:"totalPrice"`
	}{Items: lines, TotalPrice: json.Number(s.TotalPrice.String())})
}

// Store holds the working cart for one session. Every mutation recomputes
// subtotals and the total before returning the new snapshot.
type Store struct {
	mu    sync.Mutex
	lines map[string]Line
}

func NewStore() *Store {
	return &Store{lines: make(map[string]Line)}
}

// Add increments an existing line by quantity or inserts a new one.
func (s *Store) Add(productID, title string, unitPrice decimal.Decimal, quantity int) (State, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return s.Snapshot(), ErrMissingProductID
	}
	if quantity < 1 {
		return s.Snapshot(), ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return s.Snapshot(), ErrQuantityLimit
	}
	if unitPrice.IsNegative() {
		return s.Snapshot(), ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[productID]
	if ok {
		if line.Quantity+quantity > MaxLineQuantity {
			return s.snapshotLocked(), ErrQuantityLimit
		}
		line.Quantity += quantity
	} else {
		line = Line{ProductID: productID, Title: title, Price: unitPrice, Quantity: quantity}
	}
	s.lines[productID] = withSubtotal(line)
	return s.snapshotLocked(), nil
}

// Remove deletes the line. Removing an absent product is a no-op.
func (s *Store) Remove(productID string) State {
	productID = strings.TrimSpace(productID)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lines, productID)
	return s.snapshotLocked()
}

// DecreaseQuantity decrements the line by one, removing it at quantity 1.
func (s *Store) DecreaseQuantity(productID string) State {
	productID = strings.TrimSpace(productID)
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[productID]
	switch {
	case !ok:
	case line.Quantity > 1:
		line.Quantity--
		s.lines[productID] = withSubtotal(line)
	default:
		delete(s.lines, productID)
	}
	return s.snapshotLocked()
}

func (s *Store) Clear() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make(map[string]Line)
	return s.snapshotLocked()
}

// ReplaceAll swaps the whole line set, typically for a remote snapshot.
// Duplicate product ids are merged, merged quantities are capped at
// MaxLineQuantity, and lines with quantity < 1 or a blank id are dropped.
func (s *Store) ReplaceAll(lines []Line) State {
	next := make(map[string]Line, len(lines))
	for _, line := range lines {
		line.ProductID = strings.TrimSpace(line.ProductID)
		if line.ProductID == "" || line.Quantity < 1 {
			continue
		}
		if line.Price.IsNegative() {
			continue
		}
		if existing, ok := next[line.ProductID]; ok {
			existing.Quantity = min(existing.Quantity+line.Quantity, MaxLineQuantity)
			next[line.ProductID] = withSubtotal(existing)
			continue
		}
		line.Quantity = min(line.Quantity, MaxLineQuantity)
		next[line.ProductID] = withSubtotal(line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = next
	return s.snapshotLocked()
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	lines := make([]Line, 0, len(s.lines))
	for _, line := range s.lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
	return State{Lines: lines, TotalPrice: Total(lines)}
}

// Total sums the subtotals of lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

func withSubtotal(line Line) Line {
	line.Subtotal = line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
	return line
}
