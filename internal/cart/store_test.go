package cart

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestAddIncrementsExistingLine(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, err := store.Add("A", "Widget", price("10"), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	state, err := store.Add("A", "Widget", price("10"), 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if len(state.Lines) != 1 {
		t.Fatalf("expected a single line, got %d", len(state.Lines))
	}
	line := state.Lines[0]
	if line.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", line.Quantity)
	}
	if !line.Subtotal.Equal(price("30")) || !state.TotalPrice.Equal(price("30")) {
		t.Fatalf("unexpected subtotal %s total %s", line.Subtotal, state.TotalPrice)
	}
}

func TestAddValidatesInput(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, err := store.Add("A", "Widget", price("10"), 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	_, err := store.Add("A", "Widget", price("-1"), 1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}
	if _, err := store.Add(" ", "Widget", price("1"), 1); !errors.Is(err, ErrMissingProductID) {
		t.Fatalf("expected ErrMissingProductID, got %v", err)
	}
	if !store.Snapshot().IsEmpty() {
		t.Fatalf("rejected adds must not change the cart")
	}
}

func TestAddCapsLineQuantity(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, err := store.Add("A", "Widget", price("1"), MaxLineQuantity+1); !errors.Is(err, ErrQuantityLimit) {
		t.Fatalf("expected ErrQuantityLimit, got %v", err)
	}
	if _, err := store.Add("A", "Widget", price("1"), MaxLineQuantity-1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add("A", "Widget", price("1"), 1); err != nil {
		t.Fatalf("add up to the cap: %v", err)
	}
	state, err := store.Add("A", "Widget", price("1"), 1)
	if !errors.Is(err, ErrQuantityLimit) {
		t.Fatalf("expected ErrQuantityLimit past the cap, got %v", err)
	}
	if state.Lines[0].Quantity != MaxLineQuantity {
		t.Fatalf("rejected add must keep the line at %d, got %d", MaxLineQuantity, state.Lines[0].Quantity)
	}

	state = store.ReplaceAll([]Line{
		{ProductID: "B", Title: "Gadget", Price: price("1"), Quantity: 600},
		{ProductID: "B", Title: "Gadget", Price: price("1"), Quantity: 600},
	})
	if state.Lines[0].Quantity != MaxLineQuantity {
		t.Fatalf("expected merged quantity capped, got %d", state.Lines[0].Quantity)
	}
}

func TestRemoveAndDecreaseTrimProductID(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.Add(" A ", "Widget", price("10"), 2)
	_, _ = store.Add("B", "Gadget", price("1"), 1)

	state := store.DecreaseQuantity(" A")
	if state.Lines[0].ProductID != "A" || state.Lines[0].Quantity != 1 {
		t.Fatalf("expected A decreased to 1, got %+v", state.Lines)
	}
	state = store.Remove("B ")
	if len(state.Lines) != 1 || state.Lines[0].ProductID != "A" {
		t.Fatalf("expected B removed, got %+v", state.Lines)
	}
}

func TestDecreaseQuantity(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.Add("A", "Widget", price("2.50"), 2)
	_, _ = store.Add("B", "Gadget", price("4"), 1)

	state := store.DecreaseQuantity("A")
	if len(state.Lines) != 2 || state.Lines[0].Quantity != 1 {
		t.Fatalf("expected A decremented to 1, got %+v", state.Lines)
	}
	if !state.TotalPrice.Equal(price("6.5")) {
		t.Fatalf("unexpected total %s", state.TotalPrice)
	}

	state = store.DecreaseQuantity("A")
	if len(state.Lines) != 1 || state.Lines[0].ProductID != "B" {
		t.Fatalf("expected A removed at quantity 1, got %+v", state.Lines)
	}

	state = store.DecreaseQuantity("missing")
	if len(state.Lines) != 1 || !state.TotalPrice.Equal(price("4")) {
		t.Fatalf("absent product should be a no-op, got %+v", state)
	}
}

func TestRemoveAndClear(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.Add("A", "Widget", price("10"), 2)
	_, _ = store.Add("B", "Gadget", price("1"), 1)

	state := store.Remove("missing")
	if len(state.Lines) != 2 {
		t.Fatalf("removing an absent product should be a no-op")
	}
	state = store.Remove("A")
	if len(state.Lines) != 1 || !state.TotalPrice.Equal(price("1")) {
		t.Fatalf("unexpected state after remove %+v", state)
	}

	state = store.Clear()
	if !state.IsEmpty() || !state.TotalPrice.IsZero() {
		t.Fatalf("expected empty cart with zero total, got %+v", state)
	}
}

func TestReplaceAllMergesAndDropsInvalidLines(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.Add("Z", "Old", price("99"), 1)

	state := store.ReplaceAll([]Line{
		{ProductID: "B", Title: "Gadget", Price: price("4"), Quantity: 1},
		{ProductID: "A", Title: "Widget", Price: price("10"), Quantity: 1, Subtotal: price("999")},
		{ProductID: "A", Title: "Widget", Price: price("10"), Quantity: 2},
		{ProductID: "C", Title: "Broken", Price: price("1"), Quantity: 0},
		{ProductID: "", Title: "Blank", Price: price("1"), Quantity: 1},
	})

	if len(state.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %+v", state.Lines)
	}
	if state.Lines[0].ProductID != "A" || state.Lines[1].ProductID != "B" {
		t.Fatalf("expected lines ordered by product id, got %+v", state.Lines)
	}
	if state.Lines[0].Quantity != 3 || !state.Lines[0].Subtotal.Equal(price("30")) {
		t.Fatalf("expected merged A with recomputed subtotal, got %+v", state.Lines[0])
	}
	if !state.TotalPrice.Equal(price("34")) {
		t.Fatalf("unexpected total %s", state.TotalPrice)
	}
}

func TestTotalIsAlwaysSumOfLines(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	ids := []string{"A", "B", "C", "D"}
	prices := map[string]decimal.Decimal{"A": price("1.10"), "B": price("2.25"), "C": price("0"), "D": price("19.99")}
	store := NewStore()

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		var state State
		switch rng.Intn(3) {
		case 0:
			state, _ = store.Add(id, id, prices[id], 1+rng.Intn(3))
		case 1:
			state = store.Remove(id)
		default:
			state = store.DecreaseQuantity(id)
		}

		want := decimal.Zero
		for _, line := range state.Lines {
			if line.Quantity < 1 {
				t.Fatalf("step %d: line %s has quantity %d", i, line.ProductID, line.Quantity)
			}
			want = want.Add(prices[line.ProductID].Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		if !state.TotalPrice.Equal(want) {
			t.Fatalf("step %d: total %s, want %s", i, state.TotalPrice, want)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	store := NewStore()
	_, _ = store.Add("A", "Widget", price("10"), 1)
	snap := store.Snapshot()
	snap.Lines[0].Quantity = 50

	if store.Snapshot().Lines[0].Quantity != 1 {
		t.Fatalf("mutating a snapshot must not leak into the store")
	}
}

func TestStateJSON(t *testing.T) {
	t.Parallel()

	store := NewStore()
	payload, err := json.Marshal(store.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"items":[],"totalPrice":0}` {
		t.Fatalf("unexpected empty state json %s", payload)
	}

	state, _ := store.Add("A", "Widget", price("10"), 2)
	payload, err = json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"items":[{"id":"A","title":"Widget","price":10,"quantity":2,"subtotal":20}],"totalPrice":20}`
	if string(payload) != want {
		t.Fatalf("unexpected json %s", payload)
	}
}
