package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

type sentEmail struct {
	templateID string
	vars       map[string]string
}

type stubSender struct {
	sent []sentEmail
	err  error
}

func (s *stubSender) Send(ctx context.Context, templateID string, vars map[string]string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{templateID: templateID, vars: vars})
	return nil
}

func testInvoice() orders.Invoice {
	return orders.Invoice{
		CustomerName:  "Sam",
		CustomerEmail: "shopper@example.com",
		Summary:       "Widget (x2) - $10",
		Total:         decimal.NewFromInt(20),
		OrderDate:     time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC),
	}
}

func newTestNotifier(t *testing.T, sender Sender) *OrderNotifier {
	t.Helper()
	n, err := NewOrderNotifier(NotifierParams{Sender: sender, CustomerTemplateID: "tpl_customer", OperatorTemplateID: "tpl_operator", Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	return n
}

func TestNotifyCustomerVars(t *testing.T) {
	sender := &stubSender{}
	if err := newTestNotifier(t, sender).NotifyCustomer(context.Background(), testInvoice()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].templateID != "tpl_customer" {
		t.Fatalf("unexpected sends %+v", sender.sent)
	}
	want := map[string]string{
		"to_name":       "Sam",
		"to_email":      "shopper@example.com",
		"order_summary": "Widget (x2) - $10",
		"total_price":   "20.00",
		"order_date":    "3/2/2026, 3:04:05 PM",
	}
	for k, v := range want {
		if sender.sent[0].vars[k] != v {
			t.Fatalf("var %s: expected %q, got %q", k, v, sender.sent[0].vars[k])
		}
	}
}

func TestNotifyOperatorVars(t *testing.T) {
	sender := &stubSender{}
	if err := newTestNotifier(t, sender).NotifyOperator(context.Background(), testInvoice()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	vars := sender.sent[0].vars
	if sender.sent[0].templateID != "tpl_operator" || len(vars) != 3 || vars["customer_email"] != "shopper@example.com" || vars["total_price"] != "20.00" {
		t.Fatalf("unexpected operator email %+v", sender.sent[0])
	}
}

func TestNotifyPropagatesSenderError(t *testing.T) {
	boom := errors.New("send failed")
	if err := newTestNotifier(t, &stubSender{err: boom}).NotifyCustomer(context.Background(), testInvoice()); !errors.Is(err, boom) {
		t.Fatalf("expected sender error, got %v", err)
	}
}

func TestNewOrderNotifierRequiresTemplates(t *testing.T) {
	if _, err := NewOrderNotifier(NotifierParams{Sender: &stubSender{}, CustomerTemplateID: "a"}); err == nil {
		t.Fatalf("expected template error")
	}
}
