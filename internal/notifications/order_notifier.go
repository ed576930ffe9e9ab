package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Sender delivers one rendered template.
type Sender interface {
	Send(ctx context.Context, templateID string, vars map[string]string) error
}

// OrderNotifier sends the order invoice to the customer and the new-order
// alert to the operator.
type OrderNotifier struct {
	sender             Sender
	customerTemplateID string
	operatorTemplateID string
	location           *time.Location
	logg               *logger.Logger
}

type NotifierParams struct {
	Sender             Sender
	CustomerTemplateID string
	OperatorTemplateID string
	// Location renders order_date; UTC when nil.
	Location *time.Location
	Logger   *logger.Logger
}

func NewOrderNotifier(params NotifierParams) (*OrderNotifier, error) {
	if params.Sender == nil {
		return nil, fmt.Errorf("notification sender is required")
	}
	if strings.TrimSpace(params.CustomerTemplateID) == "" || strings.TrimSpace(params.OperatorTemplateID) == "" {
		return nil, fmt.Errorf("customer and operator template ids are required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &OrderNotifier{
		sender:             params.Sender,
		customerTemplateID: params.CustomerTemplateID,
		operatorTemplateID: params.OperatorTemplateID,
		location:           loc,
		logg:               params.Logger,
	}, nil
}

func (n *OrderNotifier) NotifyCustomer(ctx context.Context, invoice orders.Invoice) error {
	vars := map[string]string{
		"to_name":       invoice.CustomerName,
		"to_email":      invoice.CustomerEmail,
		"order_summary": invoice.Summary,
		"total_price":   invoice.Total.StringFixed(2),
		"order_date":    invoice.OrderDate.In(n.location).Format("1/2/2006, 3:04:05 PM"),
	}
	return n.send(ctx, "customer", n.customerTemplateID, vars)
}

func (n *OrderNotifier) NotifyOperator(ctx context.Context, invoice orders.Invoice) error {
	vars := map[string]string{
		"customer_email": invoice.CustomerEmail,
		"order_summary":  invoice.Summary,
		"total_price":    invoice.Total.StringFixed(2),
	}
	return n.send(ctx, "operator", n.operatorTemplateID, vars)
}

func (n *OrderNotifier) send(ctx context.Context, recipient, templateID string, vars map[string]string) error {
	ctx = n.logg.WithFields(ctx, map[string]any{"recipient": recipient, "template_id": templateID})
	if err := n.sender.Send(ctx, templateID, vars); err != nil {
		return err
	}
	n.logg.Debug(ctx, "notifications.order_email_sent")
	return nil
}
