// Package worker fulfils placed orders: it reserves stock, settles the order
// status and emails the customer in the language the order was placed in.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/locale"
	"github.com/joao-fontenele/stationery-storefront/internal/messaging"
)

type NotificationHandler struct {
	emailServiceURL     string
	ordersServiceURL    string
	inventoryServiceURL string
	translations        locale.Loader
	httpClient          *http.Client
	logger              *slog.Logger
}

func NewNotificationHandler(emailServiceURL, ordersServiceURL, inventoryServiceURL string, translations locale.Loader, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL:     emailServiceURL,
		ordersServiceURL:    ordersServiceURL,
		inventoryServiceURL: inventoryServiceURL,
		translations:        translations,
		httpClient:          client,
		logger:              logger,
	}
}

type reservedItem struct {
	ProductID int64
	Quantity  int
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order placed event: %w", err))
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "customer_id", event.CustomerID)

	reserved, err := h.reserveStock(ctx, event)
	if err != nil {
		h.logger.Error("failed to reserve stock", "error", err, "order_id", event.OrderID)

		h.releaseStock(ctx, reserved)

		if err := h.updateOrderStatus(ctx, event.OrderID, domain.OrderStatusCancelled); err != nil {
			h.logger.Error("failed to cancel order", "error", err, "order_id", event.OrderID)
			return fmt.Errorf("cancel order after stock failure: %w", err)
		}

		if err := h.sendCancellationEmail(ctx, event); err != nil {
			h.logger.Error("failed to send cancellation email", "error", err, "order_id", event.OrderID)
			return fmt.Errorf("send cancellation email: %w", err)
		}

		h.logger.Info("order cancelled due to insufficient stock", "order_id", event.OrderID)
		return nil
	}

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if err := h.updateOrderStatus(ctx, event.OrderID, domain.OrderStatusConfirmed); err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("update order status: %w", err)
	}

	h.logger.Info("order processing complete", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) reserveStock(ctx context.Context, event domain.OrderPlacedEvent) ([]reservedItem, error) {
	var reserved []reservedItem

	for _, item := range event.Items {
		resp, err := h.postQuantity(ctx, fmt.Sprintf("%s/stock/%d/reserve", h.inventoryServiceURL, item.ID), item.Quantity)
		if err != nil {
			return reserved, fmt.Errorf("reserve stock for product %d: %w", item.ID, err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusConflict {
			return reserved, fmt.Errorf("insufficient stock for product %d", item.ID)
		}

		if resp.StatusCode != http.StatusOK {
			return reserved, fmt.Errorf("inventory service returned status %d for product %d", resp.StatusCode, item.ID)
		}

		reserved = append(reserved, reservedItem{ProductID: item.ID, Quantity: item.Quantity})
	}

	return reserved, nil
}

func (h *NotificationHandler) releaseStock(ctx context.Context, reserved []reservedItem) {
	for _, item := range reserved {
		resp, err := h.postQuantity(ctx, fmt.Sprintf("%s/stock/%d/release", h.inventoryServiceURL, item.ProductID), item.Quantity)
		if err != nil {
			h.logger.Error("failed to release stock", "error", err, "product_id", item.ProductID)
			continue
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			h.logger.Error("failed to release stock", "status", resp.StatusCode, "product_id", item.ProductID)
		}
	}
}

func (h *NotificationHandler) postQuantity(ctx context.Context, url string, quantity int) (*http.Response, error) {
	data, err := json.Marshal(map[string]int{"quantity": quantity})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return h.httpClient.Do(req)
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderPlacedEvent) error {
	count := 0
	for _, item := range event.Items {
		count += item.Quantity
	}

	params := map[string]any{
		"name":    event.CustomerName,
		"orderId": event.OrderID,
		"count":   count,
		"total":   event.Total.String(),
	}

	return h.sendLocalized(ctx, event, "email.orderConfirmationSubject", "email.orderConfirmationBody", params)
}

func (h *NotificationHandler) sendCancellationEmail(ctx context.Context, event domain.OrderPlacedEvent) error {
	params := map[string]any{
		"name":    event.CustomerName,
		"orderId": event.OrderID,
	}

	return h.sendLocalized(ctx, event, "email.orderCancelledSubject", "email.orderCancelledBody", params)
}

func (h *NotificationHandler) sendLocalized(ctx context.Context, event domain.OrderPlacedEvent, subjectKey, bodyKey string, params map[string]any) error {
	lang := event.Locale
	if !lang.Valid() {
		lang = domain.DefaultLocale
	}

	table, err := h.translations.Load(ctx, lang)
	if err != nil {
		return fmt.Errorf("load %s translations: %w", lang, err)
	}

	body := map[string]string{
		"to":      event.CustomerEmail,
		"subject": locale.Resolve(table, subjectKey, params),
		"body":    locale.Resolve(table, bodyKey, params),
		"locale":  string(lang),
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

func (h *NotificationHandler) updateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body := map[string]string{
		"status": string(status),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", h.ordersServiceURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orders service returned status %d", resp.StatusCode)
	}

	return nil
}
