// Package notify предоставляет клиент для доставки событий по счетам во
// внешнюю систему уведомлений (вебхук). Рендеринг и отправка писем — задача
// принимающей стороны, клиент передаёт только само событие.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/google/uuid"

	"github.com/mkazantsev/invoicer-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с системой уведомлений.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// ReminderEvent описывает напоминание по одному счёту.
type ReminderEvent struct {
	InvoiceID     uuid.UUID          `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	Type          model.ReminderType `json:"type"`
	DueDate       time.Time          `json:"due_date"`
	Outstanding   string             `json:"outstanding"`
	SentDate      time.Time          `json:"sent_date"`
}

// NewClient создаёт HTTP-клиент для отправки событий по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

// SendReminder отправляет событие напоминания. Возвращает ошибку, если
// принимающая сторона недоступна или ответила не 2xx; политику повторов
// сверх встроенной в транспорт определяет вызывающая сторона.
func (c *Client) SendReminder(ctx context.Context, event ReminderEvent) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notify client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+"/api/reminders", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
