// Package model содержит доменные сущности сервиса выставления счетов.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного пользователя (владельца счетов).
type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// ClientStatus описывает статус клиента.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client представляет клиента пользователя, которому выставляются счета.
// Поля TotalBilled, TotalPaid и LastInvoiceDate поддерживаются инкрементально
// через ClientDelta, движок сам их не пересчитывает.
type Client struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"-"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	Company         string          `json:"company,omitempty"`
	Address         Address         `json:"address"`
	Status          ClientStatus    `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	TotalBilled     decimal.Decimal `json:"total_billed"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	LastInvoiceDate *time.Time      `json:"last_invoice_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Address содержит почтовый адрес клиента.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

// InvoiceStatus описывает статус жизненного цикла счёта.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusViewed    InvoiceStatus = "viewed"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Valid сообщает, является ли значение допустимым статусом счёта.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// LineItem описывает одну позицию счёта.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// Amount возвращает стоимость позиции (quantity * rate) без округления.
func (li LineItem) Amount() decimal.Decimal {
	return li.Quantity.Mul(li.Rate)
}

// DiscountKind описывает способ применения скидки.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// DiscountSpec описывает скидку счёта: процент от промежуточной суммы
// либо фиксированная величина.
type DiscountSpec struct {
	Kind  DiscountKind    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// TaxSpec описывает налоговую ставку счёта в процентах (0–100).
type TaxSpec struct {
	RatePercent decimal.Decimal `json:"rate"`
}

// InvoiceTotals содержит вычисленные суммы счёта. Все значения округлены
// до двух знаков независимо друг от друга.
type InvoiceTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

// ReminderType описывает тип напоминания по счёту.
type ReminderType string

const (
	ReminderTypeReminder    ReminderType = "reminder"
	ReminderTypeOverdue     ReminderType = "overdue"
	ReminderTypeFinalNotice ReminderType = "final_notice"
)

// Reminder описывает факт отправки напоминания по счёту.
type Reminder struct {
	SentDate time.Time    `json:"sent_date"`
	Type     ReminderType `json:"type"`
}

// Invoice представляет счёт со всеми позициями и вычисленными суммами.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"-"`
	ClientID      uuid.UUID       `json:"client_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Items         []LineItem      `json:"items"`
	Discount      DiscountSpec    `json:"discount"`
	Tax           TaxSpec         `json:"tax"`
	Totals        InvoiceTotals   `json:"totals"`
	Status        InvoiceStatus   `json:"status"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Terms         string          `json:"terms,omitempty"`
	Reminders     []Reminder      `json:"reminders,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Outstanding возвращает непогашенный остаток по счёту.
func (i Invoice) Outstanding() decimal.Decimal {
	return i.Totals.Total.Sub(i.PaidAmount)
}

// PaymentMethod описывает способ оплаты.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPaypal       PaymentMethod = "paypal"
	PaymentMethodStripe       PaymentMethod = "stripe"
	PaymentMethodOther        PaymentMethod = "other"
)

// Valid сообщает, является ли значение допустимым способом оплаты.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCheck, PaymentMethodBankTransfer,
		PaymentMethodPaypal, PaymentMethodStripe, PaymentMethodOther:
		return true
	}
	return false
}

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment представляет платёж, применяемый ровно к одному счёту.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"-"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Status        PaymentStatus   `json:"status"`
	ProcessedDate time.Time       `json:"processed_date"`
}

// ClientDelta описывает изменения агрегатов клиента, которые движок
// вычисляет, но не сохраняет сам: вызывающая сторона применяет их к
// записи клиента вместе с записью счёта.
type ClientDelta struct {
	TotalBilledIncrement decimal.Decimal
	TotalPaidIncrement   decimal.Decimal
	LastInvoiceDate      *time.Time
}

// DashboardStats содержит агрегированную статистику по счетам пользователя.
type DashboardStats struct {
	TotalRevenue  decimal.Decimal       `json:"total_revenue"`
	PendingAmount decimal.Decimal       `json:"pending_amount"`
	OverdueAmount decimal.Decimal       `json:"overdue_amount"`
	StatusCounts  map[InvoiceStatus]int `json:"status_counts"`
	ClientCount   int                   `json:"client_count"`
}

// RevenuePoint описывает выручку за один календарный месяц.
type RevenuePoint struct {
	Year         int             `json:"year"`
	Month        time.Month      `json:"month"`
	Revenue      decimal.Decimal `json:"revenue"`
	InvoiceCount int             `json:"invoice_count"`
}
