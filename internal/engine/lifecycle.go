package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkazantsev/invoicer-system/internal/model"
)

// AssignInvoiceNumber вычисляет номер нового счёта по количеству уже
// существующих счетов пользователя. Номер назначается ровно один раз, при
// первом сохранении; глобальную уникальность гарантирует слой хранения
// (уникальный индекс), конфликт — это ErrIntegrity, а не повод для ретрая.
func AssignInvoiceNumber(priorCount int) string {
	return fmt.Sprintf("INV-%04d", priorCount+1)
}

// RecomputeStatus возвращает статус счёта на момент now, ничего не изменяя.
//
// Порядок проверок фиксирован: Paid и Cancelled поглощающие; затем проверка
// полной оплаты; затем просрочка — но черновик никогда не становится
// просроченным автоматически, поскольку он не был отправлен. Полностью
// оплаченный счёт не может быть отмечен просроченным, даже если оплата
// пришла после срока.
func RecomputeStatus(inv model.Invoice, now time.Time) model.InvoiceStatus {
	if inv.Status == model.InvoiceStatusPaid || inv.Status == model.InvoiceStatusCancelled {
		return inv.Status
	}
	if inv.PaidAmount.GreaterThanOrEqual(inv.Totals.Total) {
		return model.InvoiceStatusPaid
	}
	if inv.DueDate.Before(now) && inv.Status != model.InvoiceStatusDraft {
		return model.InvoiceStatusOverdue
	}
	return inv.Status
}

// ApplyPayment применяет завершённый платёж к счёту и возвращает обновлённый
// снимок счёта вместе с дельтой агрегатов клиента.
//
// Платёж, превышающий непогашенный остаток, отклоняется: paidAmount никогда
// не выходит за total. Вызывающая сторона обязана держать эксклюзивный
// снимок счёта и записать результат атомарно; повторное применение одного и
// того же платежа предотвращается выше (движок не помнит прошлых вызовов).
func ApplyPayment(inv model.Invoice, p model.Payment) (model.Invoice, model.ClientDelta, error) {
	if inv.Status == model.InvoiceStatusCancelled {
		return inv, model.ClientDelta{}, fmt.Errorf("%w: invoice %s is cancelled", ErrInvalidState, inv.InvoiceNumber)
	}
	if p.Status != model.PaymentStatusCompleted {
		return inv, model.ClientDelta{}, fmt.Errorf("%w: payment status must be completed, got %q", ErrInvalidInput, p.Status)
	}
	if !p.Amount.IsPositive() {
		return inv, model.ClientDelta{}, fmt.Errorf("%w: payment amount must be greater than 0", ErrInvalidInput)
	}
	if p.Amount.GreaterThan(inv.Outstanding()) {
		return inv, model.ClientDelta{}, fmt.Errorf("%w: payment %s exceeds outstanding balance %s",
			ErrInvalidInput, p.Amount.StringFixed(2), inv.Outstanding().StringFixed(2))
	}

	inv.PaidAmount = inv.PaidAmount.Add(p.Amount)
	inv.Status = RecomputeStatus(inv, p.ProcessedDate)

	if inv.PaidAmount.GreaterThanOrEqual(inv.Totals.Total) && inv.PaidDate == nil {
		paidDate := p.ProcessedDate
		inv.PaidDate = &paidDate
		if p.Method != "" {
			inv.PaymentMethod = p.Method
		}
	}

	delta := model.ClientDelta{
		TotalPaidIncrement: p.Amount,
	}
	return inv, delta, nil
}

// InvoiceOptions содержит необязательные атрибуты нового счёта.
type InvoiceOptions struct {
	IssueDate time.Time
	Notes     string
	Terms     string
}

// NewInvoice собирает снимок нового счёта: проверяет клиента и срок оплаты,
// делегирует расчёт сумм калькулятору, выставляет статус Draft и нулевую
// оплату. Номер счёта на этом шаге ещё не назначен.
func NewInvoice(userID, clientID uuid.UUID, items []model.LineItem, tax model.TaxSpec, discount model.DiscountSpec, dueDate time.Time, opts InvoiceOptions) (model.Invoice, error) {
	if clientID == uuid.Nil {
		return model.Invoice{}, fmt.Errorf("%w: client reference is required", ErrInvalidInput)
	}
	if dueDate.IsZero() {
		return model.Invoice{}, fmt.Errorf("%w: due date is required", ErrInvalidInput)
	}

	totals, err := ComputeTotals(items, tax, discount)
	if err != nil {
		return model.Invoice{}, err
	}

	issueDate := opts.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}

	return model.Invoice{
		UserID:     userID,
		ClientID:   clientID,
		Items:      items,
		Discount:   discount,
		Tax:        tax,
		Totals:     totals,
		Status:     model.InvoiceStatusDraft,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		PaidAmount: decimal.Zero,
		Notes:      opts.Notes,
		Terms:      opts.Terms,
	}, nil
}
