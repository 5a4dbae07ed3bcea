// Package engine реализует расчёт сумм счёта и управление его жизненным
// циклом. Все операции детерминированы, не выполняют ввода-вывода и не
// хранят состояния между вызовами: сериализацию конкурентных изменений
// обеспечивает слой хранения.
package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkazantsev/invoicer-system/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals вычисляет суммы счёта по позициям, налоговой ставке и скидке.
//
// Порядок расчёта: промежуточная сумма, скидка (процентная или фиксированная,
// обрезается по промежуточной сумме), налог от суммы после скидки, итог.
// Каждая из четырёх компонент округляется до двух знаков независимо, поэтому
// итог, пересобранный из округлённых компонент, может отличаться от Total
// не более чем на один цент.
func ComputeTotals(items []model.LineItem, tax model.TaxSpec, discount model.DiscountSpec) (model.InvoiceTotals, error) {
	if len(items) == 0 {
		return model.InvoiceTotals{}, fmt.Errorf("%w: invoice requires at least one line item", ErrInvalidInput)
	}

	subtotal := decimal.Zero
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			return model.InvoiceTotals{}, fmt.Errorf("%w: item %d: description is required", ErrInvalidInput, i)
		}
		if !item.Quantity.IsPositive() {
			return model.InvoiceTotals{}, fmt.Errorf("%w: item %d: quantity must be greater than 0", ErrInvalidInput, i)
		}
		if item.Rate.IsNegative() {
			return model.InvoiceTotals{}, fmt.Errorf("%w: item %d: rate cannot be negative", ErrInvalidInput, i)
		}
		subtotal = subtotal.Add(item.Amount())
	}

	if tax.RatePercent.IsNegative() || tax.RatePercent.GreaterThan(hundred) {
		return model.InvoiceTotals{}, fmt.Errorf("%w: tax rate must be within [0, 100]", ErrInvalidInput)
	}
	if discount.Value.IsNegative() {
		return model.InvoiceTotals{}, fmt.Errorf("%w: discount value cannot be negative", ErrInvalidInput)
	}

	var discountAmount decimal.Decimal
	switch discount.Kind {
	case model.DiscountFixed:
		discountAmount = discount.Value
	default:
		// Пустой вид скидки трактуется как процентный, как в исходном API.
		discountAmount = subtotal.Mul(discount.Value).Div(hundred)
	}
	if discountAmount.GreaterThan(subtotal) {
		discountAmount = subtotal
	}

	afterDiscount := subtotal.Sub(discountAmount)
	taxAmount := afterDiscount.Mul(tax.RatePercent).Div(hundred)
	total := afterDiscount.Add(taxAmount)

	return model.InvoiceTotals{
		Subtotal:       subtotal.Round(2),
		DiscountAmount: discountAmount.Round(2),
		TaxAmount:      taxAmount.Round(2),
		Total:          total.Round(2),
	}, nil
}
