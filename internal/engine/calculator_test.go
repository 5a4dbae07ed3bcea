package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkazantsev/invoicer-system/internal/model"
)

func item(desc string, qty, rate float64) model.LineItem {
	return model.LineItem{
		Description: desc,
		Quantity:    decimal.NewFromFloat(qty),
		Rate:        decimal.NewFromFloat(rate),
	}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []model.LineItem
		tax      model.TaxSpec
		discount model.DiscountSpec
		want     model.InvoiceTotals
	}{
		{
			name:  "tax without discount",
			items: []model.LineItem{item("Design", 10, 50)},
			tax:   model.TaxSpec{RatePercent: decimal.NewFromInt(10)},
			want: model.InvoiceTotals{
				Subtotal:       decimal.NewFromFloat(500.00),
				DiscountAmount: decimal.Zero,
				TaxAmount:      decimal.NewFromFloat(50.00),
				Total:          decimal.NewFromFloat(550.00),
			},
		},
		{
			name:  "fixed discount clamped to subtotal",
			items: []model.LineItem{item("Design", 10, 50)},
			tax:   model.TaxSpec{RatePercent: decimal.NewFromInt(10)},
			discount: model.DiscountSpec{
				Kind:  model.DiscountFixed,
				Value: decimal.NewFromInt(600),
			},
			want: model.InvoiceTotals{
				Subtotal:       decimal.NewFromFloat(500.00),
				DiscountAmount: decimal.NewFromFloat(500.00),
				TaxAmount:      decimal.Zero,
				Total:          decimal.Zero,
			},
		},
		{
			name: "percentage discount",
			items: []model.LineItem{
				item("Consulting", 4, 120),
				item("Hosting", 1, 20),
			},
			tax: model.TaxSpec{RatePercent: decimal.NewFromInt(20)},
			discount: model.DiscountSpec{
				Kind:  model.DiscountPercentage,
				Value: decimal.NewFromInt(10),
			},
			want: model.InvoiceTotals{
				Subtotal:       decimal.NewFromFloat(500.00),
				DiscountAmount: decimal.NewFromFloat(50.00),
				TaxAmount:      decimal.NewFromFloat(90.00),
				Total:          decimal.NewFromFloat(540.00),
			},
		},
		{
			name:  "fractional quantity rounds half up",
			items: []model.LineItem{item("Support", 1.5, 33.33)},
			tax:   model.TaxSpec{RatePercent: decimal.NewFromInt(7)},
			want: model.InvoiceTotals{
				Subtotal:       decimal.NewFromFloat(50.00),   // 49.995 -> 50.00
				DiscountAmount: decimal.Zero,
				TaxAmount:      decimal.NewFromFloat(3.50),    // 3.49965 -> 3.50
				Total:          decimal.NewFromFloat(53.49),   // 53.49465 -> 53.49
			},
		},
		{
			name:  "zero rate item allowed",
			items: []model.LineItem{item("Gratis", 2, 0)},
			want: model.InvoiceTotals{
				Subtotal:       decimal.Zero,
				DiscountAmount: decimal.Zero,
				TaxAmount:      decimal.Zero,
				Total:          decimal.Zero,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTotals(tt.items, tt.tax, tt.discount)
			require.NoError(t, err)

			assert.True(t, got.Subtotal.Equal(tt.want.Subtotal), "subtotal = %s, want %s", got.Subtotal, tt.want.Subtotal)
			assert.True(t, got.DiscountAmount.Equal(tt.want.DiscountAmount), "discount = %s, want %s", got.DiscountAmount, tt.want.DiscountAmount)
			assert.True(t, got.TaxAmount.Equal(tt.want.TaxAmount), "tax = %s, want %s", got.TaxAmount, tt.want.TaxAmount)
			assert.True(t, got.Total.Equal(tt.want.Total), "total = %s, want %s", got.Total, tt.want.Total)
		})
	}
}

func TestComputeTotals_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		items    []model.LineItem
		tax      model.TaxSpec
		discount model.DiscountSpec
	}{
		{name: "no items"},
		{
			name:  "zero quantity",
			items: []model.LineItem{item("Design", 0, 50)},
		},
		{
			name:  "negative rate",
			items: []model.LineItem{item("Design", 1, -5)},
		},
		{
			name:  "blank description",
			items: []model.LineItem{item("  ", 1, 5)},
		},
		{
			name:  "tax rate above 100",
			items: []model.LineItem{item("Design", 1, 5)},
			tax:   model.TaxSpec{RatePercent: decimal.NewFromInt(101)},
		},
		{
			name:     "negative discount",
			items:    []model.LineItem{item("Design", 1, 5)},
			discount: model.DiscountSpec{Kind: model.DiscountFixed, Value: decimal.NewFromInt(-1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeTotals(tt.items, tt.tax, tt.discount)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "err = %v, want ErrInvalidInput", err)
		})
	}
}

func TestComputeTotals_OrderInvariant(t *testing.T) {
	a := []model.LineItem{
		item("One", 3, 19.99),
		item("Two", 1.25, 80),
		item("Three", 7, 0.07),
	}
	b := []model.LineItem{a[2], a[0], a[1]}

	tax := model.TaxSpec{RatePercent: decimal.NewFromFloat(8.25)}
	discount := model.DiscountSpec{Kind: model.DiscountPercentage, Value: decimal.NewFromInt(5)}

	gotA, err := ComputeTotals(a, tax, discount)
	require.NoError(t, err)
	gotB, err := ComputeTotals(b, tax, discount)
	require.NoError(t, err)

	assert.True(t, gotA.Total.Equal(gotB.Total), "totals differ after reordering: %s vs %s", gotA.Total, gotB.Total)
	assert.True(t, gotA.Subtotal.Equal(gotB.Subtotal))
}

func TestComputeTotals_Deterministic(t *testing.T) {
	items := []model.LineItem{item("Design", 10, 50), item("Review", 2, 75.5)}
	tax := model.TaxSpec{RatePercent: decimal.NewFromInt(13)}
	discount := model.DiscountSpec{Kind: model.DiscountFixed, Value: decimal.NewFromInt(40)}

	first, err := ComputeTotals(items, tax, discount)
	require.NoError(t, err)
	second, err := ComputeTotals(items, tax, discount)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// Итог округляется последним от неокруглённых промежуточных значений,
// поэтому пересборка из независимо округлённых компонент может разойтись
// с Total максимум на один цент.
func TestComputeTotals_ReassemblyWithinOneCent(t *testing.T) {
	items := []model.LineItem{
		item("A", 1, 10.054),
		item("B", 3, 0.335),
	}
	tax := model.TaxSpec{RatePercent: decimal.NewFromFloat(7.77)}
	discount := model.DiscountSpec{Kind: model.DiscountPercentage, Value: decimal.NewFromFloat(3.33)}

	got, err := ComputeTotals(items, tax, discount)
	require.NoError(t, err)

	reassembled := got.Subtotal.Sub(got.DiscountAmount).Add(got.TaxAmount)
	diff := reassembled.Sub(got.Total).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.NewFromFloat(0.01)),
		"reassembled total %s differs from %s by more than a cent", reassembled, got.Total)

	assert.False(t, got.Total.IsNegative())
	assert.True(t, got.DiscountAmount.LessThanOrEqual(got.Subtotal))
}
