package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// saleRecord собирает сырую транзакцию с разумными значениями по умолчанию
func saleRecord(overrides map[string]string) models.RawRecord {
	fields := map[string]string{
		"order_number":    "ord-1001",
		"order_date":      "2024-03-15",
		"customer_code":   "cust-001",
		"product_code":    "prod-001",
		"rep_code":        "rep-01",
		"quantity":        "3",
		"unit_price":      "10.00",
		"discount_amount": "5.00",
		"tax_amount":      "2.50",
		"cost_amount":     "15.00",
		"payment_method":  "Card",
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return models.RawRecord{Line: 2, Fields: fields}
}

func TestTransformSaleDerivedFields(t *testing.T) {
	sale, reject := TransformSale(saleRecord(nil))
	require.Nil(t, reject)

	// subtotal = 3 * 10.00, total = 30 - 5 + 2.50, profit = 27.50 - 15
	assert.Equal(t, 30.00, sale.Subtotal)
	assert.Equal(t, 27.50, sale.Total)
	assert.Equal(t, 12.50, sale.Profit)
	assert.InDelta(t, 45.45, sale.Margin, 0.001)

	assert.Equal(t, "ORD-1001", sale.OrderNumber)
	assert.Equal(t, "CUST-001", sale.CustomerCode)
	assert.Equal(t, "PROD-001", sale.ProductCode)
	assert.Equal(t, "REP-01", sale.RepCode)
	assert.Equal(t, 20240315, sale.DateID)
	assert.Equal(t, "Card", sale.PaymentMethod)
}

func TestTransformSaleZeroTotalMargin(t *testing.T) {
	// Скидка съедает всю сумму: total = 0, прибыль отрицательная,
	// но маржа обязана быть нулем, а не делением на ноль
	rec := saleRecord(map[string]string{
		"quantity":        "2",
		"unit_price":      "10.00",
		"discount_amount": "20.00",
		"tax_amount":      "0",
		"cost_amount":     "5.00",
	})

	sale, reject := TransformSale(rec)
	require.Nil(t, reject)

	assert.Equal(t, 0.0, sale.Total)
	assert.Equal(t, -5.0, sale.Profit)
	assert.Equal(t, 0.0, sale.Margin)
}

func TestTransformSaleNegativeDiscountClamped(t *testing.T) {
	rec := saleRecord(map[string]string{"discount_amount": "-3.00"})

	sale, reject := TransformSale(rec)
	require.Nil(t, reject)

	// Отрицательная скидка трактуется как ее отсутствие
	assert.Equal(t, 0.0, sale.Discount)
	assert.Equal(t, 32.50, sale.Total)
}

func TestTransformSaleEmptyAmountsAreZero(t *testing.T) {
	rec := saleRecord(map[string]string{
		"discount_amount": "",
		"tax_amount":      "",
		"cost_amount":     "",
	})

	sale, reject := TransformSale(rec)
	require.Nil(t, reject)

	assert.Equal(t, 0.0, sale.Discount)
	assert.Equal(t, 0.0, sale.Tax)
	assert.Equal(t, 30.00, sale.Total)
	assert.Equal(t, 30.00, sale.Profit)
}

func TestTransformSaleDefaultPaymentMethod(t *testing.T) {
	rec := saleRecord(map[string]string{"payment_method": "  "})

	sale, reject := TransformSale(rec)
	require.Nil(t, reject)
	assert.Equal(t, DefaultPaymentMethod, sale.PaymentMethod)
}

func TestTransformSaleRuleViolations(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]string
	}{
		{"отрицательное количество", map[string]string{"quantity": "-1"}},
		{"отрицательная цена", map[string]string{"unit_price": "-10.00"}},
		{"отрицательный налог", map[string]string{"tax_amount": "-1.00"}},
		{"отрицательная себестоимость", map[string]string{"cost_amount": "-0.01"}},
		{"отрицательный итог", map[string]string{"quantity": "1", "discount_amount": "50.00", "tax_amount": "0"}},
		{"нечисловое количество", map[string]string{"quantity": "abc"}},
		{"нечисловая цена", map[string]string{"unit_price": "дорого"}},
		{"кривая дата", map[string]string{"order_date": "15.03.2024"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, reject := TransformSale(saleRecord(tc.overrides))
			require.NotNil(t, reject)
			assert.Equal(t, 2, reject.Line)
			assert.NotEmpty(t, reject.Reason)
		})
	}
}

func TestTransformCollectsRejectsAndContinues(t *testing.T) {
	logger := utils.NewETLLogger(false)
	tr := NewTransformer(logger)

	data := &models.ValidatedData{
		Sales: []models.RawRecord{
			saleRecord(nil),
			saleRecord(map[string]string{"quantity": "-5"}),
			saleRecord(map[string]string{"order_number": "ord-1002"}),
		},
	}

	transformed, rejected, err := tr.Transform(data)
	require.NoError(t, err)

	// Нарушение бизнес-правила отсеивает одну строку, не прерывая батч
	assert.Len(t, transformed.Sales, 2)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "отрицательным")
}

func TestTransformProductParsesPrices(t *testing.T) {
	logger := utils.NewETLLogger(false)
	tr := NewTransformer(logger)

	data := &models.ValidatedData{
		Products: []models.RawRecord{
			{Line: 2, Fields: map[string]string{
				"product_code": "prod-001",
				"product_name": "Widget",
				"category":     "Tools",
				"unit_price":   "19.99",
				"unit_cost":    "7.50",
			}},
			{Line: 3, Fields: map[string]string{
				"product_code": "prod-002",
				"product_name": "Broken",
				"unit_price":   "n/a",
				"unit_cost":    "1.00",
			}},
		},
	}

	transformed, rejected, err := tr.Transform(data)
	require.NoError(t, err)
	require.Len(t, transformed.Products, 1)
	assert.Equal(t, "PROD-001", transformed.Products[0].Code)
	assert.Equal(t, 19.99, transformed.Products[0].UnitPrice)
	assert.Len(t, rejected, 1)
}

func TestTransformCustomerNormalizesFields(t *testing.T) {
	logger := utils.NewETLLogger(false)
	tr := NewTransformer(logger)

	data := &models.ValidatedData{
		Customers: []models.RawRecord{
			{Line: 2, Fields: map[string]string{
				"customer_code": "cust-042",
				"customer_name": "ООО Ромашка",
				"email":         "Sales@Romashka.RU",
				"city":          "Казань",
				"region":        "Приволжье",
				"segment":       "SMB",
			}},
		},
	}

	transformed, rejected, err := tr.Transform(data)
	require.NoError(t, err)
	require.Empty(t, rejected)
	require.Len(t, transformed.Customers, 1)

	assert.Equal(t, "CUST-042", transformed.Customers[0].Code)
	assert.Equal(t, "sales@romashka.ru", transformed.Customers[0].Email)
}
