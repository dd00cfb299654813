package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/extractors"
	"github.com/dkurbatov/sales_analytics/ETL/models"
)

// DefaultPaymentMethod подставляется вместо незаполненного способа оплаты
const DefaultPaymentMethod = "Other"

// TransformSale преобразует сырую транзакцию в CleanSale.
// Вычисляемые поля: subtotal = quantity * unit_price,
// total = subtotal - discount + tax, profit = total - cost,
// margin = 0 при total = 0, иначе profit / total * 100.
func TransformSale(rec models.RawRecord) (models.CleanSale, *models.RejectedRecord) {
	quantity, err := strconv.Atoi(rec.Get("quantity"))
	if err != nil {
		return models.CleanSale{}, ruleViolation(extractors.KindSale, rec, "поле quantity не является числом")
	}
	if quantity < 0 {
		return models.CleanSale{}, ruleViolation(extractors.KindSale, rec,
			fmt.Sprintf("количество не может быть отрицательным: %d", quantity))
	}

	unitPrice, reject := parseAmount(rec, "unit_price")
	if reject != nil {
		return models.CleanSale{}, reject
	}
	discount, reject := parseAmount(rec, "discount_amount")
	if reject != nil {
		return models.CleanSale{}, reject
	}
	tax, reject := parseAmount(rec, "tax_amount")
	if reject != nil {
		return models.CleanSale{}, reject
	}
	cost, reject := parseAmount(rec, "cost_amount")
	if reject != nil {
		return models.CleanSale{}, reject
	}

	// Бизнес-правила: отрицательная скидка обнуляется,
	// остальные денежные поля обязаны быть неотрицательными
	if discount < 0 {
		discount = 0
	}
	if unitPrice < 0 || tax < 0 || cost < 0 {
		return models.CleanSale{}, ruleViolation(extractors.KindSale, rec,
			"денежные поля не могут быть отрицательными")
	}

	orderDate, err := time.Parse("2006-01-02", rec.Get("order_date"))
	if err != nil {
		return models.CleanSale{}, ruleViolation(extractors.KindSale, rec, "поле order_date не является датой")
	}

	subtotal := round2(float64(quantity) * unitPrice)
	total := round2(subtotal - discount + tax)
	if total < 0 {
		return models.CleanSale{}, ruleViolation(extractors.KindSale, rec,
			fmt.Sprintf("итоговая сумма не может быть отрицательной: %.2f", total))
	}

	profit := round2(total - cost)
	margin := 0.0
	if total != 0 {
		margin = round2(profit / total * 100)
	}

	paymentMethod := rec.Get("payment_method")
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}

	return models.CleanSale{
		OrderNumber:   strings.ToUpper(rec.Get("order_number")),
		CustomerCode:  strings.ToUpper(rec.Get("customer_code")),
		ProductCode:   strings.ToUpper(rec.Get("product_code")),
		RepCode:       strings.ToUpper(rec.Get("rep_code")),
		DateID:        models.DateID(orderDate),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		Subtotal:      subtotal,
		Discount:      discount,
		Tax:           tax,
		Total:         total,
		Cost:          cost,
		Profit:        profit,
		Margin:        margin,
		PaymentMethod: paymentMethod,
	}, nil
}

// parseAmount разбирает денежное поле; пустое значение трактуется как ноль
func parseAmount(rec models.RawRecord, field string) (float64, *models.RejectedRecord) {
	value := rec.Get(field)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, ruleViolation(extractors.KindSale, rec,
			fmt.Sprintf("поле %s не является числом: %q", field, value))
	}
	return parsed, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
