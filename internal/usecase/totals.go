package usecase

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// decimal(10,2) の上限
var maxAmount = decimal.RequireFromString("99999999.99")

// 小数2桁まで、かつカラムに収まる金額か
func fitsAmountColumn(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(2)) && v.LessThanOrEqual(maxAmount)
}

// 明細から小計を計算
func itemsSubtotal(items []PlaceOrderItemInput) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price.Decimal.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return sum
}

// クライアントの金額をサーバー側で再計算して照合する（TOTALS_POLICY=verify）
func verifyTotals(in PlaceOrderInput) error {
	subtotal, total := in.Subtotal.Decimal, in.TotalAmount.Decimal
	if !itemsSubtotal(in.Items).Round(2).Equal(subtotal.Round(2)) {
		return NewHTTPError(http.StatusBadRequest, "subtotal does not match items")
	}
	want := subtotal.Add(in.ShippingCost.Decimal).Add(in.TaxAmount.Decimal)
	if !want.Round(2).Equal(total.Round(2)) {
		return NewHTTPError(http.StatusBadRequest, "total_amount does not match subtotal + shipping_cost + tax_amount")
	}
	return nil
}
