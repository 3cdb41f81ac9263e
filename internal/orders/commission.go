package orders

import (
	"github.com/shopspring/decimal"

	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
)

const bpsDenominator = 10000

// SplitCommission returns the platform and vendor shares of price. The
// platform share is rounded half-up to cents and the vendor keeps the rest,
// so the two always sum to price.
func SplitCommission(price decimal.Decimal, platformBPS int) (platform, vendor decimal.Decimal) {
	platform = price.
		Mul(decimal.NewFromInt(int64(platformBPS))).
		Div(decimal.NewFromInt(bpsDenominator)).
		Round(2)
	vendor = price.Sub(platform)
	return platform, vendor
}

func buildCommissions(order *models.Order, platformBPS int) []models.Commission {
	out := make([]models.Commission, 0, len(order.Items))
	for _, item := range order.Items {
		platform, vendor := SplitCommission(item.PriceAtPurchase, platformBPS)
		out = append(out, models.Commission{
			VendorID:       item.VendorID,
			OrderID:        order.ID,
			OrderItemID:    item.ID,
			AmountPlatform: platform,
			AmountVendor:   vendor,
			Status:         enums.CommissionStatusPending,
		})
	}
	return out
}
