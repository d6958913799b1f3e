package fees

import (
	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// PlatformFee returns the platform commission on an item bucket, rounded to
// two decimal places of the settlement currency.
func PlatformFee(itemTotal, ratePercent decimal.Decimal) decimal.Decimal {
	if !itemTotal.IsPositive() {
		return zero
	}
	return itemTotal.Mul(ratePercent).Div(hundred).Round(2)
}

// ProcessorFee returns the payment processor's cut for an item bucket. The
// fixed component is split evenly across the buckets charged together,
// because one checkout charge covers many payees.
func ProcessorFee(itemTotal, percentRate, fixedFee decimal.Decimal, batchSize int) decimal.Decimal {
	if !itemTotal.IsPositive() {
		return zero
	}
	if batchSize < 1 {
		batchSize = 1
	}
	variable := itemTotal.Mul(percentRate).Div(hundred)
	fixed := fixedFee.Div(decimal.NewFromInt(int64(batchSize)))
	return variable.Add(fixed).Round(2)
}

// PayeeNetShare returns what a payee receives for an item bucket after the
// platform commission and the processor's cut.
func PayeeNetShare(itemTotal, platformRatePercent, processorPercentRate, processorFixedFee decimal.Decimal, batchSize int) decimal.Decimal {
	if !itemTotal.IsPositive() {
		return zero
	}
	net := itemTotal.
		Sub(PlatformFee(itemTotal, platformRatePercent)).
		Sub(ProcessorFee(itemTotal, processorPercentRate, processorFixedFee, batchSize))
	if net.IsNegative() {
		return zero
	}
	return net.Round(2)
}

// Calculator binds the configured fee rates to the pure fee functions.
type Calculator struct {
	cfg config.FeesConfig
}

// NewCalculator returns a calculator over the configured rates.
func NewCalculator(cfg config.FeesConfig) Calculator {
	return Calculator{cfg: cfg}
}

// PlatformRateFor returns the commission rate for a payee role. Merch
// suppliers carry a higher rate than artist and vinyl-seller sales.
func (c Calculator) PlatformRateFor(role enums.PayeeRole) decimal.Decimal {
	if role == enums.PayeeRoleMerchSupplier {
		return c.cfg.MerchRatePercent
	}
	return c.cfg.ArtistRatePercent
}

// NetShare computes a payee's net share of an item bucket, with the processor
// fixed fee split across batchSize buckets settled together.
func (c Calculator) NetShare(itemTotal decimal.Decimal, role enums.PayeeRole, batchSize int) decimal.Decimal {
	return PayeeNetShare(itemTotal, c.PlatformRateFor(role), c.cfg.ProcessorRatePercent, c.cfg.ProcessorFixed, batchSize)
}

// BatchRailFee returns the extra payout-service fee deducted when a share is
// dispatched over the batch rail.
func (c Calculator) BatchRailFee(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return zero
	}
	return amount.Mul(c.cfg.BatchPayoutPercent).Div(hundred).Round(2)
}
