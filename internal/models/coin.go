package models

import "github.com/shopspring/decimal"

// CoinsPerUSD is the platform exchange rate: 20 coins buy or pay out one US
// dollar. It is applied only where coins meet currency (coin purchases and
// withdrawal payouts); coin movements inside the platform are always 1:1.
const CoinsPerUSD = 20

// MinWithdrawalCoins is the smallest withdrawal request a worker may place.
const MinWithdrawalCoins = 200

// CoinsToUSD converts a coin amount to its dollar value at the platform rate,
// rounded to cents.
func CoinsToUSD(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).Div(decimal.NewFromInt(CoinsPerUSD)).Round(2)
}

// CoinPackage represents a purchasable coin bundle.
type CoinPackage struct {
	ID         string          `json:"id"`
	Coins      int64           `json:"coins"`
	PriceUSD   decimal.Decimal `json:"price_usd"`
	PriceCents int64           `json:"price_cents"`
}

// CoinPackages are the bundles offered on the purchase page.
var CoinPackages = []CoinPackage{
	{ID: "coin10", Coins: 10, PriceUSD: decimal.NewFromInt(1), PriceCents: 100},
	{ID: "coin150", Coins: 150, PriceUSD: decimal.NewFromInt(10), PriceCents: 1000},
	{ID: "coin500", Coins: 500, PriceUSD: decimal.NewFromInt(20), PriceCents: 2000},
	{ID: "coin1000", Coins: 1000, PriceUSD: decimal.NewFromInt(35), PriceCents: 3500},
}

// PackageByID looks up a coin package, returning nil when unknown.
func PackageByID(id string) *CoinPackage {
	for i := range CoinPackages {
		if CoinPackages[i].ID == id {
			return &CoinPackages[i]
		}
	}
	return nil
}
