package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCoinsToUSD(t *testing.T) {
	cases := []struct {
		coins int64
		usd   string
	}{
		{20, "1"},
		{200, "10"},
		{1000, "50"},
		{10, "0.5"},
		{1, "0.05"},
		{250, "12.5"},
	}
	for _, tc := range cases {
		want, err := decimal.NewFromString(tc.usd)
		assert.NoError(t, err)
		assert.True(t, CoinsToUSD(tc.coins).Equal(want),
			"%d coins should be %s USD, got %s", tc.coins, tc.usd, CoinsToUSD(tc.coins))
	}
}

func TestPackageByID(t *testing.T) {
	pkg := PackageByID("coin150")
	if assert.NotNil(t, pkg) {
		assert.Equal(t, int64(150), pkg.Coins)
		assert.True(t, pkg.PriceUSD.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, int64(1000), pkg.PriceCents)
	}

	assert.Nil(t, PackageByID("coin9000"))
	assert.Nil(t, PackageByID(""))
}

func TestRoleStartingCoins(t *testing.T) {
	assert.Equal(t, int64(10), RoleWorker.StartingCoins())
	assert.Equal(t, int64(50), RoleBuyer.StartingCoins())
	assert.Equal(t, int64(0), RoleAdmin.StartingCoins())
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleWorker, RoleBuyer, RoleAdmin} {
		assert.True(t, r.Valid(), "role %s", r)
	}
	assert.False(t, Role("Superuser").Valid())
	assert.False(t, Role("").Valid())
}
