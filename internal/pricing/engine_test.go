package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s got %s", want, got)
}

var tenPercentVAT = Money{ExclTax: d("100"), InclTax: d("110")}

func TestComputeScenarios(t *testing.T) {
	cases := []struct {
		name     string
		typ      ChangeType
		amount   string
		wantExcl string
		wantIncl string
	}{
		{"discount percentage", DiscountPercentage, "20", "80", "88"},
		{"discount percentage zero is a no-op", DiscountPercentage, "0", "100", "110"},
		{"discount percentage full", DiscountPercentage, "100", "0", "0"},
		{"discount percentage above full", DiscountPercentage, "150", "0", "0"},
		{"increase percentage", IncreasePercentage, "50", "150", "165"},
		{"discount absolute", DiscountAbsolute, "30", "70", "77"},
		{"discount absolute exceeds base", DiscountAbsolute, "150", "0", "0"},
		{"discount absolute equals base", DiscountAbsolute, "100", "0", "0"},
		{"increase absolute", IncreaseAbsolute, "20", "120", "132"},
		{"increase absolute negative clamps", IncreaseAbsolute, "-130", "0", "0"},
		{"fixed price", FixedPrice, "90", "90", "99"},
		{"fixed price negative clamps", FixedPrice, "-5", "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(tc.typ, d(tc.amount), tenPercentVAT)
			require.NoError(t, err)
			assertDecimal(t, tc.wantExcl, res.ExclTax)
			assertDecimal(t, tc.wantIncl, res.InclTax)
		})
	}
}

func TestComputePriceReturnsInclusiveLeg(t *testing.T) {
	price, err := ComputePrice(DiscountPercentage, d("20"), tenPercentVAT)
	require.NoError(t, err)
	assertDecimal(t, "88", price)
}

func TestComputeZeroBaseFails(t *testing.T) {
	_, err := Compute(DiscountPercentage, d("10"), Money{InclTax: d("10")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBasePrice))

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, KindInvalidBasePrice, domainErr.Kind)
}

func TestComputeUnknownChangeType(t *testing.T) {
	_, err := Compute(ChangeType("half_off"), d("10"), tenPercentVAT)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedChangeType))
	assert.False(t, errors.Is(err, ErrInvalidBasePrice))
}

func TestComputePreservesVATRatioOfBase(t *testing.T) {
	bases := []Money{
		{ExclTax: d("100"), InclTax: d("110")},
		{ExclTax: d("84.03"), InclTax: d("100")},
		{ExclTax: d("12.5"), InclTax: d("15.125")},
	}
	amounts := []string{"0.01", "3", "7.5", "42"}
	for _, base := range bases {
		want := base.VATRatio()
		for _, typ := range []ChangeType{DiscountAbsolute, IncreaseAbsolute} {
			for _, amount := range amounts {
				res, err := Compute(typ, d(amount), base)
				require.NoError(t, err)
				if res.ExclTax.IsZero() {
					continue
				}
				got := res.InclTax.Div(res.ExclTax).Sub(decimal.NewFromInt(1))
				assert.Truef(t, got.Sub(want).Abs().LessThan(d("0.000000001")),
					"%s %s on %v: ratio %s want %s", typ, amount, base, got, want)
			}
		}
	}
}

func TestComputeIsDeterministicAndDoesNotMutateBase(t *testing.T) {
	base := Money{ExclTax: d("19.99"), InclTax: d("23.99")}
	snapshot := Money{ExclTax: d("19.99"), InclTax: d("23.99")}
	first, err := Compute(IncreasePercentage, d("12.5"), base)
	require.NoError(t, err)
	second, err := Compute(IncreasePercentage, d("12.5"), base)
	require.NoError(t, err)

	assert.True(t, first.ExclTax.Equal(second.ExclTax))
	assert.True(t, first.InclTax.Equal(second.InclTax))
	assert.True(t, base.ExclTax.Equal(snapshot.ExclTax))
	assert.True(t, base.InclTax.Equal(snapshot.InclTax))
}

func TestDiscountPercentageNoOpAcrossBases(t *testing.T) {
	for _, base := range []Money{
		{ExclTax: d("1"), InclTax: d("1.19")},
		{ExclTax: d("250.75"), InclTax: d("270.81")},
		{ExclTax: d("3.33"), InclTax: d("3.33")},
	} {
		price, err := ComputePrice(DiscountPercentage, decimal.Zero, base)
		require.NoError(t, err)
		assert.Truef(t, price.Sub(base.InclTax).Abs().LessThan(d("0.0000001")), "got %s want %s", price, base.InclTax)
	}
}

func TestDisplayRendersPlaceholderOnEngineError(t *testing.T) {
	assert.Equal(t, "88.00", Display(DiscountPercentage, d("20"), tenPercentVAT))
	assert.Equal(t, Placeholder, Display(DiscountPercentage, d("20"), Money{}))
	assert.Equal(t, Placeholder, Display(ChangeType(""), d("20"), tenPercentVAT))
}

func TestDescriptorApply(t *testing.T) {
	res, err := ChangeDescriptor{Type: FixedPrice, Amount: d("90")}.Apply(tenPercentVAT)
	require.NoError(t, err)
	assertDecimal(t, "99", res.InclTax)
}

func TestParseChangeType(t *testing.T) {
	for _, ct := range ChangeTypes {
		parsed, err := ParseChangeType(string(ct))
		require.NoError(t, err)
		assert.Equal(t, ct, parsed)
	}
	_, err := ParseChangeType("percentage")
	assert.True(t, errors.Is(err, ErrUnsupportedChangeType))
}

func TestResultRounded(t *testing.T) {
	res := Result{ExclTax: d("10.005"), InclTax: d("12.3449")}.Rounded(2)
	assertDecimal(t, "10.01", res.ExclTax)
	assertDecimal(t, "12.34", res.InclTax)
}

func TestVATPercent(t *testing.T) {
	assertDecimal(t, "10", tenPercentVAT.VATPercent())
}
