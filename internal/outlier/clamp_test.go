package outlier

import (
	"math"
	"testing"

	"univ3-liquidity-lab/internal/domain"
)

var bounds = domain.Bounds{
	MinPrice:       100,
	MaxPrice:       100000,
	MaxAmountBase:  1e6,
	MaxAmountQuote: 1e12,
}

func pos(lower, upper float64) *domain.Position {
	return &domain.Position{
		ID: "p", PriceLower: lower, PriceUpper: upper,
		Liquidity: 1, AmountBase: 1, AmountQuote: 1000,
	}
}

func TestClamp_DiscardsNonFinitePrices(t *testing.T) {
	cases := []*domain.Position{
		pos(math.NaN(), 2000),
		pos(1000, math.Inf(1)),
		pos(-5, 2000),
		pos(0, 2000),
	}

	out, stats := Clamp(cases, bounds)

	if len(out) != 0 {
		t.Fatalf("expected all discarded, kept %d", len(out))
	}
	if stats.Discarded != 4 {
		t.Errorf("expected 4 discarded, got %d", stats.Discarded)
	}
}

func TestClamp_DiscardsInvertedRange(t *testing.T) {
	out, stats := Clamp([]*domain.Position{pos(2000, 1500)}, bounds)

	if len(out) != 0 || stats.Discarded != 1 {
		t.Errorf("expected inverted range discarded, kept=%d discarded=%d",
			len(out), stats.Discarded)
	}
}

func TestClamp_PartialOverlapClampedNotDiscarded(t *testing.T) {
	// Lower bound below MinPrice: clamp the bound, keep the position.
	out, stats := Clamp([]*domain.Position{pos(50, 2000)}, bounds)

	if len(out) != 1 {
		t.Fatalf("expected position kept, got %d", len(out))
	}
	if out[0].PriceLower != bounds.MinPrice {
		t.Errorf("expected lower clamped to %g, got %g", bounds.MinPrice, out[0].PriceLower)
	}
	if stats.Clamped != 1 {
		t.Errorf("expected 1 clamped, got %d", stats.Clamped)
	}
}

func TestClamp_EntirelyAboveMaxBecomesDegenerate(t *testing.T) {
	// Range entirely above MaxPrice clamps both bounds onto the limit and
	// collapses; the position must vanish from the cleaned set.
	out, stats := Clamp([]*domain.Position{pos(200000, 300000)}, bounds)

	if len(out) != 0 {
		t.Fatalf("expected degenerate discard, kept %d", len(out))
	}
	if stats.Degenerate != 1 {
		t.Errorf("expected 1 degenerate, got %d", stats.Degenerate)
	}
}

func TestClamp_AmountOverMaximumClampedToMaximum(t *testing.T) {
	p := pos(1000, 2000)
	p.AmountBase = 5e6
	p.AmountQuote = math.Inf(1)

	out, stats := Clamp([]*domain.Position{p}, bounds)

	if len(out) != 1 {
		t.Fatalf("expected position kept, got %d", len(out))
	}
	if out[0].AmountBase != bounds.MaxAmountBase {
		t.Errorf("expected base clamped to %g, got %g", bounds.MaxAmountBase, out[0].AmountBase)
	}
	if out[0].AmountQuote != bounds.MaxAmountQuote {
		t.Errorf("expected quote clamped to %g, got %g", bounds.MaxAmountQuote, out[0].AmountQuote)
	}
	if stats.Clamped != 1 {
		t.Errorf("expected 1 clamped, got %d", stats.Clamped)
	}
}

func TestClamp_UnparseableLiquidityEmptiesPosition(t *testing.T) {
	for _, liq := range []float64{math.NaN(), math.Inf(1), -5} {
		p := pos(1000, 2000)
		p.Liquidity = liq

		out, stats := Clamp([]*domain.Position{p}, bounds)

		if len(out) != 1 {
			t.Fatalf("liquidity %g: expected position kept, got %d", liq, len(out))
		}
		if out[0].Liquidity != 0 {
			t.Errorf("liquidity %g: expected zeroed, got %g", liq, out[0].Liquidity)
		}
		if out[0].Value() != 0 {
			t.Errorf("liquidity %g: emptied position must have zero value, got %g",
				liq, out[0].Value())
		}
		if stats.Clamped != 1 {
			t.Errorf("liquidity %g: expected 1 clamped, got %d", liq, stats.Clamped)
		}
	}
}

func TestClamp_NegativeAmountClampedToZero(t *testing.T) {
	p := pos(1000, 2000)
	p.AmountQuote = -500

	out, _ := Clamp([]*domain.Position{p}, bounds)

	if out[0].AmountQuote != 0 {
		t.Errorf("expected negative amount clamped to 0, got %g", out[0].AmountQuote)
	}
}

func TestClamp_InputNotMutated(t *testing.T) {
	p := pos(50, 2000)
	Clamp([]*domain.Position{p}, bounds)

	if p.PriceLower != 50 {
		t.Errorf("clamp mutated its input: %g", p.PriceLower)
	}
}

func TestClamp_Idempotent(t *testing.T) {
	in := []*domain.Position{
		pos(50, 2000),
		pos(1000, 200000),
		func() *domain.Position { p := pos(1000, 2000); p.AmountBase = 9e9; return p }(),
	}

	once, _ := Clamp(in, bounds)
	twice, stats := Clamp(once, bounds)

	if stats.Discarded != 0 || stats.Degenerate != 0 || stats.Clamped != 0 {
		t.Errorf("second clamp was not a no-op: %+v", stats)
	}
	if len(twice) != len(once) {
		t.Fatalf("second clamp changed set size: %d vs %d", len(twice), len(once))
	}
	for i := range once {
		if *once[i] != *twice[i] {
			t.Errorf("position %d changed on re-clamp: %+v vs %+v", i, once[i], twice[i])
		}
	}
}
