package bitquery

import (
	"fmt"
	"strconv"
	"time"

	"univ3-liquidity-lab/internal/domain"
)

// Argument positions in the flattened mint call tuple and its returns.
// Named lookup is preferred; these indexes are the fallback when the ABI
// decoder delivers unnamed values.
const (
	mintArgTickLower = 3
	mintArgTickUpper = 4

	mintRetTokenID   = 0
	mintRetLiquidity = 1
	mintRetAmount0   = 2
	mintRetAmount1   = 3

	adjRetLiquidity = 0
	adjRetAmount0   = 1
	adjRetAmount1   = 2
)

// callsData is the GraphQL data payload for call-trace queries.
type callsData struct {
	EVM struct {
		Calls []callEntry `json:"Calls"`
	} `json:"EVM"`
}

// tradesData is the GraphQL data payload for the volume query.
type tradesData struct {
	EVM struct {
		DEXTradeByTokens []tradeAggregate `json:"DEXTradeByTokens"`
	} `json:"EVM"`
}

type callEntry struct {
	Block struct {
		Time string `json:"Time"`
	} `json:"Block"`
	Transaction struct {
		Hash string `json:"Hash"`
		From string `json:"From"`
	} `json:"Transaction"`
	Call struct {
		Signature struct {
			Name string `json:"Name"`
		} `json:"Signature"`
	} `json:"Call"`
	Arguments []abiValue `json:"Arguments"`
	Returns   []abiValue `json:"Returns"`
}

// abiValue is one decoded ABI argument or return value. Exactly one of the
// Value fields is populated depending on the ABI type.
type abiValue struct {
	Name  string `json:"Name"`
	Index int    `json:"Index"`
	Value struct {
		Integer    *int64 `json:"integer"`
		BigInteger string `json:"bigInteger"`
		Address    string `json:"address"`
		String     string `json:"string"`
	} `json:"Value"`
}

type tradeAggregate struct {
	VolumeBase  string `json:"volumeBase"`
	VolumeQuote string `json:"volumeQuote"`
}

// number extracts the value as a float64, whichever ABI shape carried it.
func (v *abiValue) number() (float64, bool) {
	if v.Value.Integer != nil {
		return float64(*v.Value.Integer), true
	}
	if v.Value.BigInteger != "" {
		f, err := strconv.ParseFloat(v.Value.BigInteger, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// text extracts the value as a string identifier.
func (v *abiValue) text() string {
	if v.Value.BigInteger != "" {
		return v.Value.BigInteger
	}
	if v.Value.Address != "" {
		return v.Value.Address
	}
	return v.Value.String
}

// pick finds a decoded value by name, falling back to its tuple index when
// the decoder delivered unnamed values.
func pick(values []abiValue, name string, index int) *abiValue {
	for i := range values {
		if values[i].Name == name {
			return &values[i]
		}
	}
	for i := range values {
		if values[i].Name == "" && values[i].Index == index {
			return &values[i]
		}
	}
	return nil
}

// parseTime converts a block timestamp to Unix milliseconds. Zero on
// failure; downstream drops zero-timestamp records.
func parseTime(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// parseMints converts mint call traces to raw records. Entries missing a
// required field are skipped here and accounted for by the normalizer's
// duplicate and validity checks downstream.
func parseMints(calls []callEntry) []*domain.MintRecord {
	records := make([]*domain.MintRecord, 0, len(calls))
	for i := range calls {
		c := &calls[i]

		tickLower := pick(c.Arguments, "tickLower", mintArgTickLower)
		tickUpper := pick(c.Arguments, "tickUpper", mintArgTickUpper)
		tokenID := pick(c.Returns, "tokenId", mintRetTokenID)
		liquidity := pick(c.Returns, "liquidity", mintRetLiquidity)
		amount0 := pick(c.Returns, "amount0", mintRetAmount0)
		amount1 := pick(c.Returns, "amount1", mintRetAmount1)
		if tickLower == nil || tickUpper == nil || tokenID == nil || liquidity == nil {
			continue
		}

		lower, okL := tickLower.number()
		upper, okU := tickUpper.number()
		liq, okLiq := liquidity.number()
		if !okL || !okU || !okLiq {
			continue
		}

		rec := &domain.MintRecord{
			ID:           tokenID.text(),
			TickLower:    int(lower),
			TickUpper:    int(upper),
			RawLiquidity: liq,
			Owner:        c.Transaction.From,
			Timestamp:    parseTime(c.Block.Time),
		}
		if amount0 != nil {
			rec.RawAmount0, _ = amount0.number()
		}
		if amount1 != nil {
			rec.RawAmount1, _ = amount1.number()
		}
		records = append(records, rec)
	}
	return records
}

// parseAdjustments converts increase and decrease call traces to signed
// adjustment events. The event index preserves response order, which the
// query sorts by block time, so same-timestamp events stay in trace order.
func parseAdjustments(calls []callEntry) []*domain.AdjustmentEvent {
	events := make([]*domain.AdjustmentEvent, 0, len(calls))
	for i := range calls {
		c := &calls[i]

		sign := 1.0
		switch c.Call.Signature.Name {
		case "increaseLiquidity":
		case "decreaseLiquidity":
			sign = -1.0
		default:
			continue
		}

		tokenID := pick(c.Arguments, "tokenId", 0)
		liquidity := pick(c.Returns, "liquidity", adjRetLiquidity)
		amount0 := pick(c.Returns, "amount0", adjRetAmount0)
		amount1 := pick(c.Returns, "amount1", adjRetAmount1)
		if tokenID == nil || liquidity == nil {
			continue
		}
		liq, ok := liquidity.number()
		if !ok {
			continue
		}

		ev := &domain.AdjustmentEvent{
			PositionID:     tokenID.text(),
			LiquidityDelta: sign * liq,
			Timestamp:      parseTime(c.Block.Time),
			EventIndex:     len(events),
		}
		if amount0 != nil {
			if a0, ok := amount0.number(); ok {
				ev.Amount0Delta = sign * a0
			}
		}
		if amount1 != nil {
			if a1, ok := amount1.number(); ok {
				ev.Amount1Delta = sign * a1
			}
		}
		events = append(events, ev)
	}
	return events
}

// parseVolume reads the aggregated pair volume. An empty aggregate set
// means no trades in the window, which is a valid zero sample.
func parseVolume(aggregates []tradeAggregate) (domain.VolumeSample, error) {
	if len(aggregates) == 0 {
		return domain.VolumeSample{}, nil
	}
	base, err := strconv.ParseFloat(aggregates[0].VolumeBase, 64)
	if err != nil {
		return domain.VolumeSample{}, fmt.Errorf("parse base volume %q: %w", aggregates[0].VolumeBase, err)
	}
	quote, err := strconv.ParseFloat(aggregates[0].VolumeQuote, 64)
	if err != nil {
		return domain.VolumeSample{}, fmt.Errorf("parse quote volume %q: %w", aggregates[0].VolumeQuote, err)
	}
	return domain.VolumeSample{Base: base, Quote: quote}, nil
}
