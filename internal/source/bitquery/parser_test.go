package bitquery

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mintCallJSON = `{
  "EVM": {
    "Calls": [
      {
        "Block": {"Time": "2026-08-01T12:00:00Z"},
        "Transaction": {"Hash": "0xabc", "From": "0xowner1"},
        "Arguments": [
          {"Name": "token0", "Index": 0, "Value": {"address": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"}},
          {"Name": "token1", "Index": 1, "Value": {"address": "0xdac17f958d2ee523a2206206994597c13d831ec7"}},
          {"Name": "fee", "Index": 2, "Value": {"integer": 3000}},
          {"Name": "tickLower", "Index": 3, "Value": {"integer": -201000}},
          {"Name": "tickUpper", "Index": 4, "Value": {"integer": -193000}}
        ],
        "Returns": [
          {"Name": "tokenId", "Index": 0, "Value": {"bigInteger": "123456"}},
          {"Name": "liquidity", "Index": 1, "Value": {"bigInteger": "5000000000000"}},
          {"Name": "amount0", "Index": 2, "Value": {"bigInteger": "2000000000000000000"}},
          {"Name": "amount1", "Index": 3, "Value": {"bigInteger": "4000000000"}}
        ]
      },
      {
        "Block": {"Time": "2026-08-01T13:00:00Z"},
        "Transaction": {"Hash": "0xdef", "From": "0xowner2"},
        "Arguments": [
          {"Name": "", "Index": 3, "Value": {"integer": -200000}},
          {"Name": "", "Index": 4, "Value": {"integer": -195000}}
        ],
        "Returns": [
          {"Name": "", "Index": 0, "Value": {"bigInteger": "123457"}},
          {"Name": "", "Index": 1, "Value": {"bigInteger": "700"}}
        ]
      },
      {
        "Block": {"Time": "2026-08-01T14:00:00Z"},
        "Transaction": {"Hash": "0x999", "From": "0xowner3"},
        "Arguments": [],
        "Returns": []
      }
    ]
  }
}`

func TestParseMints(t *testing.T) {
	var data callsData
	require.NoError(t, json.Unmarshal([]byte(mintCallJSON), &data))

	records := parseMints(data.EVM.Calls)

	// Third entry is missing everything and is skipped.
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "123456", first.ID)
	assert.Equal(t, -201000, first.TickLower)
	assert.Equal(t, -193000, first.TickUpper)
	assert.Equal(t, 5e12, first.RawLiquidity)
	assert.Equal(t, 2e18, first.RawAmount0)
	assert.Equal(t, 4e9, first.RawAmount1)
	assert.Equal(t, "0xowner1", first.Owner)
	assert.Equal(t, int64(1785585600000), first.Timestamp)

	// Second entry exercises positional fallback; missing amounts stay zero.
	second := records[1]
	assert.Equal(t, "123457", second.ID)
	assert.Equal(t, -200000, second.TickLower)
	assert.Equal(t, float64(700), second.RawLiquidity)
	assert.Zero(t, second.RawAmount0)
	assert.Zero(t, second.RawAmount1)
}

const adjustmentCallJSON = `{
  "EVM": {
    "Calls": [
      {
        "Block": {"Time": "2026-08-02T09:00:00Z"},
        "Call": {"Signature": {"Name": "increaseLiquidity"}},
        "Arguments": [
          {"Name": "tokenId", "Index": 0, "Value": {"bigInteger": "123456"}}
        ],
        "Returns": [
          {"Name": "liquidity", "Index": 0, "Value": {"bigInteger": "1000"}},
          {"Name": "amount0", "Index": 1, "Value": {"bigInteger": "50"}},
          {"Name": "amount1", "Index": 2, "Value": {"bigInteger": "60"}}
        ]
      },
      {
        "Block": {"Time": "2026-08-02T09:00:00Z"},
        "Call": {"Signature": {"Name": "decreaseLiquidity"}},
        "Arguments": [
          {"Name": "", "Index": 0, "Value": {"bigInteger": "123456"}}
        ],
        "Returns": [
          {"Name": "", "Index": 0, "Value": {"bigInteger": "400"}},
          {"Name": "", "Index": 1, "Value": {"bigInteger": "20"}},
          {"Name": "", "Index": 2, "Value": {"bigInteger": "25"}}
        ]
      },
      {
        "Block": {"Time": "2026-08-02T10:00:00Z"},
        "Call": {"Signature": {"Name": "collect"}},
        "Arguments": [
          {"Name": "tokenId", "Index": 0, "Value": {"bigInteger": "123456"}}
        ],
        "Returns": []
      }
    ]
  }
}`

func TestParseAdjustments(t *testing.T) {
	var data callsData
	require.NoError(t, json.Unmarshal([]byte(adjustmentCallJSON), &data))

	events := parseAdjustments(data.EVM.Calls)

	// The collect call is not a liquidity adjustment.
	require.Len(t, events, 2)

	inc := events[0]
	assert.Equal(t, "123456", inc.PositionID)
	assert.Equal(t, float64(1000), inc.LiquidityDelta)
	assert.Equal(t, float64(50), inc.Amount0Delta)
	assert.Equal(t, float64(60), inc.Amount1Delta)
	assert.Equal(t, 0, inc.EventIndex)

	dec := events[1]
	assert.Equal(t, float64(-400), dec.LiquidityDelta)
	assert.Equal(t, float64(-20), dec.Amount0Delta)
	assert.Equal(t, float64(-25), dec.Amount1Delta)
	assert.Equal(t, 1, dec.EventIndex)
	// Same block time; the trace order survives as the tiebreaker.
	assert.Equal(t, inc.Timestamp, dec.Timestamp)
}

func TestParseVolume(t *testing.T) {
	sample, err := parseVolume([]tradeAggregate{{VolumeBase: "120.5", VolumeQuote: "450000.25"}})
	require.NoError(t, err)
	assert.Equal(t, 120.5, sample.Base)
	assert.Equal(t, 450000.25, sample.Quote)
}

func TestParseVolume_EmptyMeansZero(t *testing.T) {
	sample, err := parseVolume(nil)
	require.NoError(t, err)
	assert.Zero(t, sample.Base)
	assert.Zero(t, sample.Quote)
}

func TestParseVolume_MalformedNumber(t *testing.T) {
	_, err := parseVolume([]tradeAggregate{{VolumeBase: "not-a-number", VolumeQuote: "1"}})
	assert.Error(t, err)
}

func TestParseTime_MalformedYieldsZero(t *testing.T) {
	assert.Zero(t, parseTime("yesterday"))
	assert.Zero(t, parseTime(""))
}
