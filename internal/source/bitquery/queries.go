package bitquery

// positionManager is the Uniswap v3 NonfungiblePositionManager contract on
// Ethereum mainnet. All position lifecycle calls go through it.
const positionManager = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"

// mintCallsQuery selects successful mint calls to the position manager whose
// first two arguments match the pool's token pair. Argument indexes follow
// the flattened MintParams tuple: token0 and token1 at 0 and 1, tickLower
// and tickUpper at 3 and 4.
const mintCallsQuery = `
query ($token0: String!, $token1: String!, $from: DateTime!, $till: DateTime!) {
  EVM(dataset: archive, network: eth) {
    Calls(
      where: {
        Call: {
          To: {is: "` + positionManager + `"}
          Signature: {Name: {is: "mint"}}
          Success: true
        }
        Arguments: {
          includes: [
            {Index: {eq: 0}, Value: {Address: {is: $token0}}}
            {Index: {eq: 1}, Value: {Address: {is: $token1}}}
          ]
        }
        Block: {Time: {since: $from, till: $till}}
      }
      orderBy: {ascending: Block_Time}
    ) {
      Block { Time }
      Transaction { Hash From }
      Arguments { Name Index Value { ...argValue } }
      Returns { Name Index Value { ...argValue } }
    }
  }
}
fragment argValue on EVM_ABI_Value {
  ... on EVM_ABI_Integer_Value_Arg { integer }
  ... on EVM_ABI_BigInt_Value_Arg { bigInteger }
  ... on EVM_ABI_Address_Value_Arg { address }
  ... on EVM_ABI_String_Value_Arg { string }
}`

// adjustmentCallsQuery selects successful increaseLiquidity and
// decreaseLiquidity calls for the given position token IDs. The tokenId is
// the first argument of both calls.
const adjustmentCallsQuery = `
query ($tokenIds: [String!], $from: DateTime!, $till: DateTime!) {
  EVM(dataset: archive, network: eth) {
    Calls(
      where: {
        Call: {
          To: {is: "` + positionManager + `"}
          Signature: {Name: {in: ["increaseLiquidity", "decreaseLiquidity"]}}
          Success: true
        }
        Arguments: {
          includes: [
            {Index: {eq: 0}, Value: {BigInteger: {in: $tokenIds}}}
          ]
        }
        Block: {Time: {since: $from, till: $till}}
      }
      orderBy: {ascending: Block_Time}
    ) {
      Block { Time }
      Call { Signature { Name } }
      Arguments { Name Index Value { ...argValue } }
      Returns { Name Index Value { ...argValue } }
    }
  }
}
fragment argValue on EVM_ABI_Value {
  ... on EVM_ABI_Integer_Value_Arg { integer }
  ... on EVM_ABI_BigInt_Value_Arg { bigInteger }
  ... on EVM_ABI_Address_Value_Arg { address }
  ... on EVM_ABI_String_Value_Arg { string }
}`

// volumeQuery aggregates DEX trade volume for the pair over a trailing
// window, in both base and quote units.
const volumeQuery = `
query ($base: String!, $quote: String!, $since: DateTime!) {
  EVM(dataset: archive, network: eth) {
    DEXTradeByTokens(
      where: {
        Trade: {
          Currency: {SmartContract: {is: $base}}
          Side: {Currency: {SmartContract: {is: $quote}}}
        }
        Block: {Time: {since: $since}}
      }
    ) {
      volumeBase: sum(of: Trade_Amount)
      volumeQuote: sum(of: Trade_Side_Amount)
    }
  }
}`
