package evm

import (
	"fmt"
	"math/big"
	"strings"
)

// Function selectors and event topics used by the client. Thin manual hex
// packing is all the contract surface needs: every call here takes flat
// address/uint words and returns flat words back.
const (
	// keccak256("PairCreated(address,address,address,uint256)")
	TopicPairCreated = "0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9"

	selGetReserves   = "0x0902f1ac" // getReserves()
	selToken0        = "0x0dfe1681" // token0()
	selToken1        = "0xd21220a7" // token1()
	selDecimals      = "0x313ce567" // decimals()
	selTotalSupply   = "0x18160ddd" // totalSupply()
	selBalanceOf     = "0x70a08231" // balanceOf(address)
	selTransfer      = "0xa9059cbb" // transfer(address,uint256)
	selApprove       = "0x095ea7b3" // approve(address,uint256)
	selGetAmountsOut = "0xd06ca61f" // getAmountsOut(uint256,address[])

	// swapExactETHForTokensSupportingFeeOnTransferTokens(uint256,address[],address,uint256)
	selSwapETHForTokens = "0xb6f9de95"
	// swapExactTokensForETHSupportingFeeOnTransferTokens(uint256,uint256,address[],address,uint256)
	selSwapTokensForETH = "0x791ac947"
)

const wordHexLen = 64

// encodeCall builds calldata from a selector and 32-byte words. The result
// carries no 0x prefix; transport-level encoders add it.
func encodeCall(selector string, words ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimPrefix(selector, "0x"))
	for _, w := range words {
		b.WriteString(w)
	}
	return b.String()
}

// addressWord left-pads an address to a 32-byte word.
func addressWord(addr string) string {
	hexAddr := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	return strings.Repeat("0", wordHexLen-len(hexAddr)) + hexAddr
}

// uintWord encodes an unsigned integer as a 32-byte word.
func uintWord(v *big.Int) string {
	hexVal := v.Text(16)
	return strings.Repeat("0", wordHexLen-len(hexVal)) + hexVal
}

// word extracts the i-th 32-byte word from a hex call result.
func word(data string, i int) (string, error) {
	hexData := strings.TrimPrefix(data, "0x")
	start := i * wordHexLen
	end := start + wordHexLen
	if len(hexData) < end {
		return "", fmt.Errorf("call result too short: want word %d, have %d hex chars", i, len(hexData))
	}
	return hexData[start:end], nil
}

// wordBigInt parses the i-th word of a call result as an unsigned integer.
func wordBigInt(data string, i int) (*big.Int, error) {
	w, err := word(data, i)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(w, 16)
	if !ok {
		return nil, fmt.Errorf("parse word %d as uint: %q", i, w)
	}
	return v, nil
}

// wordAddress parses the i-th word of a call result as an address.
func wordAddress(data string, i int) (string, error) {
	w, err := word(data, i)
	if err != nil {
		return "", err
	}
	return "0x" + w[wordHexLen-40:], nil
}

// topicAddress extracts the address from an indexed event topic.
func topicAddress(topic string) string {
	hexTopic := strings.TrimPrefix(topic, "0x")
	if len(hexTopic) < 40 {
		return ""
	}
	return "0x" + strings.ToLower(hexTopic[len(hexTopic)-40:])
}

// hexUint64 parses a 0x-prefixed quantity (eth_blockNumber and friends).
func hexUint64(s string) (uint64, error) {
	hexVal := strings.TrimPrefix(s, "0x")
	if hexVal == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	v, ok := new(big.Int).SetString(hexVal, 16)
	if !ok || !v.IsUint64() {
		return 0, fmt.Errorf("parse hex quantity %q", s)
	}
	return v.Uint64(), nil
}

// hexQuantity formats a block number for RPC params.
func hexQuantity(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// unitsToFloat converts a raw integer token amount to a float using the
// token's decimals. Precision loss past float64 is acceptable here; all
// trading thresholds are ratios.
func unitsToFloat(v *big.Int, decimals int) float64 {
	f := new(big.Float).SetInt(v)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}

// floatToUnits converts a float token amount to raw integer units.
func floatToUnits(v float64, decimals int) *big.Int {
	f := new(big.Float).SetFloat64(v)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled := new(big.Float).Mul(f, scale)
	out, _ := scaled.Int(nil)
	return out
}

// pathWords encodes an address[] tail: length word followed by the elements.
func pathWords(path []string) []string {
	words := []string{uintWord(big.NewInt(int64(len(path))))}
	for _, p := range path {
		words = append(words, addressWord(p))
	}
	return words
}

// encodeGetAmountsOut builds getAmountsOut(amountIn, path) calldata.
// The dynamic path array starts at offset 0x40 (after the two head words).
func encodeGetAmountsOut(amountIn *big.Int, path []string) string {
	words := []string{uintWord(amountIn), uintWord(big.NewInt(0x40))}
	words = append(words, pathWords(path)...)
	return encodeCall(selGetAmountsOut, words...)
}

// encodeSwapETHForTokens builds calldata for the fee-on-transfer-safe
// ETH-to-token swap. Head words: amountOutMin, path offset (0x80), to,
// deadline; the path tail follows.
func encodeSwapETHForTokens(amountOutMin *big.Int, path []string, to string, deadline int64) string {
	words := []string{
		uintWord(amountOutMin),
		uintWord(big.NewInt(0x80)),
		addressWord(to),
		uintWord(big.NewInt(deadline)),
	}
	words = append(words, pathWords(path)...)
	return encodeCall(selSwapETHForTokens, words...)
}

// encodeSwapTokensForETH builds calldata for the fee-on-transfer-safe
// token-to-ETH swap. Five head words, so the path tail starts at 0xa0.
func encodeSwapTokensForETH(amountIn, amountOutMin *big.Int, path []string, to string, deadline int64) string {
	words := []string{
		uintWord(amountIn),
		uintWord(amountOutMin),
		uintWord(big.NewInt(0xa0)),
		addressWord(to),
		uintWord(big.NewInt(deadline)),
	}
	words = append(words, pathWords(path)...)
	return encodeCall(selSwapTokensForETH, words...)
}

// encodeApprove builds approve(spender, amount) calldata.
func encodeApprove(spender string, amount *big.Int) string {
	return encodeCall(selApprove, addressWord(spender), uintWord(amount))
}

// encodeTransfer builds transfer(to, amount) calldata.
func encodeTransfer(to string, amount *big.Int) string {
	return encodeCall(selTransfer, addressWord(to), uintWord(amount))
}
