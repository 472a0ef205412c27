// Package evm implements the chain collaborator against EVM JSON-RPC nodes:
// pair discovery on factory contracts, reserve and tax assessment, price
// quotes and router trades. Every remote call draws an endpoint from the
// shared pool and reports the outcome back.
package evm

// Log is one EVM event log as returned by eth_getLogs and eth_subscribe.
type Log struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	Removed     bool     `json:"removed"`
}

// txReceipt is the subset of eth_getTransactionReceipt the client reads.
type txReceipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
}

// logFilter is the eth_getLogs parameter object.
type logFilter struct {
	FromBlock string   `json:"fromBlock"`
	ToBlock   string   `json:"toBlock"`
	Address   string   `json:"address"`
	Topics    []string `json:"topics"`
}

// callMsg is the eth_call parameter object.
type callMsg struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
}

// sendTxMsg is the eth_sendTransaction parameter object. Signing is
// delegated to the node's unlocked account.
type sendTxMsg struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"`
	Gas   string `json:"gas,omitempty"`
}
