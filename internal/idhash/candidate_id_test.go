package idhash

import (
	"testing"
)

func TestComputeCandidateID(t *testing.T) {
	tests := []struct {
		name         string
		network      string
		exchange     string
		pairAddress  string
		tokenAddress string
		wantLen      int // hash length should be 64
	}{
		{
			name:         "uniswap pair",
			network:      "ethereum",
			exchange:     "uniswap_v2",
			pairAddress:  "0xPairAddr456DEF",
			tokenAddress: "0xToken123ABC",
			wantLen:      64,
		},
		{
			name:         "pancakeswap pair",
			network:      "bsc",
			exchange:     "pancakeswap_v2",
			pairAddress:  "0xSomePair111",
			tokenAddress: "0xAnotherToken999",
			wantLen:      64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCandidateID(tt.network, tt.exchange, tt.pairAddress, tt.tokenAddress)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeCandidateID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Same inputs must produce the same output.
			again := ComputeCandidateID(tt.network, tt.exchange, tt.pairAddress, tt.tokenAddress)
			if got != again {
				t.Errorf("ComputeCandidateID() not deterministic: %s != %s", got, again)
			}
		})
	}
}

func TestComputeCandidateID_DifferentInputsDifferentIDs(t *testing.T) {
	a := ComputeCandidateID("ethereum", "uniswap_v2", "0xPair1", "0xToken1")
	b := ComputeCandidateID("bsc", "uniswap_v2", "0xPair1", "0xToken1")
	c := ComputeCandidateID("ethereum", "uniswap_v2", "0xPair2", "0xToken1")

	if a == b {
		t.Error("different networks produced the same candidate ID")
	}
	if a == c {
		t.Error("different pairs produced the same candidate ID")
	}
}
