package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectionErrorMessage(t *testing.T) {
	tests := []struct {
		rej  *RejectionError
		want string
	}{
		{&RejectionError{Kind: KindNoPosition, Symbol: "AAPL"}, "AAPL: no position held"},
		{&RejectionError{Kind: KindInsufficientShares, Symbol: "MSFT", Detail: "want 5, hold 2"},
			"MSFT: insufficient shares: want 5, hold 2"},
		{reject(KindInsufficientFunds, "TSLA", "need %s, have %s", "500.00", "100.00"),
			"TSLA: insufficient funds: need 500.00, have 100.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rej.Error())
	}
}
