package models

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"aapl", "AAPL", true},
		{"  msft ", "MSFT", true},
		{"brk.b", "BRK.B", true},
		{"^gspc", "^GSPC", true},
		{"", "", false},
		{"   ", "", false},
		{"AA PL", "AA PL", false},
		{"drop;table", "DROP;TABLE", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeSymbol(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestPositionCostBasis(t *testing.T) {
	p := Position{Symbol: "TEST", Shares: decimal.NewFromInt(5), AverageCost: decimal.NewFromInt(60)}
	assert.True(t, p.CostBasis().Equal(decimal.NewFromInt(300)))
}

func TestSymbolLocksSerializes(t *testing.T) {
	sl := NewSymbolLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := sl.Lock("AAPL")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestReportComplete(t *testing.T) {
	assert.True(t, ValuationReport{}.Complete())
	assert.False(t, ValuationReport{Unpriced: []string{"XYZ"}}.Complete())
}
