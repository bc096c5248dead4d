package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/pkg/logger"
)

func TestDetectAssetClass(t *testing.T) {
	tests := []struct {
		symbol   string
		expected domain.AssetClass
	}{
		{"EUR/USD", domain.AssetClassForex},
		{"gbp/jpy", domain.AssetClassForex},
		{"US500", domain.AssetClassForex},
		{"NAS100", domain.AssetClassForex},
		{"BTCUSDT", domain.AssetClassCrypto},
		{"ETHUSDC", domain.AssetClassCrypto},
		{"BTC-USD", domain.AssetClassCrypto},
		{"AAPL", domain.AssetClassStock},
		{"MSFT", domain.AssetClassStock},
		{"USDT", domain.AssetClassStock}, // bare suffix is not a pair
		{"", domain.AssetClassStock},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectAssetClass(tt.symbol))
		})
	}
}

func TestRegistry_ScorerSingleton(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	registry := NewRegistry(log)

	first, err := registry.GetScorer(domain.AssetClassForex)
	require.NoError(t, err)
	second, err := registry.GetScorer(domain.AssetClassForex)
	require.NoError(t, err)

	// Pointer equality: confidence comparisons across time require one
	// behaviorally stable instance per class
	assert.Same(t, first, second)
}

func TestRegistry_UnsupportedAssetClass(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	registry := NewRegistry(log)

	_, err := registry.GetScorer("bonds")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedAssetClass))
}

func TestRegistry_ScorerForSymbol(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	registry := NewRegistry(log)

	s, err := registry.ScorerForSymbol("EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, domain.AssetClassForex, s.AssetClass())
	assert.Equal(t, 85.0, s.MaxConfidence())
}
