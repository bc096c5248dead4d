package scoring

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// cfdIndices are index CFDs quoted by forex brokers; they trade with
// forex-style tick volume and take the forex scorer.
var cfdIndices = map[string]struct{}{
	"US500":  {},
	"US30":   {},
	"NAS100": {},
	"GER40":  {},
	"UK100":  {},
	"JPN225": {},
	"AUS200": {},
	"FRA40":  {},
}

// cryptoSuffixes identify crypto pairs by their quote leg.
var cryptoSuffixes = []string{"USDT", "USDC", "PERP"}

// cryptoSymbols lists dash-quoted spot symbols used by US venues.
var cryptoSymbols = map[string]struct{}{
	"BTC-USD": {},
	"ETH-USD": {},
	"SOL-USD": {},
	"ADA-USD": {},
	"XRP-USD": {},
}

// DetectAssetClass classifies a symbol. Pure and total: every input
// maps to a class with no I/O, so classification is deterministic and
// O(1) for backtest reproducibility.
func DetectAssetClass(symbol string) domain.AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	if strings.Contains(s, "/") {
		return domain.AssetClassForex
	}
	if _, ok := cfdIndices[s]; ok {
		return domain.AssetClassForex
	}
	if _, ok := cryptoSymbols[s]; ok {
		return domain.AssetClassCrypto
	}
	for _, suffix := range cryptoSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return domain.AssetClassCrypto
		}
	}
	return domain.AssetClassStock
}

// Registry resolves scorers by asset class. Each class gets exactly one
// lazily-built instance for the process lifetime: confidence scores are
// compared across signals generated over time, so they must come from a
// behaviorally stable scorer instance. The cache is mutex-guarded and
// injected into the pipeline rather than held as package state, keeping
// lifecycle explicit for tests.
type Registry struct {
	log zerolog.Logger

	mu      sync.Mutex
	scorers map[domain.AssetClass]Scorer
}

// NewRegistry creates a scorer registry
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:     log.With().Str("component", "scorer_registry").Logger(),
		scorers: make(map[domain.AssetClass]Scorer),
	}
}

// GetScorer returns the singleton scorer for an asset class, building
// it on first use. Unknown classes are a configuration error.
func (r *Registry) GetScorer(class domain.AssetClass) (Scorer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.scorers[class]; ok {
		return s, nil
	}

	var s Scorer
	switch class {
	case domain.AssetClassStock:
		s = NewStockScorer()
	case domain.AssetClassForex:
		s = NewForexScorer()
	case domain.AssetClassCrypto:
		s = NewCryptoScorer()
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedAssetClass, class)
	}

	r.scorers[class] = s
	r.log.Debug().Str("asset_class", string(class)).Msg("Scorer initialized")
	return s, nil
}

// ScorerForSymbol resolves the scorer for a symbol in one step
func (r *Registry) ScorerForSymbol(symbol string) (Scorer, error) {
	return r.GetScorer(DetectAssetClass(symbol))
}
