package prioritizer

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// Candidate is a validated signal competing for remaining portfolio
// heat, annotated with its crowding penalty.
type Candidate struct {
	Outcome        domain.ValidationOutcome
	MaxCorrelation float64
}

// OpenSymbolsSource lists the symbols of currently open campaigns
type OpenSymbolsSource interface {
	OpenSymbols() ([]string, error)
}

// Prioritizer ranks competing validated signals so capital flows to the
// highest-conviction, least-correlated opportunity first. Ordering is
// deterministic for reproducible backtests: confidence descending, then
// lower max correlation against open campaigns, ties broken by earliest
// detection timestamp. The sort is stable so equal candidates keep
// their arrival order.
type Prioritizer struct {
	log    zerolog.Logger
	mapper *CorrelationMapper
	open   OpenSymbolsSource
}

// NewPrioritizer creates a signal prioritizer
func NewPrioritizer(mapper *CorrelationMapper, open OpenSymbolsSource, log zerolog.Logger) *Prioritizer {
	return &Prioritizer{
		log:    log.With().Str("service", "prioritizer").Logger(),
		mapper: mapper,
		open:   open,
	}
}

// Rank orders validated outcomes by priority. Rejected outcomes are
// filtered out; they never compete for capital.
func (pr *Prioritizer) Rank(outcomes []domain.ValidationOutcome) []Candidate {
	var openSymbols []string
	if pr.open != nil {
		symbols, err := pr.open.OpenSymbols()
		if err != nil {
			pr.log.Warn().Err(err).Msg("Failed to list open campaign symbols, ranking without correlation")
		} else {
			openSymbols = symbols
		}
	}

	candidates := make([]Candidate, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Validated || o.Score == nil {
			continue
		}
		c := Candidate{Outcome: o}
		if pr.mapper != nil {
			c.MaxCorrelation = pr.mapper.MaxCorrelation(o.Pattern.Symbol, openSymbols)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Outcome.Score.TotalScore != b.Outcome.Score.TotalScore {
			return a.Outcome.Score.TotalScore > b.Outcome.Score.TotalScore
		}
		if a.MaxCorrelation != b.MaxCorrelation {
			return a.MaxCorrelation < b.MaxCorrelation
		}
		return a.Outcome.Pattern.DetectedAt.Before(b.Outcome.Pattern.DetectedAt)
	})

	return candidates
}
