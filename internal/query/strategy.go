package query

// Strategy selects which search modality (or combination) serves a
// query, per spec.md §4.11 step 4.
type Strategy string

const (
	StrategyHybrid          Strategy = "HYBRID"
	StrategyDenseOnly       Strategy = "DENSE_ONLY"
	StrategySparseOnly      Strategy = "SPARSE_ONLY"
	StrategyKeywordFallback Strategy = "KEYWORD_FALLBACK"
)

// SelectStrategy implements spec.md's four-way decision table from
// which embeddings succeeded.
func SelectStrategy(denseOK, sparseOK bool) Strategy {
	switch {
	case denseOK && sparseOK:
		return StrategyHybrid
	case denseOK:
		return StrategyDenseOnly
	case sparseOK:
		return StrategySparseOnly
	default:
		return StrategyKeywordFallback
	}
}

// rrfK is the rank-fusion smoothing constant from the original
// Reciprocal Rank Fusion paper (Cormack et al.); it discounts the
// contribution of low ranks without needing the two legs' raw scores
// to be on comparable scales, which cosine-similarity dense scores
// and BM25-ish sparse scores are not.
//
// DESIGN DECISION: spec.md leaves the HYBRID merge rule as an open
// question between a weighted-sum and a rank-fusion rule. Weighted
// sum requires calibrated score ranges per provider to pick sane
// weights; RRF needs only rank order, which is stable across
// providers and requires no per-deployment tuning. RRF is used here.
const rrfK = 60.0

// mergeHybrid fuses two independently ranked hit lists (dense-first,
// sparse-first) into one ranking via Reciprocal Rank Fusion, keyed by
// chunk ID so a hit appearing in both legs gets both contributions.
func mergeHybrid(dense, sparse []scoredHit) []scoredHit {
	fused := make(map[string]float64)
	hitByID := make(map[string]scoredHit)

	accumulate := func(hits []scoredHit) {
		for rank, h := range hits {
			fused[h.id] += 1.0 / (rrfK + float64(rank+1))
			if _, ok := hitByID[h.id]; !ok {
				hitByID[h.id] = h
			}
		}
	}
	accumulate(dense)
	accumulate(sparse)

	out := make([]scoredHit, 0, len(fused))
	for id, score := range fused {
		h := hitByID[id]
		h.score = float32(score)
		out = append(out, h)
	}
	sortByScoreDesc(out)
	return out
}

// scoredHit is the minimal shape mergeHybrid and the reranker operate
// over before response assembly fills in full Match fields.
type scoredHit struct {
	id       string
	filePath string
	content  string
	score    float32
	metadata map[string]string
}

func sortByScoreDesc(hits []scoredHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}
