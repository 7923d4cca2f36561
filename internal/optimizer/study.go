package optimizer

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/genesis-core/genesis-core/internal/backtest"
	"github.com/genesis-core/genesis-core/internal/config"
	cerrors "github.com/genesis-core/genesis-core/internal/errors"
	"github.com/genesis-core/genesis-core/internal/metrics"
	"github.com/genesis-core/genesis-core/internal/store"
)

// TrialResult is one optimizer trial's outcome.
type TrialResult struct {
	TrialNum                    int
	ParamFingerprint            string
	Params                      map[string]interface{}
	EffectiveConfigFingerprint  string
	Score                       float64
	Verdict                     ConstraintVerdict
	CachedHit                   bool
	Aborted                     bool
	AbortReason                 string
}

// Study owns one optimization run: the search space, cached runtime
// defaults, score memory, trial persistence, and the backtest runner
// it drives. One Study is meant to be shared by a worker pool; the
// embedded rate.Limiter paces trial submission the way a bounded
// request scanner paces outbound calls.
type Study struct {
	Name       string
	SearchCfg  SearchConfig
	DefaultCfg config.Doc
	ScoreMem   store.ScoreMemory
	StudyDB    *store.StudyDB
	RunBacktest func(ctx context.Context, effective config.Doc) (*backtest.Result, error)
	Limiter    *rate.Limiter

	RuntimeVersion string

	ResumeSignature      string
	AllowResumeMismatch  bool

	// Registry collects trial-outcome counters for this study. Nil is
	// valid and disables counting entirely.
	Registry *metrics.Registry
}

// NewStudy constructs a Study with a default submission rate of 10
// trials/sec, burst 5; callers may replace Limiter afterwards.
func NewStudy(name string, searchCfg SearchConfig, defaultCfg config.Doc, scoreMem store.ScoreMemory, studyDB *store.StudyDB, runBacktest func(ctx context.Context, effective config.Doc) (*backtest.Result, error)) *Study {
	return &Study{
		Name:        name,
		SearchCfg:   searchCfg,
		DefaultCfg:  defaultCfg,
		ScoreMem:    scoreMem,
		StudyDB:     studyDB,
		RunBacktest: runBacktest,
		Limiter:     rate.NewLimiter(rate.Limit(10), 5),
	}
}

// ParamFingerprint computes a stable fingerprint over a flat parameter
// map: the cache key for score memory and trial dedup. Presenting the
// same parameter fingerprint twice must never re-run the backtest.
func ParamFingerprint(params map[string]interface{}) string {
	ordered := make(map[string]interface{}, len(params))
	for _, k := range paramNamesSorted(params) {
		ordered[k] = params[k]
	}
	data, _ := json.Marshal(ordered)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:16]
}

// RunTrial runs one optimizer trial end to end:
//  1. transform_parameters expands the flat trial params
//  2. deep-merge with the cached default config, skipping the champion layer
//  3. compute the param fingerprint and consult score memory / trial store
//  4. run the backtest if not cached
//  5. evaluate hard/soft constraints and score the trial
//  6. apply the zero-trades abort heuristic
//  7. persist the trial and cache its score
func (s *Study) RunTrial(ctx context.Context, trialNum int, params map[string]interface{}) (TrialResult, error) {
	transformed := TransformParameters(params)
	effective, err := config.ResolveEffective(s.DefaultCfg, nil, transformed, config.CallerOnly)
	if err != nil {
		return TrialResult{}, cerrors.FatalConfig("failed to resolve trial config", err)
	}
	ensureSkipChampionMerge(effective)

	fp := ParamFingerprint(params)

	if err := s.Limiter.Wait(ctx); err != nil {
		return TrialResult{}, cerrors.Transient("rate limiter wait failed", err)
	}

	if score, ok, err := s.ScoreMem.Get(ctx, fp); err != nil {
		return TrialResult{}, cerrors.Transient("score memory lookup failed", err)
	} else if ok {
		s.Registry.RecordTrial("cached_hit")
		return TrialResult{TrialNum: trialNum, ParamFingerprint: fp, Params: params, Score: score, CachedHit: true}, nil
	}

	if s.StudyDB != nil {
		if rec, ok, err := s.StudyDB.GetByFingerprint(ctx, fp); err == nil && ok {
			_ = s.ScoreMem.Set(ctx, fp, rec.Score)
			s.Registry.RecordTrial("cached_hit")
			return TrialResult{TrialNum: trialNum, ParamFingerprint: fp, Params: params, Score: rec.Score, CachedHit: true, EffectiveConfigFingerprint: rec.EffectiveConfigHash}, nil
		}
	}

	result, err := s.RunBacktest(ctx, effective)
	if err != nil {
		return TrialResult{}, cerrors.Transient("trial backtest failed", err)
	}

	commissionPct := docFloat(effective, "backtest", "commission")
	totalCommissionPct := commissionPct * 2 * float64(result.TradeMetrics.Count)
	verdict := EvaluateConstraints(s.SearchCfg, result.TradeMetrics, result.EquityMetrics, totalCommissionPct)

	score := result.Score
	switch {
	case verdict.HardFailed:
		score = HardFailureScore
	default:
		score -= verdict.Penalty
	}

	aborted := false
	abortReason := ""
	if s.SearchCfg.AbortIfZeroTrades && result.TradeMetrics.Count == 0 && trialNum >= s.SearchCfg.AbortAfterTrials {
		score = ZeroTradeAbortScore
		aborted = true
		abortReason = fmt.Sprintf("zero trades after %d trials", trialNum)
	}

	switch {
	case aborted:
		s.Registry.RecordTrial("aborted")
	case verdict.HardFailed:
		s.Registry.RecordTrial("hard_failed")
	default:
		s.Registry.RecordTrial("scored")
	}

	if err := s.ScoreMem.Set(ctx, fp, score); err != nil {
		return TrialResult{}, cerrors.Transient("score memory write failed", err)
	}

	effFp := config.Fingerprint(effective)
	tr := TrialResult{
		TrialNum:                   trialNum,
		ParamFingerprint:           fp,
		Params:                     params,
		EffectiveConfigFingerprint: effFp,
		Score:                      score,
		Verdict:                    verdict,
		Aborted:                    aborted,
		AbortReason:                abortReason,
	}

	if s.StudyDB != nil {
		metricsJSON, err := store.MarshalMetrics(struct {
			Trade  interface{} `json:"trade"`
			Equity interface{} `json:"equity"`
		}{result.TradeMetrics, result.EquityMetrics})
		if err != nil {
			return tr, err
		}
		rec := store.TrialRecord{
			RunID:               s.Name,
			TrialNum:            trialNum,
			ParamFingerprint:    fp,
			Score:               score,
			MetricsJSON:         metricsJSON,
			ConstraintVerdict:   verdictSummary(verdict),
			EffectiveConfigHash: effFp,
			CreatedAt:           time.Now().UTC(),
		}
		if err := s.StudyDB.SaveTrial(ctx, rec); err != nil {
			return tr, err
		}
	}

	return tr, nil
}

func verdictSummary(v ConstraintVerdict) string {
	if v.HardFailed {
		return "hard_failed"
	}
	if len(v.SoftViolations) > 0 {
		return "soft_penalty"
	}
	return "pass"
}

// docFloat reads a nested float64 field from a config.Doc, defaulting
// to 0 when absent or of the wrong type (commission must have already
// been validated mandatory by config.Load before this runs).
func docFloat(doc config.Doc, section, key string) float64 {
	nested, ok := doc[section].(config.Doc)
	if !ok {
		asMap, ok := doc[section].(map[string]interface{})
		if !ok {
			return 0
		}
		nested = config.Doc(asMap)
	}
	v, ok := nested[key].(float64)
	if !ok {
		return 0
	}
	return v
}

// MaybePromote promotes a trial's config to champion only if its score
// beats the current champion's by at least promotion.min_improvement,
// or no champion exists yet.
func (s *Study) MaybePromote(ctx context.Context, symbol, timeframe string, trial TrialResult, effective config.Doc) (bool, error) {
	if !s.SearchCfg.Promotion.Enabled || s.StudyDB == nil {
		return false, nil
	}
	champion, ok, err := s.StudyDB.GetChampion(ctx, symbol, timeframe)
	if err != nil {
		return false, err
	}
	if ok && trial.Score <= champion.Score+s.SearchCfg.Promotion.MinImprovement {
		return false, nil
	}
	mergedJSON, err := json.Marshal(effective)
	if err != nil {
		return false, cerrors.FatalData("failed to marshal champion config", err)
	}
	err = s.StudyDB.PromoteChampion(ctx, store.Champion{
		Symbol:         symbol,
		Timeframe:      timeframe,
		MergedConfig:   string(mergedJSON),
		Score:          trial.Score,
		RuntimeVersion: s.RuntimeVersion,
		Fingerprint:    trial.EffectiveConfigFingerprint,
		PromotedAt:     time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
