// Package search orchestrates the retrieval pipeline: strategy selection,
// concurrent retrieval fan-out, score fusion, reranking, and response
// synthesis.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/celt313/gamequest/agent"
	"github.com/celt313/gamequest/catalog"
	"github.com/celt313/gamequest/metrics"
	"github.com/celt313/gamequest/rerank"
	"github.com/celt313/gamequest/resilience"
	"github.com/celt313/gamequest/retriever"
	"github.com/celt313/gamequest/schema"
)

// Planner coordinates one search request end to end. It is safe for
// concurrent use; all per-request state lives on the stack.
type Planner struct {
	catalog   catalog.Store
	fusion    *retriever.FusionEngine
	semantic  retriever.Retriever
	visual    map[schema.Scope]retriever.Retriever
	reranker  *rerank.Reranker
	extractor *agent.FilterExtractor
	explainer *agent.Explainer
	executor  *resilience.Executor
	synth     *Synthesizer
	log       *zap.Logger

	defaultTopK      int
	maxTopK          int
	yearFloor        int
	retrievalTimeout time.Duration
	rerankTimeout    time.Duration
	reasoningTimeout time.Duration
}

// PlannerOption is a functional option for Planner.
type PlannerOption func(*Planner)

// WithSemanticRetriever sets the text retriever.
func WithSemanticRetriever(r retriever.Retriever) PlannerOption {
	return func(p *Planner) { p.semantic = r }
}

// WithVisualRetriever sets the visual retriever for one scope.
func WithVisualRetriever(scope schema.Scope, r retriever.Retriever) PlannerOption {
	return func(p *Planner) { p.visual[scope] = r }
}

// WithReranker enables second-pass relevance reranking.
func WithReranker(r *rerank.Reranker) PlannerOption {
	return func(p *Planner) { p.reranker = r }
}

// WithFilterExtractor enables agentic filter extraction.
func WithFilterExtractor(e *agent.FilterExtractor) PlannerOption {
	return func(p *Planner) { p.extractor = e }
}

// WithExplainer enables agentic result explanations.
func WithExplainer(e *agent.Explainer) PlannerOption {
	return func(p *Planner) { p.explainer = e }
}

// WithExecutor sets the resilience executor wrapping outbound calls.
func WithExecutor(e *resilience.Executor) PlannerOption {
	return func(p *Planner) { p.executor = e }
}

// WithLogger sets the planner logger.
func WithLogger(l *zap.Logger) PlannerOption {
	return func(p *Planner) { p.log = l }
}

// WithResultLimits sets the default and maximum result counts.
func WithResultLimits(defaultTopK, maxTopK int) PlannerOption {
	return func(p *Planner) {
		p.defaultTopK = defaultTopK
		p.maxTopK = maxTopK
	}
}

// WithYearFloor sets the earliest year filters may reference.
func WithYearFloor(year int) PlannerOption {
	return func(p *Planner) { p.yearFloor = year }
}

// WithTimeouts sets the per-call timeouts for retrieval, rerank, and
// reasoning calls.
func WithTimeouts(retrieval, rerankT, reasoning time.Duration) PlannerOption {
	return func(p *Planner) {
		p.retrievalTimeout = retrieval
		p.rerankTimeout = rerankT
		p.reasoningTimeout = reasoning
	}
}

// NewPlanner creates a Planner.
func NewPlanner(cat catalog.Store, fusion *retriever.FusionEngine, opts ...PlannerOption) *Planner {
	p := &Planner{
		catalog:          cat,
		fusion:           fusion,
		visual:           make(map[schema.Scope]retriever.Retriever),
		log:              zap.NewNop(),
		defaultTopK:      10,
		maxTopK:          100,
		yearFloor:        1950,
		retrievalTimeout: 5 * time.Second,
		rerankTimeout:    10 * time.Second,
		reasoningTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.executor == nil {
		p.executor = resilience.NewExecutor(resilience.DefaultConfig(), p.log)
	}
	p.synth = NewSynthesizer(WithMaxResults(p.maxTopK))
	return p
}

// retrievalPlan is one issued retrieval call.
type retrievalPlan struct {
	source schema.Source
	ret    retriever.Retriever
}

// retrievalOutcome is the settled result of one retrieval call.
type retrievalOutcome struct {
	source     schema.Source
	candidates []schema.ScoredCandidate
	err        error
}

// Search runs the full pipeline for one request.
func (p *Planner) Search(ctx context.Context, req schema.SearchRequest) (*schema.SearchResponse, error) {
	start := time.Now()

	strategy, filterOnly, err := p.selectStrategy(req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid", schema.ErrorCode(err)).Inc()
		return nil, err
	}
	label := strategy.String()
	if filterOnly {
		label = "filter"
	}

	resp, err := p.search(ctx, req, strategy, filterOnly)

	status := "ok"
	if err != nil {
		status = schema.ErrorCode(err)
	}
	metrics.SearchRequestsTotal.WithLabelValues(label, status).Inc()
	metrics.SearchDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return resp, err
}

func (p *Planner) search(ctx context.Context, req schema.SearchRequest, strategy schema.Strategy, filterOnly bool) (*schema.SearchResponse, error) {
	log := p.log.With(zap.String("strategy", strategy.String()))

	topK, err := p.resolveTopK(req.TopK)
	if err != nil {
		return nil, err
	}

	filters := req.Filters
	if err := filters.Validate(p.yearFloor); err != nil {
		return nil, err
	}

	var trace *agent.AgentTrace
	if strategy == schema.StrategyAgentic {
		trace = agent.NewTrace()
		log = log.With(zap.String("trace_id", trace.ID()))
		filters = p.extractFilters(ctx, req.QueryText, filters, trace, log)
	}

	allowed, err := p.filterScope(ctx, filters)
	if err != nil {
		return nil, err
	}

	// A filter that matches nothing short-circuits to an empty result.
	if allowed != nil && len(allowed) == 0 {
		return p.synth.Synthesize(nil, nil, "", nil, topK)
	}

	plans, err := p.planRetrievals(req, strategy, filterOnly)
	if err != nil {
		return nil, err
	}

	var (
		bySource = make(map[schema.Source][]schema.ScoredCandidate, len(plans))
		degraded []string
	)
	if filterOnly {
		bySource[schema.SourceFilter] = filterCandidates(allowed)
	} else {
		bySource, degraded, err = p.fanOut(ctx, plans, req, topK, allowed, trace, log)
		if err != nil {
			return nil, err
		}
	}

	fused := p.fusion.Fuse(bySource, 0)
	if len(fused) == 0 {
		return p.synth.Synthesize(nil, nil, "", degraded, topK)
	}

	// Hydrate enough of the head to cover both the rerank window and the
	// requested result count.
	hydrateN := topK
	if p.reranker != nil && p.reranker.Window() > hydrateN {
		hydrateN = p.reranker.Window()
	}
	if hydrateN > len(fused) {
		hydrateN = len(fused)
	}
	fused = fused[:hydrateN]

	games, err := p.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}

	// Entries the catalog no longer knows are index leftovers; drop them.
	kept := fused[:0]
	for _, c := range fused {
		if _, ok := games[c.ItemID]; ok {
			kept = append(kept, c)
		} else {
			log.Warn("dropping candidate missing from catalog", zap.String("item_id", c.ItemID))
		}
	}
	fused = kept

	ordered := tieBreakFused(fused, games)

	if p.reranker != nil && req.QueryText != "" && len(ordered) > 0 {
		rctx, cancel := context.WithTimeout(ctx, p.rerankTimeout)
		reordered := ordered
		rerr := p.executor.Execute(rctx, "rerank", func(ctx context.Context) error {
			var err error
			reordered, err = p.reranker.Rerank(ctx, req.QueryText, ordered, games)
			return err
		}, resilience.ReasoningClassifier)
		cancel()
		if rerr != nil {
			metrics.RerankFallbacksTotal.Inc()
			log.Warn("rerank failed, serving fused order", zap.Error(rerr))
		}
		ordered = reordered
	}

	if len(ordered) > topK {
		ordered = ordered[:topK]
	}

	ranked := make([]schema.RankedItem, len(ordered))
	for i, c := range ordered {
		g := games[c.ItemID]
		ranked[i] = schema.RankedItem{
			ItemID:       c.ItemID,
			Score:        c.Score,
			Sources:      c.Sources,
			CatalogScore: g.MobyScore,
		}
	}

	explanation := ""
	if strategy == schema.StrategyAgentic && p.explainer != nil {
		explanation = p.explain(ctx, req.QueryText, ranked, games, trace, log)
	}

	return p.synth.Synthesize(ranked, games, explanation, degraded, topK)
}

// selectStrategy maps the request shape and declared mode onto a strategy.
func (p *Planner) selectStrategy(req schema.SearchRequest) (schema.Strategy, bool, error) {
	hasText := req.QueryText != ""
	hasImage := len(req.QueryImage) > 0

	switch req.Mode {
	case "text", "semantic":
		if !hasText {
			return 0, false, fmt.Errorf("%w: mode %q requires query_text", schema.ErrInvalidFilter, req.Mode)
		}
		return schema.StrategyText, false, nil
	case "visual":
		if !hasImage {
			return 0, false, fmt.Errorf("%w: mode \"visual\" requires query_image", schema.ErrInvalidFilter)
		}
		return schema.StrategyVisual, false, nil
	case "agentic":
		if !hasText {
			return 0, false, fmt.Errorf("%w: mode \"agentic\" requires query_text", schema.ErrInvalidFilter)
		}
		return schema.StrategyAgentic, false, nil
	case "":
	default:
		return 0, false, fmt.Errorf("%w: unknown mode %q", schema.ErrInvalidFilter, req.Mode)
	}

	switch {
	case hasText && hasImage:
		return schema.StrategyBoth, false, nil
	case hasText:
		return schema.StrategyText, false, nil
	case hasImage:
		return schema.StrategyVisual, false, nil
	case !req.Filters.IsEmpty():
		// Structured-only: the filter gateway is the sole source.
		return schema.StrategyText, true, nil
	default:
		return 0, false, fmt.Errorf("%w: query_text, query_image, or filters required", schema.ErrInvalidFilter)
	}
}

func (p *Planner) resolveTopK(topK int) (int, error) {
	if topK < 0 {
		return 0, fmt.Errorf("%w: top_k must be non-negative", schema.ErrInvalidFilter)
	}
	if topK == 0 {
		return p.defaultTopK, nil
	}
	if topK > p.maxTopK {
		return p.maxTopK, nil
	}
	return topK, nil
}

// extractFilters asks the reasoning service for implied filters and merges
// them under the caller's explicit ones. Failures are non-fatal.
func (p *Planner) extractFilters(ctx context.Context, query string, user *schema.FilterSpec, trace *agent.AgentTrace, log *zap.Logger) *schema.FilterSpec {
	if p.extractor == nil || query == "" {
		return user
	}

	ectx, cancel := context.WithTimeout(ctx, p.reasoningTimeout)
	defer cancel()

	var (
		extracted *schema.FilterSpec
		raw       string
	)
	err := p.executor.Execute(ectx, "filter_extraction", func(ctx context.Context) error {
		var eerr error
		extracted, raw, eerr = p.extractor.Extract(ctx, query)
		return eerr
	}, resilience.ReasoningClassifier)
	if err != nil {
		log.Warn("filter extraction failed, proceeding without implied filters", zap.Error(err))
		trace.Record(agent.Step{Kind: agent.StepFilterExtraction, Detail: "failed: " + err.Error()})
		return user
	}
	trace.Record(agent.Step{
		Kind:      agent.StepFilterExtraction,
		Detail:    fmt.Sprintf("extracted filters: %+v", *extracted),
		RawOutput: raw,
	})
	return mergeFilters(user, extracted)
}

// mergeFilters overlays extracted filters under the caller's: explicit
// fields always win.
func mergeFilters(user, extracted *schema.FilterSpec) *schema.FilterSpec {
	if extracted.IsEmpty() {
		return user
	}
	merged := &schema.FilterSpec{}
	if user != nil {
		*merged = *user
	}
	if len(merged.Platforms) == 0 {
		merged.Platforms = extracted.Platforms
	}
	if len(merged.Genres) == 0 {
		merged.Genres = extracted.Genres
	}
	if merged.MinScore == nil {
		merged.MinScore = extracted.MinScore
	}
	if merged.MinYear == 0 {
		merged.MinYear = extracted.MinYear
	}
	if merged.MaxYear == 0 {
		merged.MaxYear = extracted.MaxYear
	}
	if !merged.ScoredOnly {
		merged.ScoredOnly = extracted.ScoredOnly
	}
	return merged
}

func (p *Planner) filterScope(ctx context.Context, filters *schema.FilterSpec) (schema.IDSet, error) {
	if filters.IsEmpty() {
		return nil, nil
	}

	var allowed schema.IDSet
	err := p.executor.Execute(ctx, "catalog_filter", func(ctx context.Context) error {
		var ferr error
		allowed, ferr = p.catalog.FilterIDs(ctx, filters)
		return ferr
	}, resilience.RetrievalClassifier)
	if err != nil {
		if errors.Is(err, schema.ErrInvalidFilter) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: catalog filter: %v", schema.ErrRetrievalUnavailable, err)
	}
	return allowed, nil
}

func (p *Planner) planRetrievals(req schema.SearchRequest, strategy schema.Strategy, filterOnly bool) ([]retrievalPlan, error) {
	if filterOnly {
		return nil, nil
	}

	var plans []retrievalPlan
	addVisual := func() error {
		scope := req.ImageScope
		if scope == "" {
			scope = schema.ScopeCover
		}
		r, ok := p.visual[scope]
		if !ok {
			return fmt.Errorf("%w: unsupported image scope %q", schema.ErrInvalidFilter, scope)
		}
		plans = append(plans, retrievalPlan{source: r.Source(), ret: r})
		return nil
	}

	switch strategy {
	case schema.StrategyText, schema.StrategyAgentic:
		if p.semantic == nil {
			return nil, fmt.Errorf("%w: semantic retrieval not configured", schema.ErrRetrievalUnavailable)
		}
		plans = append(plans, retrievalPlan{source: p.semantic.Source(), ret: p.semantic})
	case schema.StrategyVisual:
		if err := addVisual(); err != nil {
			return nil, err
		}
	case schema.StrategyBoth:
		if p.semantic == nil {
			return nil, fmt.Errorf("%w: semantic retrieval not configured", schema.ErrRetrievalUnavailable)
		}
		plans = append(plans, retrievalPlan{source: p.semantic.Source(), ret: p.semantic})
		if err := addVisual(); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// fanOut issues all planned retrievals concurrently and waits for every
// call to settle. A failed or timed-out source degrades to an empty
// contribution; all sources failing fails the request.
func (p *Planner) fanOut(
	ctx context.Context,
	plans []retrievalPlan,
	req schema.SearchRequest,
	topK int,
	allowed schema.IDSet,
	trace *agent.AgentTrace,
	log *zap.Logger,
) (map[schema.Source][]schema.ScoredCandidate, []string, error) {
	outcomes := make(chan retrievalOutcome, len(plans))

	for _, plan := range plans {
		go func(plan retrievalPlan) {
			callStart := time.Now()
			cctx, cancel := context.WithTimeout(ctx, p.retrievalTimeout)
			defer cancel()

			var candidates []schema.ScoredCandidate
			err := p.executor.Execute(cctx, "retrieve_"+string(plan.source), func(ctx context.Context) error {
				var rerr error
				candidates, rerr = plan.ret.Retrieve(ctx, retriever.Query{
					Text:    req.QueryText,
					Image:   req.QueryImage,
					TopK:    topK,
					Allowed: allowed,
				})
				return rerr
			}, resilience.RetrievalClassifier)

			metrics.RetrievalDuration.WithLabelValues(string(plan.source)).Observe(time.Since(callStart).Seconds())
			outcomes <- retrievalOutcome{source: plan.source, candidates: candidates, err: err}
		}(plan)
	}

	bySource := make(map[schema.Source][]schema.ScoredCandidate, len(plans))
	var degraded []string
	for range plans {
		o := <-outcomes
		if o.err != nil {
			degraded = append(degraded, string(o.source))
			metrics.DegradedSourcesTotal.WithLabelValues(string(o.source)).Inc()
			log.Warn("retrieval source degraded", zap.String("source", string(o.source)), zap.Error(o.err))
			trace.Record(agent.Step{Kind: agent.StepRetrieval, Detail: fmt.Sprintf("%s failed: %v", o.source, o.err)})
			continue
		}
		bySource[o.source] = o.candidates
		trace.Record(agent.Step{Kind: agent.StepRetrieval, Detail: fmt.Sprintf("%s: %d candidates", o.source, len(o.candidates))})
	}
	sort.Strings(degraded)

	if len(plans) > 0 && len(degraded) == len(plans) {
		return nil, degraded, fmt.Errorf("%w: all retrieval sources failed", schema.ErrRetrievalUnavailable)
	}
	return bySource, degraded, nil
}

func (p *Planner) hydrate(ctx context.Context, fused []schema.FusedCandidate) (map[string]schema.Game, error) {
	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.ItemID
	}

	var games map[string]schema.Game
	err := p.executor.Execute(ctx, "catalog_get", func(ctx context.Context) error {
		var gerr error
		games, gerr = p.catalog.Get(ctx, ids)
		return gerr
	}, resilience.RetrievalClassifier)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog hydration: %v", schema.ErrRetrievalUnavailable, err)
	}
	return games, nil
}

func (p *Planner) explain(ctx context.Context, query string, ranked []schema.RankedItem, games map[string]schema.Game, trace *agent.AgentTrace, log *zap.Logger) string {
	topGames := make([]schema.Game, 0, len(ranked))
	for _, item := range ranked {
		topGames = append(topGames, games[item.ItemID])
	}

	ectx, cancel := context.WithTimeout(ctx, p.reasoningTimeout)
	defer cancel()

	var text string
	err := p.executor.Execute(ectx, "explanation", func(ctx context.Context) error {
		var eerr error
		text, eerr = p.explainer.Explain(ctx, query, topGames)
		return eerr
	}, resilience.ReasoningClassifier)
	if err != nil {
		log.Warn("explanation failed, omitting", zap.Error(err))
		trace.Record(agent.Step{Kind: agent.StepExplanation, Detail: "failed: " + err.Error()})
		return ""
	}
	trace.Record(agent.Step{Kind: agent.StepExplanation, RawOutput: text})
	return text
}

// filterCandidates turns the eligible id set into uniform-score candidates
// for the structured-only path.
func filterCandidates(allowed schema.IDSet) []schema.ScoredCandidate {
	candidates := make([]schema.ScoredCandidate, 0, len(allowed))
	for id := range allowed {
		candidates = append(candidates, schema.ScoredCandidate{
			ItemID: id,
			Source: schema.SourceFilter,
			Score:  1.0,
		})
	}
	return candidates
}

// tieBreakFused orders fused candidates by the standard total order,
// using catalog scores for ties.
func tieBreakFused(fused []schema.FusedCandidate, games map[string]schema.Game) []schema.FusedCandidate {
	ranked := make([]schema.RankedItem, len(fused))
	for i, c := range fused {
		g := games[c.ItemID]
		ranked[i] = schema.RankedItem{
			ItemID:       c.ItemID,
			Score:        c.Score,
			Sources:      c.Sources,
			CatalogScore: g.MobyScore,
		}
	}
	schema.SortRanked(ranked)

	out := make([]schema.FusedCandidate, len(ranked))
	for i, item := range ranked {
		out[i] = schema.FusedCandidate{ItemID: item.ItemID, Score: item.Score, Sources: item.Sources}
	}
	return out
}
