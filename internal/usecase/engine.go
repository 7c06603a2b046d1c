package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"askcode/config"
	"askcode/internal/adapter/cache"
	"askcode/internal/domain"
	"askcode/internal/port"
)

// Fixed payload texts.
const (
	MissingCredentialsAnswer = "Missing language model credentials."
	ErrorAnswer              = "Error processing query."

	SuggestWarning = "This is a proposal for new code. The feature does not exist in the codebase yet; review before implementing."
	DocsWarning    = "Generated from the retrieved code. Content is inferred and may be incomplete or out of date."
	DocsNoContext  = "Documentation could not be generated: no relevant code was found for this session."

	noRelatedCode = "No related code was retrieved."
	noContext     = "None provided."
)

// Capabilities are the external handles the engine runs on. Optional
// handles may be absent; the engine checks before use.
type Capabilities struct {
	Indexes  port.IndexOpener
	Reranker port.Optional[port.Reranker]
	Fast     port.Optional[port.LLM]
	High     port.Optional[port.LLM]
	Cache    port.Cache
	Recorder port.Recorder
}

// Engine answers questions about ingested codebases.
type Engine struct {
	cfg       *config.Config
	caps      Capabilities
	retriever *Retriever
	router    Router
	prompts   *Prompts
	metrics   *Metrics
	log       *zap.Logger
}

func NewEngine(cfg *config.Config, caps Capabilities, metrics *Metrics, log *zap.Logger) (*Engine, error) {
	if caps.Indexes == nil {
		return nil, errors.New("engine requires an index opener")
	}
	if caps.Cache == nil {
		caps.Cache = cache.Disabled{}
	}
	if caps.Recorder == nil {
		caps.Recorder = nopRecorder{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}

	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		caps:      caps,
		retriever: NewRetriever(caps.Indexes, caps.Reranker, cfg.Retrieve, log.Named("retriever")),
		router:    NewRouter(cfg.Models),
		prompts:   prompts,
		metrics:   metrics,
		log:       log,
	}, nil
}

// Query answers req.Question from the session's index. Request errors and
// ErrNotIngested are returned; every other failure becomes a payload.
func (e *Engine) Query(ctx context.Context, req domain.QueryRequest) (domain.Answer, error) {
	start := time.Now()

	if err := domain.ValidateSessionID(req.SessionID); err != nil {
		return domain.Answer{}, err
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return domain.Answer{}, domain.InvalidRequest("question is empty")
	}
	if err := req.Filters.Validate(); err != nil {
		return domain.Answer{}, err
	}

	tr := e.newTrace("query", req.SessionID, question)

	fast, ok := e.caps.Fast.Get()
	if !ok {
		tr.outcome = "missing_credentials"
		e.record(tr, start)
		return domain.Answer{Answer: MissingCredentialsAnswer, Sources: []string{}}, nil
	}

	k := e.cfg.Retrieve.TopK
	key := cache.QueryKey(req.SessionID, question, k, e.modelTag(fast), req.Filters)

	var cached domain.Answer
	if e.cacheGet(ctx, key, &cached) {
		tr.cacheHit = true
		tr.outcome = "cache_hit"
		tr.modelUsed = cached.ModelUsed
		tr.retrievalConf = cached.RetrievalConf
		tr.rerankConf = cached.RerankConf
		e.metrics.Observe(time.Since(start), true)
		e.record(tr, start)
		return cached, nil
	}

	chunks, stats, err := e.retriever.RetrieveAndRerank(ctx, req.SessionID, question, k, req.Filters)
	if err != nil {
		if errors.Is(err, domain.ErrNotIngested) {
			return domain.Answer{}, err
		}
		e.log.Error("retrieval failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return e.failQuery(tr, start, err), nil
	}

	if len(chunks) == 0 || AverageScore(chunks) < e.cfg.Retrieve.MinAnswerScore {
		ans := domain.Answer{Answer: NotPresentAnswer, Sources: []string{}, RetrievalConf: round4(AverageScore(chunks))}
		e.cacheSet(ctx, key, ans)
		tr.outcome = "no_context"
		tr.retrievalConf = ans.RetrievalConf
		e.metrics.Observe(time.Since(start), false)
		e.record(tr, start)
		return ans, nil
	}

	route := e.router.Decide(chunks)
	model, tier := e.pickModel(route.Tier, fast)
	e.metrics.ObserveTier(tier)

	e.log.Debug("confidence routing",
		zap.String("tier", string(tier)),
		zap.Float64("avg_score", route.AvgScore),
		zap.Float64("rerank_conf", route.RerankConfidence),
		zap.Bool("has_rerank", route.HasRerank),
		zap.Int("r", stats.R))

	system, user, err := e.prompts.Render("qa", map[string]string{
		"Question": question,
		"Chunks":   formatChunks(chunks),
	})
	if err != nil {
		return e.failQuery(tr, start, err), nil
	}

	out, err := model.GenerateWithSystem(ctx, system, user)
	if err != nil {
		e.log.Error("model call failed", zap.String("model", model.ModelName()), zap.Error(err))
		return e.failQuery(tr, start, err), nil
	}

	ans := domain.Answer{
		Sources:       []string{},
		ModelUsed:     string(tier),
		RetrievalConf: round4(route.AvgScore),
		RerankConf:    round4(route.RerankConfidence),
	}
	text, grounded := EnforceCitations(out, chunks)
	ans.Answer = text
	if grounded {
		ans.Sources = SourcesOf(chunks)
		tr.outcome = "answered"
	} else {
		tr.outcome = "ungrounded"
	}

	e.cacheSet(ctx, key, ans)

	tr.modelUsed = ans.ModelUsed
	tr.retrievalConf = ans.RetrievalConf
	tr.rerankConf = ans.RerankConf
	latency := time.Since(start)
	e.metrics.Observe(latency, false)
	e.record(tr, start)

	e.log.Info("query handled",
		zap.String("session_id", req.SessionID),
		zap.Duration("latency", latency),
		zap.String("tier", ans.ModelUsed),
		zap.Int("sources", len(ans.Sources)))
	return ans, nil
}

func (e *Engine) failQuery(tr *trace, start time.Time, err error) domain.Answer {
	tr.outcome = "error"
	tr.err = err
	e.metrics.Observe(time.Since(start), false)
	e.record(tr, start)
	return domain.Answer{Answer: ErrorAnswer, Sources: []string{}}
}

// Suggest asks the model to propose new code for req.Question, using the
// session's code as a style reference.
func (e *Engine) Suggest(ctx context.Context, req domain.SuggestRequest) (domain.Proposal, error) {
	start := time.Now()

	if err := domain.ValidateSessionID(req.SessionID); err != nil {
		return domain.Proposal{}, err
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return domain.Proposal{}, domain.InvalidRequest("question is empty")
	}

	tr := e.newTrace("suggest", req.SessionID, question)
	defer e.record(tr, start)

	fail := func(reason string, err error) domain.Proposal {
		tr.outcome = "failed"
		tr.err = err
		return domain.Proposal{Status: domain.ProposalFailed, Sources: []string{}, Warning: reason}
	}

	model, ok := e.caps.Fast.Get()
	if !ok {
		return fail(MissingCredentialsAnswer, nil), nil
	}

	k := e.cfg.Retrieve.TopK
	key := cache.SuggestKey(req.SessionID, question, k)

	var cached domain.Proposal
	if e.cacheGet(ctx, key, &cached) {
		tr.cacheHit = true
		tr.outcome = "cache_hit"
		return cached, nil
	}

	chunks, _, err := e.retriever.RetrieveAndRerank(ctx, req.SessionID, question, k, domain.Filters{})
	if err != nil {
		if errors.Is(err, domain.ErrNotIngested) {
			tr.outcome = "not_ingested"
			return domain.Proposal{}, err
		}
		e.log.Error("retrieval failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return fail(ErrorAnswer, err), nil
	}

	related := noRelatedCode
	if len(chunks) > 0 {
		related = formatChunks(chunks)
	}
	system, user, err := e.prompts.Render("suggest", map[string]string{
		"Question": question,
		"Chunks":   related,
	})
	if err != nil {
		return fail(ErrorAnswer, err), nil
	}

	out, err := model.GenerateWithSystem(ctx, system, user)
	if err != nil {
		e.log.Error("model call failed", zap.String("model", model.ModelName()), zap.Error(err))
		return fail(ErrorAnswer, err), nil
	}

	summary, body := splitSummary(out)
	p := domain.Proposal{
		Status:   domain.ProposalProposed,
		Summary:  summary,
		Proposal: body,
		Sources:  SourcesOf(chunks),
		Warning:  SuggestWarning,
	}
	e.cacheSet(ctx, key, p)

	tr.modelUsed = string(domain.TierFast)
	tr.outcome = "proposed"
	return p, nil
}

// splitSummary takes the summary from a leading "SUMMARY:" line, or the
// first non-empty line otherwise. The body is the output without a
// SUMMARY line.
func splitSummary(out string) (summary, body string) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(trimmed, "SUMMARY:"); ok {
			return strings.TrimSpace(rest), strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
		return trimmed, strings.TrimSpace(out)
	}
	return "", ""
}

// GenerateDocs writes documentation of req.DocType for req.Audience.
func (e *Engine) GenerateDocs(ctx context.Context, req domain.DocsRequest) (domain.DocsResult, error) {
	start := time.Now()

	if err := domain.ValidateSessionID(req.SessionID); err != nil {
		return domain.DocsResult{}, err
	}
	if !req.DocType.Valid() {
		return domain.DocsResult{}, domain.InvalidRequest("unknown doc_type %q", req.DocType)
	}
	if req.Audience == "" {
		req.Audience = domain.AudienceEngineer
	}
	if !req.Audience.Valid() {
		return domain.DocsResult{}, domain.InvalidRequest("unknown audience %q", req.Audience)
	}
	k := req.K
	if k <= 0 {
		k = e.cfg.Retrieve.DocsTopK
	}
	businessContext := strings.TrimSpace(req.BusinessContext)

	tr := e.newTrace("generate_docs", req.SessionID, string(req.DocType))
	defer e.record(tr, start)

	result := domain.DocsResult{DocType: req.DocType, Audience: req.Audience, Sources: []string{}, Warning: DocsWarning}

	model, tier, ok := e.docsModel()
	if !ok {
		tr.outcome = "missing_credentials"
		result.Content = MissingCredentialsAnswer
		return result, nil
	}

	key := cache.DocsKey(req.SessionID, req.DocType, req.Audience, businessContext)
	var cached domain.DocsResult
	if e.cacheGet(ctx, key, &cached) {
		tr.cacheHit = true
		tr.outcome = "cache_hit"
		return cached, nil
	}

	query := docQueryHints[req.DocType]
	if businessContext != "" {
		query += " " + businessContext
	}
	chunks, err := e.retriever.Retrieve(ctx, req.SessionID, query, k, domain.Filters{})
	if err != nil {
		if errors.Is(err, domain.ErrNotIngested) {
			tr.outcome = "not_ingested"
			return domain.DocsResult{}, err
		}
		e.log.Error("retrieval failed", zap.String("session_id", req.SessionID), zap.Error(err))
		tr.outcome = "error"
		tr.err = err
		result.Content = ErrorAnswer
		return result, nil
	}

	if len(chunks) == 0 {
		result.Content = DocsNoContext
		e.cacheSet(ctx, key, result)
		tr.outcome = "no_context"
		return result, nil
	}

	bc := businessContext
	if bc == "" {
		bc = noContext
	}
	system, user, err := e.prompts.Render("docs", map[string]string{
		"DocType":          string(req.DocType),
		"Audience":         string(req.Audience),
		"AudienceGuidance": audienceGuidance[req.Audience],
		"BusinessContext":  bc,
		"Chunks":           formatChunks(chunks),
	})
	if err != nil {
		tr.outcome = "error"
		tr.err = err
		result.Content = ErrorAnswer
		return result, nil
	}

	out, err := model.GenerateWithSystem(ctx, system, user)
	if err != nil {
		e.log.Error("model call failed", zap.String("model", model.ModelName()), zap.Error(err))
		tr.outcome = "error"
		tr.err = err
		result.Content = ErrorAnswer
		return result, nil
	}

	result.Content = strings.TrimSpace(out)
	result.Sources = SourcesOf(chunks)
	e.cacheSet(ctx, key, result)

	tr.modelUsed = string(tier)
	tr.outcome = "generated"
	return result, nil
}

// Metrics returns a snapshot of the query counters.
func (e *Engine) Metrics() domain.MetricsSnapshot {
	return e.metrics.Snapshot()
}

// modelTag distinguishes cache entries produced under different routing.
func (e *Engine) modelTag(fast port.LLM) string {
	if e.cfg.Models.Tiering {
		return "tiered"
	}
	return fast.ModelName()
}

// pickModel falls back to the fast tier when the high tier is absent.
func (e *Engine) pickModel(tier domain.Tier, fast port.LLM) (port.LLM, domain.Tier) {
	if tier == domain.TierHigh {
		if high, ok := e.caps.High.Get(); ok {
			return high, domain.TierHigh
		}
	}
	return fast, domain.TierFast
}

func (e *Engine) docsModel() (port.LLM, domain.Tier, bool) {
	if high, ok := e.caps.High.Get(); ok {
		return high, domain.TierHigh, true
	}
	if fast, ok := e.caps.Fast.Get(); ok {
		return fast, domain.TierFast, true
	}
	return nil, "", false
}

func (e *Engine) cacheGet(ctx context.Context, key string, v any) bool {
	data, ok := e.caps.Cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		e.log.Debug("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) cacheSet(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		e.log.Debug("failed to encode cache entry", zap.Error(err))
		return
	}
	e.caps.Cache.Set(ctx, key, data)
}

type trace struct {
	queryID       string
	operation     string
	sessionID     string
	question      string
	modelUsed     string
	retrievalConf float64
	rerankConf    float64
	cacheHit      bool
	outcome       string
	err           error
}

func (e *Engine) newTrace(op, sessionID, question string) *trace {
	return &trace{queryID: uuid.NewString(), operation: op, sessionID: sessionID, question: question, modelUsed: "N/A"}
}

func (e *Engine) record(tr *trace, start time.Time) {
	rec := map[string]any{
		"query_id":       tr.queryID,
		"operation":      tr.operation,
		"session_id":     tr.sessionID,
		"question":       tr.question,
		"model_used":     tr.modelUsed,
		"retrieval_conf": tr.retrievalConf,
		"rerank_conf":    tr.rerankConf,
		"latency_s":      math.Round(time.Since(start).Seconds()*1000) / 1000,
		"cache_hit":      tr.cacheHit,
		"outcome":        tr.outcome,
	}
	if tr.err != nil {
		rec["error"] = tr.err
	}
	e.caps.Recorder.Record(rec)
}

type nopRecorder struct{}

func (nopRecorder) Record(map[string]any) {}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
