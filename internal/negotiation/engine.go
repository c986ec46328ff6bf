package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hunters-code/adol-agents/internal/catalog"
	"github.com/hunters-code/adol-agents/internal/events"
	"github.com/hunters-code/adol-agents/internal/language"
	"github.com/hunters-code/adol-agents/internal/notify"
	"github.com/hunters-code/adol-agents/internal/pricing"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// MetricsRecorder receives per-turn observations. The prometheus
// implementation lives in internal/observability/metrics; a nil recorder
// disables instrumentation.
type MetricsRecorder interface {
	ObserveTurn(decision string, duration time.Duration)
	IncEscalation(reason string)
	ObserveDeal(finalPrice int64)
}

// DealArchiver persists closed deals for reporting. Archival is best effort
// and never blocks a turn.
type DealArchiver interface {
	ArchiveDeal(ctx context.Context, deal Deal) error
}

// Deal is a closed negotiation, as archived.
type Deal struct {
	ProductID    string
	ThreadID     string
	SellerID     string
	ListingPrice int64
	FinalPrice   int64
	Turns        int
	Language     language.Language
	ClosedAt     time.Time
}

// Engine implements Service: the per-turn negotiation state machine. Turns
// for one key run under a per-key mutex; different keys proceed in parallel.
type Engine struct {
	catalog  catalog.Client
	store    Store
	composer *Composer
	pricing  pricing.Config
	notifier *notify.Service
	archiver DealArchiver
	stats    *Stats
	metrics  MetricsRecorder
	logger   *logging.Logger
	clock    func() time.Time

	locks sync.Map // Key -> *sync.Mutex
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithPricingConfig overrides the default pricing policy configuration.
func WithPricingConfig(cfg pricing.Config) EngineOption {
	return func(e *Engine) { e.pricing = cfg }
}

// WithNotifier attaches the seller notification fan-out.
func WithNotifier(n *notify.Service) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithDealArchiver attaches the closed-deal archive.
func WithDealArchiver(a DealArchiver) EngineOption {
	return func(e *Engine) { e.archiver = a }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds the negotiation engine.
func NewEngine(catalogClient catalog.Client, store Store, composer *Composer, opts ...EngineOption) *Engine {
	if catalogClient == nil {
		panic("negotiation: catalog client cannot be nil")
	}
	if store == nil {
		panic("negotiation: store cannot be nil")
	}
	if composer == nil {
		composer = NewComposer(nil)
	}
	e := &Engine{
		catalog:  catalogClient,
		store:    store,
		composer: composer,
		pricing:  pricing.DefaultConfig(),
		stats:    NewStats(),
		logger:   logging.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Service = (*Engine)(nil)

// ProcessTurn runs one buyer message through the turn state machine.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := e.clock()

	productID, rest, err := SplitProductID(req.Message)
	if err != nil {
		// Malformed input: usage hint, no state touched.
		lang := fallbackLanguage(language.Detect(req.Message), language.Unknown)
		e.logger.Info("turn rejected as malformed", "thread_id", req.ThreadID, "error", err.Error())
		return &TurnResult{
			ThreadID: req.ThreadID,
			ToBuyer:  UsageHint(lang),
			Decision: decisionUsageHint,
		}, nil
	}

	key := Key{ProductID: productID, ThreadID: req.ThreadID}
	unlock := e.lockKey(key)
	defer unlock()

	result, err := e.processLocked(ctx, key, rest)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.ObserveTurn(result.Decision, e.clock().Sub(start))
	}
	return result, nil
}

func (e *Engine) processLocked(ctx context.Context, key Key, message string) (*TurnResult, error) {
	msgLang := language.Detect(message)

	product, err := e.catalog.FetchProduct(ctx, key.ProductID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return &TurnResult{
			ProductID: key.ProductID,
			ThreadID:  key.ThreadID,
			ToBuyer:   ProductNotFound(fallbackLanguage(msgLang, language.Unknown), key.ProductID),
			Decision:  decisionInquiry,
		}, nil
	case errors.Is(err, catalog.ErrUnavailable):
		e.logger.Warn("catalog unavailable for turn", "product_id", key.ProductID, "error", err.Error())
		return &TurnResult{
			ProductID: key.ProductID,
			ThreadID:  key.ThreadID,
			ToBuyer:   CatalogUnavailable(fallbackLanguage(msgLang, language.Unknown)),
			Decision:  decisionInquiry,
		}, nil
	case err != nil:
		return nil, fmt.Errorf("negotiation: fetch product %s: %w", key.ProductID, err)
	}

	if !product.IsActive || product.Stock <= 0 {
		return &TurnResult{
			ProductID: key.ProductID,
			ThreadID:  key.ThreadID,
			ToBuyer:   ProductInactive(fallbackLanguage(msgLang, language.Unknown), product.Name),
			Decision:  decisionInquiry,
		}, nil
	}

	st, err := e.store.GetOrCreate(ctx, key, product.ListingPrice)
	if err != nil {
		return nil, err
	}
	if len(st.Turns) == 0 {
		e.stats.RecordThreadOpened()
	}

	lang := fallbackLanguage(msgLang, st.Language)
	if msgLang != language.Unknown {
		st.Language = msgLang
	}

	if st.Status.Terminal() {
		return &TurnResult{
			ProductID: key.ProductID,
			ThreadID:  key.ThreadID,
			ToBuyer:   ClosedThread(lang, st.Status, st.FinalPrice),
			Decision:  decisionInquiry,
			Status:    st.Status,
		}, nil
	}

	if message == "" {
		// Bare product id: greet with the listing overview.
		turn := Turn{
			Decision:  decisionGreeting,
			Timestamp: e.clock().UTC(),
		}
		return e.finishTurn(ctx, product, st, turn, nil, ProductGreeting(lang, product), StatusOpen, lang)
	}

	thresholds, err := pricing.ComputeThresholds(product.ListingPrice, product.CategoryID, e.pricing)
	if err != nil {
		return nil, fmt.Errorf("negotiation: thresholds for %s: %w", key.ProductID, err)
	}

	offer, hasOffer := ExtractOffer(message)
	in := ComposeInput{
		Product:      product,
		Thresholds:   thresholds,
		Lang:         lang,
		BuyerMessage: message,
		History:      st.Turns,
		Facts:        st.Facts,
	}
	turn := Turn{
		BuyerMessage: message,
		Timestamp:    e.clock().UTC(),
	}

	nextStatus := st.Status
	switch {
	case hasOffer:
		decision := pricing.EvaluateOffer(offer, thresholds, pricing.OfferContext{
			CurrentCounter: st.CurrentCounter,
			PriceTurns:     st.PriceTurns,
		}, e.pricing)

		in.Offer = offer
		in.Decision = &decision
		turn.Offer = offer
		turn.Decision = string(decision.Kind)

		switch decision.Kind {
		case pricing.Accept:
			nextStatus = StatusAccepted
			st.FinalPrice = decision.Price
		case pricing.Counter:
			turn.CounterPrice = decision.Price
		case pricing.Reject:
			nextStatus = StatusRejected
		case pricing.Escalate:
			nextStatus = StatusEscalated
		}

	case IsQuestion(message):
		answer, factKey, answered := AnswerFromFacts(message, st.Facts)
		switch {
		case answered:
			in.FactAnswer = answer
			turn.Decision = decisionFactAnswer
		case factKey != "":
			// Aspect question with no recorded answer: hold the
			// thread and ask the seller.
			in.MissingFactKey = factKey
			turn.Decision = string(pricing.Escalate)
			nextStatus = StatusEscalated
			st.PendingFactKey = factKey
		default:
			turn.Decision = decisionInquiry
		}

	default:
		turn.Decision = decisionInquiry
	}

	return e.finishTurn(ctx, product, st, turn, &in, "", nextStatus, lang)
}

// finishTurn composes the reply when needed, applies the turn, persists and
// notifies. A non-empty preComposed reply skips generation (template-only
// turns).
func (e *Engine) finishTurn(ctx context.Context, product *catalog.Product, st *State, turn Turn, in *ComposeInput, preComposed string, nextStatus Status, lang language.Language) (*TurnResult, error) {
	out := DualMessage{ToBuyer: preComposed}
	if preComposed == "" {
		var err error
		out, err = e.composer.Compose(ctx, *in)
		if err != nil {
			return nil, err
		}
	}

	if err := st.ApplyTurn(turn); err != nil {
		return nil, err
	}
	if err := st.SetStatus(nextStatus); err != nil {
		return nil, err
	}

	if err := e.store.Save(ctx, st); err != nil {
		return nil, err
	}

	e.stats.RecordTurn(turn.Offer > 0)
	if st.Status.Terminal() {
		e.stats.RecordThreadClosed()
	}
	if st.Status == StatusAccepted {
		e.stats.RecordDeal(st.FinalPrice)
		if e.metrics != nil {
			e.metrics.ObserveDeal(st.FinalPrice)
		}
		e.archiveDeal(ctx, product, st)
	}
	if st.Status == StatusEscalated && e.metrics != nil {
		e.metrics.IncEscalation(escalationReason(turn, st))
	}

	e.publishSellerEvent(ctx, product, st, turn, out.ToSeller)

	return &TurnResult{
		ProductID:    st.Key.ProductID,
		ThreadID:     st.Key.ThreadID,
		ToBuyer:      out.ToBuyer,
		ToSeller:     out.ToSeller,
		Offer:        turn.Offer,
		Decision:     turn.Decision,
		CounterPrice: turn.CounterPrice,
		Status:       st.Status,
		Language:     lang,
	}, nil
}

func escalationReason(turn Turn, st *State) string {
	if st.PendingFactKey != "" {
		return "missing_fact"
	}
	return "turn_limit"
}

func (e *Engine) archiveDeal(ctx context.Context, product *catalog.Product, st *State) {
	if e.archiver == nil {
		return
	}
	deal := Deal{
		ProductID:    st.Key.ProductID,
		ThreadID:     st.Key.ThreadID,
		SellerID:     product.CreatedBy,
		ListingPrice: product.ListingPrice,
		FinalPrice:   st.FinalPrice,
		Turns:        st.TurnCount(),
		Language:     st.Language,
		ClosedAt:     e.clock().UTC(),
	}
	if err := e.archiver.ArchiveDeal(ctx, deal); err != nil {
		e.logger.Error("failed to archive deal", "product_id", deal.ProductID, "thread_id", deal.ThreadID, "error", err.Error())
	}
}

// publishSellerEvent fans the structured seller note out through the
// notification service. Delivery failures are logged and never fail a turn.
func (e *Engine) publishSellerEvent(ctx context.Context, product *catalog.Product, st *State, turn Turn, note *SellerNote) {
	if e.notifier == nil || note == nil {
		return
	}

	now := e.clock().UTC()
	var evt events.CanonicalEvent
	switch note.Kind {
	case events.KindDealClosed:
		evt = events.DealClosedV1{
			SellerID:   product.CreatedBy,
			ProductID:  st.Key.ProductID,
			ThreadID:   st.Key.ThreadID,
			FinalPrice: note.FinalPrice,
			Turns:      st.TurnCount(),
			OccurredAt: now,
		}
	case events.KindActionRequired:
		reason := "turn limit reached"
		if note.MissingFactKey != "" {
			reason = "missing fact"
		}
		evt = events.SellerActionRequiredV1{
			SellerID:       product.CreatedBy,
			ProductID:      st.Key.ProductID,
			ThreadID:       st.Key.ThreadID,
			Reason:         reason,
			MissingFactKey: note.MissingFactKey,
			BuyerMessage:   turn.BuyerMessage,
			Message:        note.Message,
			OccurredAt:     now,
		}
	default:
		evt = events.NegotiationUpdateV1{
			SellerID:     product.CreatedBy,
			ProductID:    st.Key.ProductID,
			ThreadID:     st.Key.ThreadID,
			Decision:     turn.Decision,
			BuyerOffer:   turn.Offer,
			CounterPrice: turn.CounterPrice,
			Message:      note.Message,
			OccurredAt:   now,
		}
	}

	if err := e.notifier.Publish(ctx, st.Key.String(), st.Key.ThreadID, evt); err != nil {
		e.logger.Error("seller notification delivery failed",
			"product_id", st.Key.ProductID,
			"thread_id", st.Key.ThreadID,
			"kind", note.Kind,
			"error", err.Error(),
		)
	}
}

// GetState returns the current thread state.
func (e *Engine) GetState(ctx context.Context, key Key) (*State, error) {
	return e.store.Get(ctx, key)
}

// RecordSellerFact stores a seller answer on every thread of the product,
// pushes it to the catalog, and reports how many escalated threads reopened.
func (e *Engine) RecordSellerFact(ctx context.Context, productID, factKey, value string) (int, error) {
	normalized := NormalizeFactKey(factKey)
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty fact key", ErrMalformedInput)
	}

	threads, err := e.store.ListByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}

	reopened := 0
	for _, st := range threads {
		wasWaiting := st.Status == StatusEscalated && st.PendingFactKey == normalized

		unlock := e.lockKey(st.Key)
		err := e.store.RecordFact(ctx, st.Key, normalized, value)
		unlock()
		if err != nil {
			return reopened, err
		}
		if wasWaiting {
			reopened++
		}
	}

	if err := e.catalog.UpdateProductFact(ctx, productID, normalized, value); err != nil {
		// The fact is already recorded locally; catalog sync is best effort.
		e.logger.Warn("failed to push fact to catalog", "product_id", productID, "fact_key", normalized, "error", err.Error())
	}

	e.logger.Info("seller fact recorded", "product_id", productID, "fact_key", normalized, "threads", len(threads), "reopened", reopened)
	return reopened, nil
}

// Stats reports aggregate activity counters.
func (e *Engine) Stats(_ context.Context) (StatsSnapshot, error) {
	return e.stats.Snapshot(), nil
}

// EvictIdle removes threads idle since before olderThan.
func (e *Engine) EvictIdle(ctx context.Context, olderThan time.Time) ([]Key, error) {
	evicted, err := e.store.EvictIdle(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	if len(evicted) > 0 {
		e.logger.Info("evicted idle negotiations", "count", len(evicted), "cutoff", olderThan)
	}
	return evicted, nil
}

func (e *Engine) lockKey(key Key) func() {
	muAny, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// fallbackLanguage resolves the effective language for a turn: the detected
// language, else the thread's previous language, else English.
func fallbackLanguage(detected, previous language.Language) language.Language {
	if detected != language.Unknown {
		return detected
	}
	if previous != language.Unknown {
		return previous
	}
	return language.EN
}
