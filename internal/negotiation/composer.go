package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/hunters-code/adol-agents/internal/catalog"
	"github.com/hunters-code/adol-agents/internal/events"
	"github.com/hunters-code/adol-agents/internal/language"
	"github.com/hunters-code/adol-agents/internal/pricing"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// ComposeInput carries everything the composer needs for one turn. Decision
// is nil for turns without a numeric offer; FactAnswer and MissingFactKey are
// set for question turns resolved by the engine before composition.
type ComposeInput struct {
	Product    *catalog.Product
	Thresholds pricing.Thresholds
	Lang       language.Language

	BuyerMessage string
	Offer        int64
	Decision     *pricing.Decision

	// History is the recent conversation window, oldest first.
	History []Turn
	Facts   map[string]string

	FactAnswer     string
	MissingFactKey string
}

// SellerNote is the structured seller-facing side of a turn. It is built
// deterministically from the decision; model output never reaches it.
type SellerNote struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	MissingFactKey string `json:"missing_fact_key,omitempty"`
	FinalPrice     int64  `json:"final_price,omitempty"`
}

// DualMessage is the composer's output: a buyer-facing reply and an optional
// seller note.
type DualMessage struct {
	ToBuyer  string
	ToSeller *SellerNote
}

const (
	defaultComposeTimeout = 15 * time.Second
	defaultMaxTokens      = 500
	defaultTemperature    = 0.7
	historyWindow         = 6
)

// Composer turns a decided negotiation outcome into conversational text. The
// model provides wording only; on any generation failure the fixed templates
// answer instead, so a turn always yields a buyer reply.
type Composer struct {
	llm         LLMClient
	model       string
	timeout     time.Duration
	maxTokens   int32
	temperature float32
	logger      *logging.Logger
}

// ComposerOption customizes a Composer.
type ComposerOption func(*Composer)

// WithModel sets the model id passed to the LLM client.
func WithModel(model string) ComposerOption {
	return func(c *Composer) { c.model = model }
}

// WithComposeTimeout bounds each generation call.
func WithComposeTimeout(d time.Duration) ComposerOption {
	return func(c *Composer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxTokens caps the generated reply length.
func WithMaxTokens(n int32) ComposerOption {
	return func(c *Composer) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) ComposerOption {
	return func(c *Composer) { c.temperature = t }
}

// WithComposerLogger sets the logger.
func WithComposerLogger(logger *logging.Logger) ComposerOption {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewComposer builds a composer. A nil llm is allowed and means template-only
// operation.
func NewComposer(llm LLMClient, opts ...ComposerOption) *Composer {
	c := &Composer{
		llm:         llm,
		timeout:     defaultComposeTimeout,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose produces the dual message for a turn. The buyer text comes from the
// model when generation succeeds and from templates otherwise; the seller
// note is always deterministic.
func (c *Composer) Compose(ctx context.Context, in ComposeInput) (DualMessage, error) {
	if in.Product == nil {
		return DualMessage{}, fmt.Errorf("negotiation: compose requires a product")
	}

	out := DualMessage{ToSeller: c.buildSellerNote(in)}

	toBuyer, err := c.generate(ctx, in)
	if err != nil {
		c.logger.Warn("text generation unavailable, using templated reply",
			"product_id", in.Product.ID,
			"error", err.Error(),
		)
		toBuyer = fallbackBuyerReply(in)
	}
	out.ToBuyer = toBuyer
	return out, nil
}

func (c *Composer) generate(ctx context.Context, in ComposeInput) (string, error) {
	if c.llm == nil {
		return "", ErrGenerationUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := historyMessages(in.History)
	messages = append(messages, ChatMessage{
		Role:    ChatRoleUser,
		Content: fmt.Sprintf("Buyer says: %s", in.BuyerMessage),
	})

	resp, err := c.llm.Complete(callCtx, LLMRequest{
		Model:       c.model,
		System:      buildSystemPrompt(in),
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	toBuyer, _ := parseSections(resp.Text)
	if toBuyer == "" {
		return "", fmt.Errorf("%w: model returned no buyer message", ErrGenerationUnavailable)
	}
	return toBuyer, nil
}

// historyMessages maps the last few turns into chat messages, oldest first.
func historyMessages(history []Turn) []ChatMessage {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var msgs []ChatMessage
	for _, turn := range history {
		if turn.BuyerMessage != "" {
			msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: turn.BuyerMessage})
		}
	}
	return msgs
}

// buildSellerNote derives the seller-facing payload from the decision alone.
// Turns answered from known facts carry no note.
func (c *Composer) buildSellerNote(in ComposeInput) *SellerNote {
	if in.FactAnswer != "" {
		return nil
	}
	if in.MissingFactKey != "" {
		return &SellerNote{
			Kind:           events.KindActionRequired,
			Message:        fmt.Sprintf("Buyer asked about the %s and no recorded fact answers it. Please reply with the answer.", humanizeFactKey(in.MissingFactKey)),
			MissingFactKey: in.MissingFactKey,
		}
	}
	if in.Decision == nil {
		return nil
	}

	switch in.Decision.Kind {
	case pricing.Accept:
		return &SellerNote{
			Kind:       events.KindDealClosed,
			Message:    fmt.Sprintf("Deal made on %s at %s.", in.Product.Name, FormatPrice(in.Decision.Price, language.EN)),
			FinalPrice: in.Decision.Price,
		}
	case pricing.Counter:
		return &SellerNote{
			Kind: events.KindUpdate,
			Message: fmt.Sprintf("Buyer offered %s on %s; countered at %s.",
				FormatPrice(in.Offer, language.EN), in.Product.Name, FormatPrice(in.Decision.Price, language.EN)),
		}
	case pricing.Reject:
		return &SellerNote{
			Kind: events.KindUpdate,
			Message: fmt.Sprintf("Buyer offered %s on %s, below the floor of %s; declined.",
				FormatPrice(in.Offer, language.EN), in.Product.Name, FormatPrice(in.Thresholds.Minimum, language.EN)),
		}
	case pricing.Escalate:
		return &SellerNote{
			Kind: events.KindActionRequired,
			Message: fmt.Sprintf("Negotiation on %s paused after repeated low offers (best %s). Decide whether to continue.",
				in.Product.Name, FormatPrice(in.Offer, language.EN)),
		}
	}
	return nil
}
