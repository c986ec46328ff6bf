package negotiation

import (
	"fmt"
	"strings"

	"github.com/hunters-code/adol-agents/internal/language"
	"github.com/hunters-code/adol-agents/internal/pricing"
)

const (
	sectionToBuyer  = "[message_to_buyer]"
	sectionToSeller = "[message_to_seller]"
)

// buildSystemPrompt assembles the system instruction for one turn. The
// pricing decision is already made by the policy; the model's job is wording,
// not arithmetic, and the directive pins the exact price it may state.
func buildSystemPrompt(in ComposeInput) []string {
	lang := in.Lang
	langName := "English"
	langInstruction := "LANGUAGE: Respond to the buyer in English. Use USD format for prices. Use friendly and professional language."
	if lang == language.ID {
		langName = "Indonesian"
		langInstruction = "BAHASA: Respons ke pembeli dalam Bahasa Indonesia. Gunakan format Rupiah untuk harga. Gunakan bahasa ramah dan profesional."
	}

	var b strings.Builder
	b.WriteString("You are Adol, an expert AI sales assistant negotiating on behalf of a marketplace seller. You are friendly, professional, and an expert negotiator.\n\n")
	fmt.Fprintf(&b, "DETECTED BUYER LANGUAGE: %s\n%s\n\n", langName, langInstruction)

	fmt.Fprintf(&b, "ITEM DETAILS:\n- Product ID: %s\n- Item Name: %s\n- Description: %s\n- Listing Price: %s\n- Stock Available: %d\n",
		in.Product.ID,
		in.Product.Name,
		in.Product.Description,
		FormatPrice(in.Product.ListingPrice, lang),
		in.Product.Stock,
	)
	if in.Product.KnownFlaws != "" {
		fmt.Fprintf(&b, "- Known Flaws: %s\n", in.Product.KnownFlaws)
	}
	b.WriteString("\n")

	if len(in.Facts) > 0 {
		b.WriteString("KNOWN FACTS FROM THE SELLER:\n")
		for key, value := range in.Facts {
			fmt.Fprintf(&b, "- %s: %s\n", humanizeFactKey(key), value)
		}
		b.WriteString("\n")
	}

	b.WriteString(decisionDirective(in))

	b.WriteString("\nRULES:\n")
	fmt.Fprintf(&b, "1. Respond to the buyer in %s only\n", langName)
	b.WriteString("2. Never reveal the target or minimum price to the buyer\n")
	b.WriteString("3. State only the exact price named in the DECISION, never invent a different one\n")
	b.WriteString("4. Be warm, concise and professional\n")

	b.WriteString("\nRESPONSE FORMAT:\n")
	b.WriteString(sectionToBuyer + "\n")
	fmt.Fprintf(&b, "Your response to the buyer in %s\n\n", langName)
	b.WriteString(sectionToSeller + "\n")
	b.WriteString("A one-line report to the seller in English\n")

	return []string{b.String()}
}

// decisionDirective pins the outcome the model must phrase.
func decisionDirective(in ComposeInput) string {
	lang := in.Lang

	if in.FactAnswer != "" {
		return fmt.Sprintf("DECISION (already made, phrase it, do not change it): Answer the buyer's question using this seller-provided fact: %q.\n", in.FactAnswer)
	}
	if in.MissingFactKey != "" {
		return fmt.Sprintf("DECISION (already made, phrase it, do not change it): You do not know the answer about the %s. Tell the buyer you will check with the seller and follow up shortly.\n", humanizeFactKey(in.MissingFactKey))
	}
	if in.Decision == nil {
		return "DECISION (already made, phrase it, do not change it): The buyer has not made an offer. Answer their message, confirm availability at the listing price, and invite an offer.\n"
	}

	offer := FormatPrice(in.Offer, lang)
	switch in.Decision.Kind {
	case pricing.Accept:
		return fmt.Sprintf("DECISION (already made, phrase it, do not change it): ACCEPT the buyer's offer at exactly %s. Confirm the deal enthusiastically and arrange handover.\n", FormatPrice(in.Decision.Price, lang))
	case pricing.Counter:
		return fmt.Sprintf("DECISION (already made, phrase it, do not change it): COUNTER the buyer's offer of %s at exactly %s. Highlight the item's value; do not accept the buyer's price.\n", offer, FormatPrice(in.Decision.Price, lang))
	case pricing.Reject:
		return fmt.Sprintf("DECISION (already made, phrase it, do not change it): DECLINE the buyer's offer of %s politely. The lowest acceptable price is %s; invite them to reconsider at that level.\n", offer, FormatPrice(in.Thresholds.Minimum, lang))
	case pricing.Escalate:
		return "DECISION (already made, phrase it, do not change it): Pause the haggling. Tell the buyer you need to confirm with the seller and will follow up shortly.\n"
	}
	return "DECISION (already made, phrase it, do not change it): Answer the buyer's message helpfully without naming any new price.\n"
}

// parseSections splits a model response into its buyer and seller sections,
// mirroring the prompt's RESPONSE FORMAT. Responses without section markers
// are treated as buyer-only text.
func parseSections(text string) (toBuyer, toSeller string) {
	var current *strings.Builder
	var buyer, seller strings.Builder

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == sectionToBuyer:
			current = &buyer
		case trimmed == sectionToSeller:
			current = &seller
		case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
			current = nil
		case trimmed != "" && current != nil:
			current.WriteString(trimmed)
			current.WriteString(" ")
		}
	}

	toBuyer = strings.TrimSpace(buyer.String())
	toSeller = strings.TrimSpace(seller.String())
	if toBuyer == "" && toSeller == "" {
		toBuyer = strings.TrimSpace(text)
	}
	return toBuyer, toSeller
}
