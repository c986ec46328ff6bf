package negotiation

import (
	"fmt"
	"strings"

	"github.com/hunters-code/adol-agents/internal/catalog"
	"github.com/hunters-code/adol-agents/internal/language"
	"github.com/hunters-code/adol-agents/internal/pricing"
)

// Fixed bilingual replies. These serve two roles: terminal-for-turn answers
// the engine sends without involving the model (usage hint, product not
// found), and the fallback surface when generation is unavailable so a turn
// is never left unanswered.

// UsageHint tells a buyer how to address a product. Sent when the first token
// of a message is not a recognizable product id; no negotiation state exists
// or is created for it.
func UsageHint(lang language.Language) string {
	if lang == language.ID {
		return "Mohon awali pesan dengan ID produk, contoh: \"PROD123 masih ada? saya tawar 950 ribu\". Saya akan ambil detail produknya dan bantu negosiasinya."
	}
	return "Please start your message with a product ID, for example: \"PROD123 is this still available? I can offer $100\". I'll fetch the item details and handle the negotiation."
}

// ProductNotFound answers a turn whose product id has no catalog entry.
func ProductNotFound(lang language.Language, productID string) string {
	if lang == language.ID {
		return fmt.Sprintf("Maaf, produk dengan ID %s tidak ditemukan. Mohon periksa kembali ID produknya dan coba lagi.", productID)
	}
	return fmt.Sprintf("Sorry, product %s was not found. Please check the product ID and try again.", productID)
}

// ProductInactive answers a turn on a delisted or out-of-stock product.
func ProductInactive(lang language.Language, name string) string {
	if lang == language.ID {
		return fmt.Sprintf("Maaf, %s sudah tidak dijual lagi. Silakan hubungi penjual untuk informasi lebih lanjut.", name)
	}
	return fmt.Sprintf("Sorry, %s is no longer available for sale. Please contact the seller for more information.", name)
}

// CatalogUnavailable answers a turn when the catalog cannot be reached even
// after the client's retry. The thread stays as it was; the buyer can try
// again.
func CatalogUnavailable(lang language.Language) string {
	if lang == language.ID {
		return "Maaf, saya sedang kesulitan mengambil detail produk. Mohon coba lagi sebentar lagi ya."
	}
	return "Sorry, I'm having trouble fetching the product details right now. Please try again in a moment."
}

// ClosedThread answers any turn arriving after the negotiation reached a
// terminal status.
func ClosedThread(lang language.Language, status Status, finalPrice int64) string {
	if status == StatusAccepted && finalPrice > 0 {
		if lang == language.ID {
			return fmt.Sprintf("Negosiasi ini sudah selesai dengan harga %s. Terima kasih!", FormatPrice(finalPrice, lang))
		}
		return fmt.Sprintf("This negotiation already closed at %s. Thank you!", FormatPrice(finalPrice, lang))
	}
	if lang == language.ID {
		return "Negosiasi untuk barang ini sudah ditutup. Silakan mulai dengan produk lain."
	}
	return "This negotiation has been closed. Feel free to start one for another product."
}

// ProductGreeting is the reply to a bare product id with no message: a short
// listing overview inviting questions or an offer.
func ProductGreeting(lang language.Language, p *catalog.Product) string {
	desc := p.Description
	if len(desc) > 200 {
		desc = desc[:200] + "..."
	}
	if lang == language.ID {
		return fmt.Sprintf("%s tersedia dengan harga %s (stok %d). %s Silakan bertanya atau ajukan penawaran!",
			p.Name, FormatPrice(p.ListingPrice, lang), p.Stock, desc)
	}
	return fmt.Sprintf("%s is available for %s (%d in stock). %s Feel free to ask questions or make an offer!",
		p.Name, FormatPrice(p.ListingPrice, lang), p.Stock, desc)
}

// fallbackBuyerReply renders the templated buyer message for a turn when
// generation is unavailable. The wording states the decision plainly; prices
// come from the decision, never from free text.
func fallbackBuyerReply(in ComposeInput) string {
	lang := in.Lang
	name := in.Product.Name

	if in.FactAnswer != "" {
		if lang == language.ID {
			return fmt.Sprintf("Terkait pertanyaan Anda tentang %s: %s.", name, in.FactAnswer)
		}
		return fmt.Sprintf("About your question on the %s: %s.", name, in.FactAnswer)
	}
	if in.MissingFactKey != "" {
		if lang == language.ID {
			return fmt.Sprintf("Pertanyaan bagus! Saya perlu cek dulu dengan penjual soal %s. Saya kabari segera ya.", humanizeFactKey(in.MissingFactKey))
		}
		return fmt.Sprintf("Good question! Let me check with the seller about the %s and get back to you shortly.", humanizeFactKey(in.MissingFactKey))
	}

	if in.Decision == nil {
		if lang == language.ID {
			return fmt.Sprintf("%s masih tersedia dengan harga %s. Ada yang ingin ditanyakan, atau mau langsung menawar?",
				name, FormatPrice(in.Product.ListingPrice, lang))
		}
		return fmt.Sprintf("The %s is still available at %s. Anything you'd like to know, or would you like to make an offer?",
			name, FormatPrice(in.Product.ListingPrice, lang))
	}

	switch in.Decision.Kind {
	case pricing.Accept:
		price := FormatPrice(in.Decision.Price, lang)
		if lang == language.ID {
			return fmt.Sprintf("Deal! %s untuk %s. Kapan mau diambil atau dikirim?", price, name)
		}
		return fmt.Sprintf("Deal! %s for the %s. When would you like to pick it up or have it shipped?", price, name)
	case pricing.Counter:
		price := FormatPrice(in.Decision.Price, lang)
		if lang == language.ID {
			return fmt.Sprintf("Terima kasih tawarannya! Bagaimana kalau %s? Kondisi barangnya sepadan kok.", price)
		}
		return fmt.Sprintf("Thanks for the offer! How about %s? It's well worth it for the condition.", price)
	case pricing.Reject:
		floor := FormatPrice(in.Thresholds.Minimum, lang)
		if lang == language.ID {
			return fmt.Sprintf("Maaf, tawaran itu terlalu rendah. Paling rendah saya bisa %s.", floor)
		}
		return fmt.Sprintf("I'm sorry, that offer is too low. The lowest I can go is %s.", floor)
	case pricing.Escalate:
		if lang == language.ID {
			return "Saya perlu konfirmasi dulu dengan penjual. Mohon tunggu sebentar ya."
		}
		return "Let me check with the seller on this one. I'll get back to you shortly."
	}

	// Unreachable with a well-formed decision; answer something anyway.
	if lang == language.ID {
		return "Maaf, saya sedang mengalami gangguan teknis. Mohon tunggu sebentar."
	}
	return "I'm having technical difficulties. Please give me a moment."
}

// humanizeFactKey turns "charging_port_condition" into "charging port condition".
func humanizeFactKey(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
