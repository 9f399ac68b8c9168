package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
	DirectionUnknown  = "unknown"
)

const (
	outgoingMatchThreshold = 0.5
	incomingMatchThreshold = 0.7
	defaultUnitOfMeasure   = "BUC"
	defaultArticleType     = "Marfuri"
)

var articleSynonyms = map[string][]string{
	"transport": {"shipping", "shipment", "delivery", "freight", "livrare", "expediere"},
	"shipping":  {"transport", "shipment", "delivery", "freight", "livrare"},
	"shipment":  {"transport", "shipping", "delivery", "freight", "livrare"},
	"delivery":  {"transport", "shipping", "shipment", "freight", "livrare"},
	"livrare":   {"transport", "shipping", "shipment", "delivery", "freight"},
	"expediere": {"transport", "shipping", "shipment", "delivery"},
	"service":   {"servicii", "services", "prestari"},
	"servicii":  {"service", "services", "prestari"},
	"services":  {"service", "servicii", "prestari"},
	"prestari":  {"service", "servicii", "services"},
	"product":   {"produs", "produse", "marfa", "marfuri"},
	"produs":    {"product", "produse", "marfa", "marfuri"},
	"produse":   {"product", "produs", "marfa", "marfuri"},
	"marfa":     {"product", "produs", "marfuri", "goods"},
	"marfuri":   {"product", "produs", "marfa", "goods"},
	"goods":     {"marfa", "marfuri", "product", "produs"},
}

// InvoiceDirection tells whether the client bought (incoming) or sold (outgoing) on this
// invoice. A leading RO prefix is ignored on every identifier.
func InvoiceDirection(rec domain.Record, clientID string) string {
	client := stripRO(clientID)
	if client == "" {
		return DirectionUnknown
	}
	if stripRO(rec.String(domain.FieldBuyerEIN)) == client {
		return DirectionIncoming
	}
	if stripRO(rec.String(domain.FieldVendorEIN)) == client {
		return DirectionOutgoing
	}
	return DirectionUnknown
}

func stripRO(ein string) string {
	code := strings.ToUpper(strings.Join(strings.Fields(ein), ""))
	return strings.TrimPrefix(code, "RO")
}

// ArticleMatcher assigns catalog article codes to invoice line items.
type ArticleMatcher struct {
	logger *slog.Logger
}

func NewArticleMatcher(logger *slog.Logger) *ArticleMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleMatcher{logger: logger}
}

// Apply rewrites line items in place. Matched items take the catalog code and fill missing
// attributes from it; unmatched items get the next free ARTnnn code and are marked new.
// Items sharing a name within one invoice share a code.
func (m *ArticleMatcher) Apply(items []map[string]any, catalog domain.ArticleCatalog, direction string) {
	threshold := incomingMatchThreshold
	if direction == DirectionOutgoing {
		threshold = outgoingMatchThreshold
	}

	known := sortedArticles(catalog)
	next := nextArticleNumber(catalog)
	created := map[string]string{}

	for _, item := range items {
		name := domain.Stringify(item["name"])
		if name == "" {
			continue
		}

		if article, score, ok := bestArticle(name, known, threshold); ok {
			item["article_code"] = article.Code
			item["is_new"] = false
			if article.Name != "" && !strings.EqualFold(article.Name, name) {
				item["original_name"] = name
				item["name"] = article.Name
			}
			fillMissing(item, "vat_rate", article.VAT)
			fillMissing(item, "unit_of_measure", article.UnitOfMeasure)
			fillMissing(item, "type", article.Type)
			m.logger.Debug("article_matched", "name", name, "article_code", article.Code, "similarity", score)
			continue
		}

		key := strings.ToLower(name)
		code, seen := created[key]
		if !seen {
			code = fmt.Sprintf("ART%03d", next)
			next++
			created[key] = code
		}
		item["article_code"] = code
		item["is_new"] = true
		if _, ok := item["unit_of_measure"]; !ok {
			if um := domain.Stringify(item["um"]); um != "" {
				item["unit_of_measure"] = um
			}
		}
		fillMissing(item, "unit_of_measure", defaultUnitOfMeasure)
		fillMissing(item, "type", defaultArticleType)
		if direction == DirectionOutgoing {
			m.logger.Warn("article_unknown_on_outgoing_invoice", "name", name, "article_code", code)
		}
	}
}

func fillMissing(item map[string]any, key, value string) {
	if value == "" {
		return
	}
	if domain.IsEmptyValue(item[key]) {
		item[key] = value
	}
}

func sortedArticles(catalog domain.ArticleCatalog) []domain.Article {
	out := make([]domain.Article, 0, len(catalog))
	for code, article := range catalog {
		if article.Code == "" {
			article.Code = code
		}
		out = append(out, article)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func nextArticleNumber(catalog domain.ArticleCatalog) int {
	highest := 0
	for code := range catalog {
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(code), "ART"))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

func bestArticle(name string, articles []domain.Article, threshold float64) (domain.Article, float64, bool) {
	var best domain.Article
	bestScore := 0.0
	found := false
	for _, article := range articles {
		score := articleSimilarity(name, article.Name)
		if score > bestScore && score >= threshold {
			best, bestScore, found = article, score, true
		}
	}
	return best, bestScore, found
}

// articleSimilarity scores two article names in [0,1] from positional character matches,
// shared words, bilingual synonym groups and partial word overlap.
func articleSimilarity(a, b string) float64 {
	left := strings.ToLower(strings.TrimSpace(a))
	right := strings.ToLower(strings.TrimSpace(b))
	if left == right {
		return 1
	}

	score := positionalSimilarity(left, right)

	leftWords, rightWords := strings.Fields(left), strings.Fields(right)
	if common := countShared(leftWords, rightWords, func(x, y string) bool { return x == y }); common > 0 {
		score = max(score, float64(common)/float64(max(len(leftWords), len(rightWords)))*0.9)
	}

	for word, synonyms := range articleSynonyms {
		if !strings.Contains(left, word) {
			continue
		}
		for _, synonym := range synonyms {
			if strings.Contains(right, synonym) {
				score = max(score, 0.8)
				break
			}
		}
	}

	longLeft, longRight := longWords(leftWords), longWords(rightWords)
	if len(longLeft) > 0 && len(longRight) > 0 {
		partial := countShared(longLeft, longRight, func(x, y string) bool {
			return strings.Contains(x, y) || strings.Contains(y, x)
		})
		if partial > 0 {
			score = max(score, float64(partial)/float64(max(len(longLeft), len(longRight)))*0.85)
		}
	}
	return score
}

func positionalSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	matches := 0
	for i := 0; i < min(len(ra), len(rb)); i++ {
		if ra[i] == rb[i] {
			matches++
		}
	}
	return float64(matches) / float64(longest)
}

// countShared counts words of a that have a counterpart in b under eq.
func countShared(a, b []string, eq func(x, y string) bool) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if eq(x, y) {
				n++
				break
			}
		}
	}
	return n
}

func longWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) > 2 {
			out = append(out, w)
		}
	}
	return out
}
