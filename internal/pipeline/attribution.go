package pipeline

import (
	"net/url"
	"strings"
	"unicode"

	"sellerdash/internal/domain"
)

type AttributionKind string

const (
	AttributedAd    AttributionKind = "ad"
	AttributedAdSet AttributionKind = "adset"
	Unattributed    AttributionKind = "unattributed"
)

// Attribution links an order to an ad entity, or to an inferred traffic source.
type Attribution struct {
	Kind     AttributionKind
	EntityID string
	ParentID string
	Source   string
}

// Short names would match almost any order text.
const minMatchLen = 3

// NormalizeToken lowercases and drops whitespace, underscores and any dash or minus sign.
func NormalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if separatorRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func separatorRune(r rune) bool {
	return r == '_' || r == '\u2212' || unicode.IsSpace(r) || unicode.Is(unicode.Pd, r)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// containsEntityName decides a fuzzy match: the order-side field must contain the
// entity-side name. Both arguments are already normalized.
func containsEntityName(field, name string) bool {
	if len(name) < minMatchLen {
		return false
	}
	return strings.Contains(field, name)
}

type indexedEntity struct {
	entity   domain.AdEntity
	name     string
	parent   string
	campaign string
}

// EntityIndex is a lookup structure over the fetched ad entities, built once per run.
type EntityIndex struct {
	level    domain.AdLevel
	byID     map[string]domain.AdEntity
	entities []indexedEntity
}

func NewEntityIndex(level domain.AdLevel, entities []domain.AdEntity) *EntityIndex {
	idx := &EntityIndex{
		level: level,
		byID:  make(map[string]domain.AdEntity, len(entities)),
	}
	for _, e := range entities {
		if _, dup := idx.byID[e.ID]; !dup {
			idx.byID[e.ID] = e
		}
		idx.entities = append(idx.entities, indexedEntity{
			entity:   e,
			name:     NormalizeToken(e.Name),
			parent:   NormalizeToken(e.ParentName),
			campaign: NormalizeToken(e.CampaignName),
		})
	}
	return idx
}

// Matcher attributes orders to ad entities.
type Matcher struct{}

// Match is a convenience for a single order; batch callers should reuse an index.
func (m Matcher) Match(o domain.Order, level domain.AdLevel, entities []domain.AdEntity) Attribution {
	return m.MatchIndexed(o, NewEntityIndex(level, entities))
}

// MatchIndexed attributes one order. A numeric utm_content is an entity id and only
// ever matches exactly. Otherwise names are matched fuzzily against the order's
// candidate fields: entity names first, then parent names, then campaign names, the
// first entity in fetch order winning within each pass.
func (m Matcher) MatchIndexed(o domain.Order, idx *EntityIndex) Attribution {
	token := ExtractAttributionToken(o)

	if isNumeric(token) {
		if e, ok := idx.byID[token]; ok {
			return idx.attribution(e)
		}
		return unattributed(o)
	}

	fields := candidateFields(o, token)
	if len(fields) == 0 {
		return unattributed(o)
	}

	passes := []func(indexedEntity) string{
		func(ie indexedEntity) string { return ie.name },
		func(ie indexedEntity) string { return ie.parent },
		func(ie indexedEntity) string { return ie.campaign },
	}
	for _, key := range passes {
		for _, ie := range idx.entities {
			name := key(ie)
			for _, f := range fields {
				if containsEntityName(f, name) {
					return idx.attribution(ie.entity)
				}
			}
		}
	}
	return unattributed(o)
}

func (idx *EntityIndex) attribution(e domain.AdEntity) Attribution {
	kind := AttributedAd
	if idx.level == domain.LevelAdSet || e.Level == domain.LevelAdSet {
		kind = AttributedAdSet
	}
	return Attribution{Kind: kind, EntityID: e.ID, ParentID: e.ParentID}
}

func unattributed(o domain.Order) Attribution {
	return Attribution{Kind: Unattributed, Source: InferSource(o)}
}

// ExtractAttributionToken reads utm_content from note attributes, then the landing site.
func ExtractAttributionToken(o domain.Order) string {
	return strings.TrimSpace(o.UTM("utm_content"))
}

// candidateFields are the normalized, non-empty order texts an entity name may appear in.
func candidateFields(o domain.Order, token string) []string {
	raw := []string{
		token,
		o.Tags,
		o.NoteValues(),
		o.UTM("utm_campaign"),
		o.UTM("utm_term"),
		o.SourceName,
		o.LandingPath(),
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if n := NormalizeToken(r); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// InferSource labels an unattributed order by where it came from.
func InferSource(o domain.Order) string {
	if s := o.UTM("utm_source"); s != "" {
		return s
	}
	ref := strings.ToLower(strings.TrimSpace(o.ReferringSite))
	if ref == "" {
		return "direct"
	}
	switch {
	case strings.Contains(ref, "facebook"):
		return "Facebook"
	case strings.Contains(ref, "google"):
		return "Google"
	case strings.Contains(ref, "instagram"):
		return "Instagram"
	case strings.Contains(ref, "bing"):
		return "Bing"
	case strings.Contains(ref, "twitter.com") || referrerHost(ref) == "t.co":
		return "Twitter/X"
	default:
		return "Other"
	}
}

func referrerHost(ref string) string {
	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
