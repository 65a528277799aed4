package pipeline

import (
	"testing"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func adEntities() []domain.AdEntity {
	return []domain.AdEntity{
		{Level: domain.LevelAd, ID: "111", Name: "Hero Video", ParentID: "11", ParentName: "Summer-Sale", CampaignName: "Q2 Prospecting", Spend: decimal.NewFromInt(600)},
		{Level: domain.LevelAd, ID: "112", Name: "Carousel", ParentID: "11", ParentName: "Summer-Sale", CampaignName: "Q2 Prospecting", Spend: decimal.NewFromInt(400)},
		{Level: domain.LevelAd, ID: "221", Name: "Diwali Static", ParentID: "22", ParentName: "Festive", CampaignName: "Retargeting", Spend: decimal.NewFromInt(300)},
	}
}

func withUTM(content string) domain.Order {
	return domain.Order{NoteAttributes: []domain.NoteAttribute{{Name: "utm_content", Value: content}}}
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "summersale", NormalizeToken("Summer-Sale"))
	assert.Equal(t, "summersale", NormalizeToken(" summer_sale "))
	assert.Equal(t, "herovideo", NormalizeToken("Hero\tVideo"))
	assert.Equal(t, "a|b", NormalizeToken("A | B"))

	for _, name := range []string{
		"Summer\u2013Sale", // en dash
		"Summer\u2014Sale", // em dash
		"Summer\u2212Sale", // minus sign
		"Summer\u00a0Sale", // no-break space
		"Summer\u3000Sale",
	} {
		assert.Equal(t, "summersale", NormalizeToken(name), "%q", name)
	}
}

func TestMatchUnicodeSeparatorsInAdSetName(t *testing.T) {
	for _, name := range []string{"Summer\u2013Sale", "Summer\u2014Sale", "Summer\u00a0Sale"} {
		ents := []domain.AdEntity{{Level: domain.LevelAdSet, ID: "11", Name: name, Spend: decimal.NewFromInt(100)}}
		got := Matcher{}.Match(withUTM("summer_sale"), domain.LevelAdSet, ents)
		assert.Equal(t, Attribution{Kind: AttributedAdSet, EntityID: "11"}, got, "%q", name)
	}
}

func TestContainsEntityName(t *testing.T) {
	assert.True(t, containsEntityName("summersale2024", "summersale"))
	assert.False(t, containsEntityName("summer", "summersale"))
	assert.False(t, containsEntityName("anything", ""))
	assert.False(t, containsEntityName("abc", "ab"))
}

func TestMatchNumericIDIsExact(t *testing.T) {
	m := Matcher{}

	got := m.Match(withUTM("112"), domain.LevelAd, adEntities())
	assert.Equal(t, Attribution{Kind: AttributedAd, EntityID: "112", ParentID: "11"}, got)

	// An unknown id never falls back to name matching, even when other fields would match.
	o := withUTM("123456")
	o.Tags = "summer-sale"
	got = m.Match(o, domain.LevelAd, adEntities())
	assert.Equal(t, Unattributed, got.Kind)
	assert.Equal(t, "direct", got.Source)
}

func TestMatchFuzzyUTMContent(t *testing.T) {
	got := Matcher{}.Match(withUTM("summer_sale"), domain.LevelAd, adEntities())
	assert.Equal(t, AttributedAd, got.Kind)
	assert.Equal(t, "111", got.EntityID)
	assert.Equal(t, "11", got.ParentID)
}

func TestMatchPrefersEntityNameOverParent(t *testing.T) {
	o := withUTM("summer_sale")
	o.NoteAttributes = append(o.NoteAttributes, domain.NoteAttribute{Name: "utm_term", Value: "carousel"})
	got := Matcher{}.Match(o, domain.LevelAd, adEntities())
	assert.Equal(t, "112", got.EntityID)
}

func TestMatchOtherFields(t *testing.T) {
	tests := []struct {
		name  string
		order domain.Order
		want  string
	}{
		{"landing campaign param", domain.Order{LandingSite: "/?utm_campaign=retargeting"}, "221"},
		{"tag", domain.Order{Tags: "vip, festive-drop"}, "221"},
		{"landing path", domain.Order{LandingSite: "/collections/hero-video-picks"}, "111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matcher{}.Match(tt.order, domain.LevelAd, adEntities())
			assert.Equal(t, AttributedAd, got.Kind)
			assert.Equal(t, tt.want, got.EntityID)
		})
	}
}

func TestMatchAdSetLevel(t *testing.T) {
	sets := []domain.AdEntity{
		{Level: domain.LevelAdSet, ID: "11", Name: "Summer-Sale", ParentID: "1", Spend: decimal.NewFromInt(1000)},
	}
	got := Matcher{}.Match(withUTM("summer_sale"), domain.LevelAdSet, sets)
	assert.Equal(t, Attribution{Kind: AttributedAdSet, EntityID: "11", ParentID: "1"}, got)
}

func TestInferSource(t *testing.T) {
	tests := []struct {
		name  string
		order domain.Order
		want  string
	}{
		{"utm source note", domain.Order{NoteAttributes: []domain.NoteAttribute{{Name: "utm_source", Value: "newsletter"}}}, "newsletter"},
		{"utm source landing", domain.Order{LandingSite: "/?utm_source=whatsapp"}, "whatsapp"},
		{"facebook", domain.Order{ReferringSite: "https://l.facebook.com/"}, "Facebook"},
		{"google", domain.Order{ReferringSite: "https://www.google.com/"}, "Google"},
		{"instagram", domain.Order{ReferringSite: "https://l.instagram.com/"}, "Instagram"},
		{"bing", domain.Order{ReferringSite: "https://www.bing.com/search"}, "Bing"},
		{"twitter", domain.Order{ReferringSite: "https://twitter.com/x"}, "Twitter/X"},
		{"t.co", domain.Order{ReferringSite: "https://t.co/abc"}, "Twitter/X"},
		{"not t.co", domain.Order{ReferringSite: "https://www.microsoft.com/"}, "Other"},
		{"other", domain.Order{ReferringSite: "https://duckduckgo.com/"}, "Other"},
		{"direct", domain.Order{}, "direct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferSource(tt.order))
		})
	}
}

func TestMatchIsIdempotent(t *testing.T) {
	o := withUTM("festive")
	o.ReferringSite = "https://google.com"
	m := Matcher{}
	first := m.Match(o, domain.LevelAd, adEntities())
	second := m.Match(o, domain.LevelAd, adEntities())
	assert.Equal(t, first, second)
	assert.Equal(t, "221", first.EntityID)
}
