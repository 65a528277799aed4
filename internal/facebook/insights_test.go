package facebook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sellerdash/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func testRange(t *testing.T) domain.DateRange {
	r, err := domain.NewDateRange("2024-01-01", "2024-01-03", time.UTC, 0)
	require.NoError(t, err)
	return r
}

func TestAdEntitiesPagesAndMaps(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/act_42/insights", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		if r.URL.Query().Get("after") == "" {
			assert.Equal(t, "ad", r.URL.Query().Get("level"))
			assert.JSONEq(t, `{"since":"2024-01-01","until":"2024-01-03"}`, r.URL.Query().Get("time_range"))
			_, _ = w.Write([]byte(`{"data":[
				{"ad_id":"111","ad_name":"Hero Video","adset_id":"11","adset_name":"Summer-Sale","campaign_id":"1","campaign_name":"Q1","spend":"150.25"}
			],"paging":{"next":"` + srv.URL + `/v18.0/act_42/insights?access_token=tok&after=c1"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[
			{"ad_id":"112","ad_name":"Carousel","adset_id":"11","adset_name":"Summer-Sale","campaign_id":"1","campaign_name":"Q1","spend":"49.75"}
		],"paging":{}}`))
	}))
	defer srv.Close()

	c := NewClient("act_42", "tok", "", srv.URL, time.Second, zaptest.NewLogger(t))
	ents, err := c.AdEntities(context.Background(), domain.LevelAd, testRange(t))
	require.NoError(t, err)
	require.Len(t, ents, 2)

	assert.Equal(t, domain.AdEntity{
		Level: domain.LevelAd, ID: "111", Name: "Hero Video",
		ParentID: "11", ParentName: "Summer-Sale",
		CampaignID: "1", CampaignName: "Q1",
		Spend: decimal.RequireFromString("150.25"),
	}, ents[0])
	assert.Equal(t, "112", ents[1].ID)
}

func TestAdEntitiesAdSetLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "adset", r.URL.Query().Get("level"))
		_, _ = w.Write([]byte(`{"data":[{"adset_id":"11","adset_name":"Summer-Sale","campaign_id":"1","campaign_name":"Q1","spend":"200"}]}`))
	}))
	defer srv.Close()

	c := NewClient("42", "tok", "v18.0", srv.URL, time.Second, zaptest.NewLogger(t))
	ents, err := c.AdEntities(context.Background(), domain.LevelAdSet, testRange(t))
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "11", ents[0].ID)
	assert.Equal(t, "Summer-Sale", ents[0].Name)
	assert.Equal(t, "Q1", ents[0].ParentName)
}

func TestDailySpend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("time_increment"))
		_, _ = w.Write([]byte(`{"data":[
			{"spend":"100.50","date_start":"2024-01-01"},
			{"spend":"80","date_start":"2024-01-03"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("42", "tok", "", srv.URL, time.Second, zaptest.NewLogger(t))
	spend, err := c.DailySpend(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.Len(t, spend, 2)
	assert.True(t, spend["2024-01-01"].Equal(decimal.RequireFromString("100.5")))
	_, ok := spend["2024-01-02"]
	assert.False(t, ok)
}

func TestUnreadableSpendIsZeroAndLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("time_increment") == "1" {
			_, _ = w.Write([]byte(`{"data":[{"spend":"n/a","date_start":"2024-01-01"},{"spend":"40","date_start":"2024-01-01"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"adset_id":"11","adset_name":"Festive","spend":"--"}]}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	c := NewClient("42", "tok", "", srv.URL, time.Second, zap.New(core))

	ents, err := c.AdEntities(context.Background(), domain.LevelAdSet, testRange(t))
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.True(t, ents[0].Spend.IsZero())

	spend, err := c.DailySpend(context.Background(), testRange(t))
	require.NoError(t, err)
	assert.True(t, spend["2024-01-01"].Equal(decimal.NewFromInt(40)))

	warned := logs.FilterMessage("unreadable insights spend").All()
	require.Len(t, warned, 2)
	assert.Equal(t, "--", warned[0].ContextMap()["spend"])
	assert.Equal(t, "n/a", warned[1].ContextMap()["spend"])
}

func TestGraphErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`))
	}))
	defer srv.Close()

	c := NewClient("42", "bad", "", srv.URL, time.Second, zaptest.NewLogger(t))
	_, err := c.DailySpend(context.Background(), testRange(t))
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 190, apiErr.Code)
	assert.Equal(t, "OAuthException", apiErr.Type)
}
