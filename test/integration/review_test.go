package integration_test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/test/helpers"
)

func TestSubmitViaLink_SingleUse(t *testing.T) {
	ts := GetTestServer(t)
	token, shopID := helpers.RegisterShop(t, ts, "owner@shop.test")
	linkID := helpers.CreateLink(t, ts, token, nil)

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/public/links/"+linkID, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	path := "/api/v1/public/links/" + linkID + "/reviews"
	res, body = ts.SendRequest(t, http.MethodPost, path, "", helpers.ReviewBody(5))
	require.Equal(t, http.StatusCreated, res.StatusCode, body)

	var review dto.ReviewResponse
	helpers.DecodeJSON(t, body, &review)
	assert.Equal(t, shopID, review.ShopID)
	assert.Equal(t, linkID, *review.LinkID)

	// повторная отправка по той же ссылке
	res, body = ts.SendRequest(t, http.MethodPost, path, "", helpers.ReviewBody(4))
	assert.Equal(t, http.StatusGone, res.StatusCode)
	assert.Contains(t, body, "LINK_INVALID")

	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/public/links/"+linkID, "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestSubmitViaLink_ConcurrentClaim(t *testing.T) {
	ts := GetTestServer(t)
	token, _ := helpers.RegisterShop(t, ts, "owner@shop.test")
	linkID := helpers.CreateLink(t, ts, token, nil)
	path := "/api/v1/public/links/" + linkID + "/reviews"

	const attempts = 8
	statuses := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := ts.SendRequest(t, http.MethodPost, path, "", helpers.ReviewBody(5))
			statuses <- res.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	created := 0
	for status := range statuses {
		if status == http.StatusCreated {
			created++
			continue
		}
		assert.Equal(t, http.StatusGone, status)
	}
	assert.Equal(t, 1, created)

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var me dto.ShopResponse
	helpers.DecodeJSON(t, body, &me)
	assert.Equal(t, 1, me.ReviewsUsed)
}

func TestSubmitViaLink_FreeQuota(t *testing.T) {
	ts := GetTestServer(t)
	token, _ := helpers.RegisterShop(t, ts, "owner@shop.test")

	for i := 0; i < 10; i++ {
		linkID := helpers.CreateLink(t, ts, token, nil)
		res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/public/links/"+linkID+"/reviews", "", helpers.ReviewBody(i%5+1))
		require.Equal(t, http.StatusCreated, res.StatusCode, body)
	}

	linkID := helpers.CreateLink(t, ts, token, nil)
	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/public/links/"+linkID+"/reviews", "", helpers.ReviewBody(5))
	assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)
	assert.Contains(t, body, `"limit":10`)

	// ссылка не сгорела: после оплаты её можно использовать
	res, _ = ts.SendRequest(t, http.MethodGet, "/api/v1/public/links/"+linkID, "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestFeedAndStats(t *testing.T) {
	ts := GetTestServer(t)
	token, shopID := helpers.RegisterShop(t, ts, "owner@shop.test")

	ratings := []int{5, 4, 5, 3, 5, 4, 2}
	for _, rating := range ratings {
		res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/shops/"+shopID+"/reviews", token, helpers.ReviewBody(rating))
		require.Equal(t, http.StatusCreated, res.StatusCode, body)
	}

	seen := map[string]bool{}
	for page := 0; ; page++ {
		res, body := ts.SendRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/public/shops/%s/feed?page=%d", shopID, page), "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode, body)

		var feed dto.FeedPage
		helpers.DecodeJSON(t, body, &feed)
		for _, item := range feed.Items {
			assert.False(t, seen[item.ID], "duplicate review %s", item.ID)
			seen[item.ID] = true
		}
		if !feed.HasMore {
			break
		}
	}
	assert.Len(t, seen, len(ratings))

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/public/shops/"+shopID+"/stats", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var stats dto.StatsResponse
	helpers.DecodeJSON(t, body, &stats)
	assert.EqualValues(t, 7, stats.TotalCount)
	assert.Equal(t, 4.0, stats.AverageRating)

	sum := 0
	for _, bucket := range stats.RatingDistribution {
		sum += bucket.Percentage
	}
	assert.Equal(t, 100, sum)
}

func TestSubmitForShop_ForeignShopForbidden(t *testing.T) {
	ts := GetTestServer(t)
	token, _ := helpers.RegisterShop(t, ts, "a@shop.test")
	_, otherID := helpers.RegisterShop(t, ts, "b@shop.test")

	res, _ := ts.SendRequest(t, http.MethodPost, "/api/v1/shops/"+otherID+"/reviews", token, helpers.ReviewBody(5))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}
