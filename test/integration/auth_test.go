package integration_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/test/helpers"
)

func TestAuthFlow(t *testing.T) {
	ts := GetTestServer(t)

	token, shopID := helpers.RegisterShop(t, ts, "owner@shop.test")
	require.NotEmpty(t, token)

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "owner@shop.test",
		"password": "coffee2024",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	var login dto.AuthResponse
	helpers.DecodeJSON(t, body, &login)
	assert.Equal(t, shopID, login.Shop.ID)

	res, body = ts.SendRequest(t, http.MethodGet, "/api/v1/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	var me dto.ShopResponse
	helpers.DecodeJSON(t, body, &me)
	assert.Equal(t, "FREE", me.Plan)
	assert.Equal(t, 10, *me.ReviewLimit)
	assert.Equal(t, 10, *me.Remaining)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := GetTestServer(t)
	helpers.RegisterShop(t, ts, "dup@shop.test")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "dup@shop.test",
		"password": "coffee2024",
		"name":     "Again",
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Contains(t, body, "ALREADY_EXISTS")
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := GetTestServer(t)
	helpers.RegisterShop(t, ts, "owner@shop.test")

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "owner@shop.test",
		"password": "wrong-pass1",
	})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, body, "INVALID_CREDENTIALS")
}

func TestPlans(t *testing.T) {
	ts := GetTestServer(t)

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/plans", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"plan":"BUSINESS"`)
	assert.Contains(t, body, `"unbounded":true`)
}
