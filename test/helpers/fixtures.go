package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/services/subscription"
)

// RegisterShop регистрирует магазин через API и возвращает токен и ID
func RegisterShop(t testing.TB, ts *TestServer, email string) (token, shopID string) {
	t.Helper()
	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "coffee2024",
		"name":     "Shop " + email,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, res.StatusCode, body)
	}

	var resp dto.AuthResponse
	DecodeJSON(t, body, &resp)
	return resp.AccessToken, resp.Shop.ID
}

// CreateLink создаёт ссылку на отзыв с настройками по умолчанию
func CreateLink(t testing.TB, ts *TestServer, token string, req interface{}) string {
	t.Helper()
	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/links", token, req)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create link: status %d, body %s", res.StatusCode, body)
	}

	var link dto.LinkResponse
	DecodeJSON(t, body, &link)
	return link.ID
}

// ReviewBody - валидный отзыв с заданной оценкой
func ReviewBody(rating int) map[string]interface{} {
	return map[string]interface{}{
		"customerName": "Olena",
		"rating":       rating,
		"text":         fmt.Sprintf("Rated %d of 5", rating),
	}
}

// SignedNotification - уведомление WayForPay, подписанное секретом тестового мерчанта
func SignedNotification(t testing.TB, orderRef, amount, status string) []byte {
	t.Helper()
	gateway := subscription.NewWayForPayService(subscription.WayForPayConfig{
		MerchantAccount: TestMerchant,
		SecretKey:       TestSecretKey,
	})

	n := map[string]interface{}{
		"merchantAccount":   TestMerchant,
		"orderReference":    orderRef,
		"amount":            json.RawMessage(amount),
		"currency":          "UAH",
		"authCode":          "541963",
		"cardPan":           "44****7701",
		"transactionStatus": status,
		"reasonCode":        1100,
		"reason":            "Ok",
	}
	n["merchantSignature"] = gateway.Sign(TestMerchant, orderRef, amount, "UAH", "541963", "44****7701", status, "1100")

	body, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("failed to encode notification: %v", err)
	}
	return body
}
