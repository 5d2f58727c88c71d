package subscription

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "flk3409refn54t54t*FNJRET"

func newTestWayForPay() *WayForPayService {
	return NewWayForPayService(WayForPayConfig{
		MerchantAccount:    "test_merch_n1",
		MerchantDomainName: "reviewhub.example",
		SecretKey:          testSecret,
		ServiceURL:         "https://api.reviewhub.example/api/v1/payments/wayforpay/webhook",
		ReturnURL:          "https://reviewhub.example/billing",
		PayURL:             "https://secure.wayforpay.com/pay",
		Currency:           "UAH",
		Prices:             PriceList{"PRO_monthly": 299},
	})
}

func hmacMD5(secret, data string) string {
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSign_MatchesHMACMD5(t *testing.T) {
	w := newTestWayForPay()
	assert.Equal(t, hmacMD5(testSecret, "a;b;c"), w.Sign("a", "b", "c"))
}

func TestVerifyNotification(t *testing.T) {
	w := newTestWayForPay()

	body := `{"merchantAccount":"test_merch_n1","orderReference":"RH-abc-1","amount":299,"currency":"UAH",` +
		`"authCode":"541963","cardPan":"44****7701","transactionStatus":"Approved","reasonCode":1100,"merchantSignature":"%s"}`
	sig := hmacMD5(testSecret, "test_merch_n1;RH-abc-1;299;UAH;541963;44****7701;Approved;1100")

	n, err := ParseNotification([]byte(fmtSig(body, sig)))
	require.NoError(t, err)
	assert.True(t, w.VerifyNotification(n))
	assert.True(t, n.Approved())

	tampered, err := ParseNotification([]byte(fmtSig(body, hmacMD5("wrong", "x"))))
	require.NoError(t, err)
	assert.False(t, w.VerifyNotification(tampered))
}

func TestVerifyNotification_AmountSpellingMatters(t *testing.T) {
	w := newTestWayForPay()

	body := `{"merchantAccount":"m","orderReference":"o","amount":"299.00","currency":"UAH",` +
		`"authCode":"","cardPan":"","transactionStatus":"Declined","reasonCode":"1101","merchantSignature":"%s"}`
	sig := hmacMD5(testSecret, "m;o;299.00;UAH;;;Declined;1101")

	n, err := ParseNotification([]byte(fmtSig(body, sig)))
	require.NoError(t, err)
	assert.Equal(t, "299.00", n.Amount.String())
	assert.True(t, w.VerifyNotification(n))
	assert.False(t, n.Approved())
}

func TestParseNotification_FormEncoded(t *testing.T) {
	jsonBody := `{"merchantAccount":"m","orderReference":"RH-1","amount":10,"transactionStatus":"Approved"}`
	formBody := url.QueryEscape(jsonBody) + "="

	n, err := ParseNotification([]byte(formBody))
	require.NoError(t, err)
	assert.Equal(t, "RH-1", n.OrderReference)
	assert.Equal(t, "10", n.Amount.String())
}

func TestParseNotification_Malformed(t *testing.T) {
	for _, body := range []string{"", "   ", "a=b&c=d", `{"amount":1}`, "{not json"} {
		_, err := ParseNotification([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedNotification, body)
	}
}

func TestAcceptResponse(t *testing.T) {
	w := newTestWayForPay()
	now := time.Unix(1700000000, 0)

	ack := w.AcceptResponse("RH-abc-1", now)
	assert.Equal(t, "RH-abc-1", ack.OrderReference)
	assert.Equal(t, "accept", ack.Status)
	assert.Equal(t, int64(1700000000), ack.Time)
	assert.Equal(t, hmacMD5(testSecret, "RH-abc-1;accept;1700000000"), ack.Signature)
}

func TestBuildCheckoutForm(t *testing.T) {
	w := newTestWayForPay()
	orderDate := time.Unix(1700000000, 0)

	form := w.BuildCheckoutForm(CheckoutOrder{
		OrderReference: "RH-abc-1",
		OrderDate:      orderDate,
		Amount:         299,
		ProductName:    "ReviewHub PRO (monthly)",
	})

	expected := hmacMD5(testSecret, "test_merch_n1;reviewhub.example;RH-abc-1;"+
		strconv.FormatInt(orderDate.Unix(), 10)+";299;UAH;ReviewHub PRO (monthly);1;299")
	assert.Equal(t, expected, form.MerchantSignature)
	assert.Equal(t, "299", form.Amount)
	assert.Equal(t, []string{"299"}, form.Fields["productPrice[]"])
	assert.Equal(t, "https://secure.wayforpay.com/pay", form.Action)
	assert.True(t, w.Configured())
}

func fmtSig(body, sig string) string {
	return strings.Replace(body, "%s", sig, 1)
}
