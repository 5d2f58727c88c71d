package subscription

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reviewhub_backend/internal/models"
)

const (
	TransactionApproved = "Approved"
	AckStatusAccept     = "accept"
)

var ErrMalformedNotification = errors.New("malformed payment notification")

// Notification - тело serviceUrl-уведомления WayForPay (поля, которые мы используем)
type Notification struct {
	MerchantAccount   string     `json:"merchantAccount"`
	OrderReference    string     `json:"orderReference"`
	MerchantSignature string     `json:"merchantSignature"`
	Amount            FlexString `json:"amount"`
	Currency          string     `json:"currency"`
	AuthCode          string     `json:"authCode"`
	Email             string     `json:"email"`
	CardPan           string     `json:"cardPan"`
	TransactionStatus string     `json:"transactionStatus"`
	Reason            string     `json:"reason"`
	ReasonCode        FlexString `json:"reasonCode"`
	CreatedDate       FlexString `json:"createdDate"`
	ProcessingDate    FlexString `json:"processingDate"`

	// Raw - исходный JSON для журнала вебхуков
	Raw json.RawMessage `json:"-"`
}

func (n *Notification) Approved() bool {
	return n.TransactionStatus == TransactionApproved
}

// SignatureFields - порядок полей подписи уведомления
func (n *Notification) SignatureFields() []string {
	return []string{
		n.MerchantAccount,
		n.OrderReference,
		n.Amount.String(),
		n.Currency,
		n.AuthCode,
		n.CardPan,
		n.TransactionStatus,
		n.ReasonCode.String(),
	}
}

// FlexString - числовое поле, которое приходит то числом, то строкой.
// Хранится дословно: подпись считается по исходному написанию ("100" и "100.00" различаются).
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		*f = FlexString(raw)
	}
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

func (f FlexString) Float() (float64, error) {
	return strconv.ParseFloat(string(f), 64)
}

// Ack - ответ мерчанта; без него WayForPay повторяет уведомление
type Ack struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Time           int64  `json:"time"`
	Signature      string `json:"signature"`
}

// CheckoutOrder - то, что мы продаём
type CheckoutOrder struct {
	OrderReference string
	OrderDate      time.Time
	Amount         float64
	ProductName    string
	ClientEmail    string
}

// CheckoutForm - поля формы POST на secure.wayforpay.com/pay
type CheckoutForm struct {
	Action             string     `json:"action"`
	MerchantAccount    string     `json:"merchantAccount"`
	MerchantDomainName string     `json:"merchantDomainName"`
	MerchantAuthType   string     `json:"merchantAuthType"`
	MerchantSignature  string     `json:"merchantSignature"`
	OrderReference     string     `json:"orderReference"`
	OrderDate          int64      `json:"orderDate"`
	Amount             string     `json:"amount"`
	Currency           string     `json:"currency"`
	ProductName        []string   `json:"productName"`
	ProductCount       []string   `json:"productCount"`
	ProductPrice       []string   `json:"productPrice"`
	ReturnURL          string     `json:"returnUrl,omitempty"`
	ServiceURL         string     `json:"serviceUrl,omitempty"`
	ClientEmail        string     `json:"clientEmail,omitempty"`
	Fields             url.Values `json:"-"`
}

type WayForPayConfig struct {
	MerchantAccount    string
	MerchantDomainName string
	SecretKey          string
	ServiceURL         string
	ReturnURL          string
	PayURL             string
	Currency           string
	Prices             PriceList
}

// WayForPayService подписывает формы оплаты и проверяет уведомления (HMAC-MD5)
type WayForPayService struct {
	cfg WayForPayConfig
}

func NewWayForPayService(cfg WayForPayConfig) *WayForPayService {
	return &WayForPayService{cfg: cfg}
}

func (w *WayForPayService) Configured() bool {
	return w.cfg.MerchantAccount != "" && w.cfg.SecretKey != ""
}

func (w *WayForPayService) Currency() string {
	return w.cfg.Currency
}

func (w *WayForPayService) Prices() PriceList {
	return w.cfg.Prices
}

// Sign - HMAC-MD5 (hex) над полями, склеенными через ';'
func (w *WayForPayService) Sign(fields ...string) string {
	mac := hmac.New(md5.New, []byte(w.cfg.SecretKey))
	mac.Write([]byte(strings.Join(fields, ";")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyNotification - сравнение в постоянное время
func (w *WayForPayService) VerifyNotification(n *Notification) bool {
	if n == nil || n.MerchantSignature == "" {
		return false
	}
	expected := w.Sign(n.SignatureFields()...)
	received := strings.ToLower(strings.TrimSpace(n.MerchantSignature))
	return hmac.Equal([]byte(expected), []byte(received))
}

// AcceptResponse - подтверждение приёма уведомления
func (w *WayForPayService) AcceptResponse(orderReference string, now time.Time) Ack {
	ts := now.Unix()
	return Ack{
		OrderReference: orderReference,
		Status:         AckStatusAccept,
		Time:           ts,
		Signature:      w.Sign(orderReference, AckStatusAccept, strconv.FormatInt(ts, 10)),
	}
}

// BuildCheckoutForm собирает подписанную форму оплаты одного товара
func (w *WayForPayService) BuildCheckoutForm(order CheckoutOrder) CheckoutForm {
	amount := formatAmount(order.Amount)
	orderDate := order.OrderDate.Unix()

	form := CheckoutForm{
		Action:             w.cfg.PayURL,
		MerchantAccount:    w.cfg.MerchantAccount,
		MerchantDomainName: w.cfg.MerchantDomainName,
		MerchantAuthType:   "SimpleSignature",
		OrderReference:     order.OrderReference,
		OrderDate:          orderDate,
		Amount:             amount,
		Currency:           w.cfg.Currency,
		ProductName:        []string{order.ProductName},
		ProductCount:       []string{"1"},
		ProductPrice:       []string{amount},
		ReturnURL:          w.cfg.ReturnURL,
		ServiceURL:         w.cfg.ServiceURL,
		ClientEmail:        order.ClientEmail,
	}

	fields := []string{
		form.MerchantAccount,
		form.MerchantDomainName,
		form.OrderReference,
		strconv.FormatInt(orderDate, 10),
		form.Amount,
		form.Currency,
	}
	fields = append(fields, form.ProductName...)
	fields = append(fields, form.ProductCount...)
	fields = append(fields, form.ProductPrice...)
	form.MerchantSignature = w.Sign(fields...)

	form.Fields = url.Values{}
	form.Fields.Set("merchantAccount", form.MerchantAccount)
	form.Fields.Set("merchantDomainName", form.MerchantDomainName)
	form.Fields.Set("merchantAuthType", form.MerchantAuthType)
	form.Fields.Set("merchantSignature", form.MerchantSignature)
	form.Fields.Set("orderReference", form.OrderReference)
	form.Fields.Set("orderDate", strconv.FormatInt(orderDate, 10))
	form.Fields.Set("amount", form.Amount)
	form.Fields.Set("currency", form.Currency)
	form.Fields["productName[]"] = form.ProductName
	form.Fields["productCount[]"] = form.ProductCount
	form.Fields["productPrice[]"] = form.ProductPrice
	if form.ReturnURL != "" {
		form.Fields.Set("returnUrl", form.ReturnURL)
	}
	if form.ServiceURL != "" {
		form.Fields.Set("serviceUrl", form.ServiceURL)
	}
	if form.ClientEmail != "" {
		form.Fields.Set("clientEmail", form.ClientEmail)
	}
	return form
}

// ProductName - строка товара в чеке
func ProductName(plan models.Plan, period models.BillingPeriod) string {
	return fmt.Sprintf("ReviewHub %s (%s)", plan, period)
}

// ParseNotification разбирает тело уведомления. WayForPay шлёт JSON, но часть прокси
// превращает его в form-urlencoded, где весь JSON оказывается единственным ключом.
func ParseNotification(body []byte) (*Notification, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return nil, ErrMalformedNotification
	}

	if !strings.HasPrefix(raw, "{") {
		raw = extractFormEncodedJSON(raw)
	}
	if !strings.HasPrefix(raw, "{") {
		return nil, ErrMalformedNotification
	}

	var n Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if n.OrderReference == "" {
		return nil, fmt.Errorf("%w: orderReference is empty", ErrMalformedNotification)
	}
	n.Raw = json.RawMessage(raw)
	return &n, nil
}

func extractFormEncodedJSON(raw string) string {
	if values, err := url.ParseQuery(raw); err == nil {
		var candidate string
		nonEmpty := 0
		for key, vals := range values {
			if strings.TrimSpace(key) == "" {
				continue
			}
			nonEmpty++
			candidate = key
			if len(vals) > 0 && vals[0] != "" {
				// JSON со знаком '=' внутри: ключ обрезан на первом '='
				candidate = key + "=" + vals[0]
			}
		}
		if nonEmpty == 1 && strings.HasPrefix(strings.TrimSpace(candidate), "{") {
			return strings.TrimSpace(candidate)
		}
	}

	// запасной путь: тело целиком url-encoded с хвостовым '='
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		return strings.TrimSuffix(strings.TrimSpace(unescaped), "=")
	}
	return raw
}

// formatAmount - WayForPay сравнивает строку суммы посимвольно
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
