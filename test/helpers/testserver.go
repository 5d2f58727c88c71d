package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"gorm.io/gorm"

	"reviewhub_backend/database"
	"reviewhub_backend/internal/app"
	"reviewhub_backend/internal/config"
	"reviewhub_backend/internal/logger"
)

// Секрет тестового мерчанта WayForPay
const (
	TestMerchant  = "test_merch_n1"
	TestSecretKey = "flk3409refn54t54t*FNJRET"
)

type TestServer struct {
	Server *httptest.Server
	DB     *gorm.DB
	App    *app.App
	Config *config.Config
	cancel context.CancelFunc
	tmpDir string
}

// NewTestServer поднимает приложение поверх реальной БД из DATABASE_URL.
// Без DATABASE_URL тест пропускается.
func NewTestServer(t testing.TB) *TestServer {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is not set, skipping integration tests")
	}

	cfg := config.Defaults()
	cfg.Server.Env = "test"
	cfg.Database.DSN = dsn
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	cfg.JWT.Secret = "integration_secret_key_12345"
	uploads, err := os.MkdirTemp("", "reviewhub-uploads-*")
	if err != nil {
		t.Fatalf("failed to create uploads dir: %v", err)
	}
	cfg.Storage.BasePath = uploads
	cfg.Storage.BaseURL = "/uploads"
	cfg.WayForPay.MerchantAccount = TestMerchant
	cfg.WayForPay.MerchantDomainName = "reviewhub.test"
	cfg.WayForPay.SecretKey = TestSecretKey
	cfg.WayForPay.Prices = map[string]float64{
		"PRO_monthly":      299,
		"PRO_yearly":       2990,
		"BUSINESS_monthly": 999,
		"BUSINESS_yearly":  9990,
	}

	logger.InitWithWriter("test", io.Discard)

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	application, err := app.New(ctx, cfg, db, nil)
	if err != nil {
		cancel()
		t.Fatalf("failed to build app: %v", err)
	}
	application.Start(ctx)

	return &TestServer{
		Server: httptest.NewServer(application.Router),
		DB:     db,
		App:    application,
		Config: cfg,
		cancel: cancel,
		tmpDir: uploads,
	}
}

func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.cancel()
	ts.App.Close()
	_ = os.RemoveAll(ts.tmpDir)
}

// ClearTables очищает все таблицы между тестами
func (ts *TestServer) ClearTables(t testing.TB) {
	t.Helper()
	for _, table := range []string{"uploads", "webhook_events", "payments", "reviews", "review_links", "shops"} {
		if err := ts.DB.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("failed to clear %s: %v", table, err)
		}
	}
}

// SendRequest отправляет JSON-запрос и возвращает ответ с телом
func (ts *TestServer) SendRequest(t testing.TB, method, path, token string, body interface{}) (*http.Response, string) {
	t.Helper()

	var reqBody io.Reader
	if raw, ok := body.([]byte); ok {
		reqBody = bytes.NewReader(raw)
	} else if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return res, string(resBody)
}

// DecodeJSON разбирает тело ответа в out
func DecodeJSON(t testing.TB, body string, out interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
}
