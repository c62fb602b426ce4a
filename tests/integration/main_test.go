//go:build integration

package integration

import (
	"context"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bissquit/news-digest/internal/app"
	"github.com/bissquit/news-digest/internal/config"
	"github.com/bissquit/news-digest/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	testServer    *httptest.Server
	testValidator *testutil.OpenAPIValidator
	testDB        *pgxpool.Pool

	// Mailpit receives every digest the app sends over SMTP.
	mailpitContainer *testutil.MailpitContainer
	mailpitClient    *MailpitClient
)

// OpenAPI spec path relative to the tests/integration directory.
const openAPISpecPath = "../../api/openapi/openapi.yaml"

// newTestClient creates a new test client with OpenAPI validation enabled.
// Use this at the beginning of each test that makes API calls.
func newTestClient(t *testing.T) *testutil.Client {
	t.Helper()
	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.SetT(t)
	return client
}

// newTestClientWithoutValidation creates a test client without OpenAPI validation.
// Use this for tests that intentionally send malformed requests.
func newTestClientWithoutValidation() *testutil.Client {
	return testutil.NewClient(testServer.URL)
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	mailpitContainer, err = testutil.NewMailpitContainer(ctx)
	if err != nil {
		log.Fatalf("start mailpit: %v", err)
	}
	defer func() {
		if err := mailpitContainer.Terminate(ctx); err != nil {
			log.Printf("terminate mailpit: %v", err)
		}
	}()

	mailpitClient = NewMailpitClient(
		mailpitContainer.APIHost,
		mailpitContainer.APIPort,
	)

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Database = config.DatabaseConfig{
		URL:             pgContainer.ConnectionString,
		MaxOpenConns:    5,
		MinIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  30 * time.Second,
		ConnectAttempts: 3,
		AutoMigrate:     true,
	}
	cfg.Log = config.LogConfig{Level: "error", Format: "text"}
	cfg.JWT = config.JWTConfig{
		SecretKey:     "test-secret-key",
		TokenDuration: time.Hour,
	}
	// No news API key: previews and digests use the mock articles.
	cfg.News.APIKey = ""
	cfg.Email.Provider = config.EmailProviderSMTP
	cfg.Email.FromAddress = "digest@news-digest.test"
	cfg.Email.SMTP = config.SMTPConfig{
		Host: mailpitContainer.SMTPHost,
		Port: mailpitContainer.SMTPPort,
	}
	// The job only runs through GET /api/cron during tests.
	cfg.Digest.SchedulerEnabled = false
	cfg.Digest.Timezone = "UTC"
	cfg.Digest.RunTimeout = time.Minute
	cfg.Digest.CronSecret = testCronSecret
	cfg.Digest.TriggerRatePerMinute = 0

	application, err := app.New(&cfg)
	if err != nil {
		log.Fatalf("create app: %v", err)
	}

	testDB, err = pgxpool.New(ctx, pgContainer.ConnectionString)
	if err != nil {
		log.Fatalf("create test db pool: %v", err)
	}

	testServer = httptest.NewServer(application.Router())

	testValidator, err = testutil.LoadOpenAPIValidator(openAPISpecPath)
	if err != nil {
		log.Fatalf("load OpenAPI validator: %v", err)
	}

	code := m.Run()

	testServer.Close()
	testDB.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown app: %v", err)
	}

	os.Exit(code)
}
