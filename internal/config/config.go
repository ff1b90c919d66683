// Package config loads the process configuration from the environment once
// at startup. Every component receives the parts it needs explicitly; there
// is no ambient settings object.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/ZhulikovN/platform-payment-sync/internal/mapping"
)

// Module provides Config and the derived mapping.Mapping.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(func(cfg Config) mapping.Mapping { return cfg.CRMMapping() }),
)

// HTTPConfig is the inbound server configuration.
type HTTPConfig struct {
	Addr          string
	WebhookSecret string
	// Maximum events accepted by the batch endpoint per request.
	BatchLimit int
	// Concurrent reconciliations while draining a batch.
	BatchConcurrency int
}

// AmoCRMConfig is the outbound CRM client configuration.
type AmoCRMConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration

	RetryMaxAttempts int
	RetryWaitMin     time.Duration
	RetryWaitMax     time.Duration
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// Config is the full process configuration.
type Config struct {
	Environment string
	LogLevel    string

	HTTP    HTTPConfig
	AmoCRM  AmoCRMConfig
	Tracing TracingConfig

	// Ledger database. A postgres:// DSN selects the postgres driver,
	// anything else is treated as a sqlite file path.
	DatabaseDSN string

	// Create contact/lead when matching finds nothing. Off means such
	// events fail with a not-found outcome.
	CreateIfNotFound bool

	// Location used for the human-readable half of note timestamps.
	Timezone string

	crm crmIDs
}

type crmIDs struct {
	contactTelegramID       int64
	contactTelegramUsername int64

	leadSubjects          int64
	leadDirection         int64
	leadLastPaymentAmount int64
	leadTotalPaid         int64
	leadPurchaseCount     int64
	leadPaymentStatus     int64
	leadLastPaymentDate   int64
	leadInvoiceID         int64
	leadPaymentID         int64

	leadUTMSource   int64
	leadUTMMedium   int64
	leadUTMCampaign int64
	leadUTMContent  int64
	leadUTMTerm     int64
	leadYMUID       int64

	subjects   map[string]int64
	directions map[string]int64

	sitePipeline    mapping.PipelineTarget
	partnerPipeline mapping.PipelineTarget
	searchPipeline  mapping.PipelineTarget

	partnerSources    map[string]struct{}
	paidSearchMediums map[string]struct{}
	closedStatusIDs   map[int64]struct{}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Location resolves the configured timezone, falling back to MSK.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || loc == nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// CRMMapping assembles the immutable CRM id mapping.
func (c Config) CRMMapping() mapping.Mapping {
	ids := c.crm
	closed := make(map[int64]struct{}, len(ids.closedStatusIDs)+3)
	for id := range ids.closedStatusIDs {
		closed[id] = struct{}{}
	}
	// Auto-payment stages are terminal for matching purposes: a lead parked
	// there was already settled by this service.
	for _, target := range []mapping.PipelineTarget{ids.sitePipeline, ids.partnerPipeline, ids.searchPipeline} {
		if target.StatusID != 0 {
			closed[target.StatusID] = struct{}{}
		}
	}

	return mapping.Mapping{
		ContactFields: mapping.ContactFields{
			TelegramID:       ids.contactTelegramID,
			TelegramUsername: ids.contactTelegramUsername,
		},
		LeadFields: mapping.LeadFields{
			Subjects:          ids.leadSubjects,
			Direction:         ids.leadDirection,
			LastPaymentAmount: ids.leadLastPaymentAmount,
			TotalPaid:         ids.leadTotalPaid,
			PurchaseCount:     ids.leadPurchaseCount,
			PaymentStatus:     ids.leadPaymentStatus,
			LastPaymentDate:   ids.leadLastPaymentDate,
			InvoiceID:         ids.leadInvoiceID,
			PaymentID:         ids.leadPaymentID,
			UTMSource:         ids.leadUTMSource,
			UTMMedium:         ids.leadUTMMedium,
			UTMCampaign:       ids.leadUTMCampaign,
			UTMContent:        ids.leadUTMContent,
			UTMTerm:           ids.leadUTMTerm,
			YMUID:             ids.leadYMUID,
		},
		Subjects:          ids.subjects,
		Directions:        ids.directions,
		SitePipeline:      ids.sitePipeline,
		PartnerPipeline:   ids.partnerPipeline,
		SearchPipeline:    ids.searchPipeline,
		PartnerSources:    ids.partnerSources,
		PaidSearchMediums: ids.paidSearchMediums,
		ClosedStatusIDs:   closed,
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: envString("ENVIRONMENT", "development"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Addr:             envString("HTTP_ADDR", ":8000"),
			WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
			BatchLimit:       envInt("WEBHOOK_BATCH_LIMIT", 1000),
			BatchConcurrency: envInt("WEBHOOK_BATCH_CONCURRENCY", 1),
		},
		AmoCRM: AmoCRMConfig{
			BaseURL:          strings.TrimRight(envString("AMO_BASE_URL", "https://api-b.amocrm.ru"), "/"),
			AccessToken:      os.Getenv("AMO_ACCESS_TOKEN"),
			Timeout:          envDuration("AMO_TIMEOUT", 30*time.Second),
			RetryMaxAttempts: envInt("RETRY_MAX_ATTEMPTS", 3),
			RetryWaitMin:     envDuration("RETRY_WAIT_MIN", 2*time.Second),
			RetryWaitMax:     envDuration("RETRY_WAIT_MAX", 10*time.Second),
		},
		Tracing: TracingConfig{
			Enabled:          envBool("TRACING_ENABLED", false),
			ExporterEndpoint: os.Getenv("TRACING_EXPORTER_ENDPOINT"),
			ExporterProtocol: envString("TRACING_EXPORTER_PROTOCOL", "http"),
			SamplingRatio:    envFloat("TRACING_SAMPLING_RATIO", 1.0),
		},
		DatabaseDSN:      envString("DATABASE_DSN", "db/payments.sqlite"),
		CreateIfNotFound: envBool("CREATE_IF_NOT_FOUND", false),
		Timezone:         envString("TIMEZONE", "Europe/Moscow"),
	}

	ids := crmIDs{
		contactTelegramID:       envInt64("AMO_CONTACT_FIELD_TG_ID", 0),
		contactTelegramUsername: envInt64("AMO_CONTACT_FIELD_TG_USERNAME", 0),

		leadSubjects:          envInt64("AMO_LEAD_FIELD_SUBJECTS", 0),
		leadDirection:         envInt64("AMO_LEAD_FIELD_DIRECTION", 0),
		leadLastPaymentAmount: envInt64("AMO_LEAD_FIELD_LAST_PAYMENT_AMOUNT", 0),
		leadTotalPaid:         envInt64("AMO_LEAD_FIELD_TOTAL_PAID", 0),
		leadPurchaseCount:     envInt64("AMO_LEAD_FIELD_PURCHASE_COUNT", 0),
		leadPaymentStatus:     envInt64("AMO_LEAD_FIELD_PAYMENT_STATUS", 0),
		leadLastPaymentDate:   envInt64("AMO_LEAD_FIELD_LAST_PAYMENT_DATE", 0),
		leadInvoiceID:         envInt64("AMO_LEAD_FIELD_INVOICE_ID", 0),
		leadPaymentID:         envInt64("AMO_LEAD_FIELD_PAYMENT_ID", 0),

		leadUTMSource:   envInt64("AMO_LEAD_FIELD_UTM_SOURCE", 0),
		leadUTMMedium:   envInt64("AMO_LEAD_FIELD_UTM_MEDIUM", 0),
		leadUTMCampaign: envInt64("AMO_LEAD_FIELD_UTM_CAMPAIGN", 0),
		leadUTMContent:  envInt64("AMO_LEAD_FIELD_UTM_CONTENT", 0),
		leadUTMTerm:     envInt64("AMO_LEAD_FIELD_UTM_TERM", 0),
		leadYMUID:       envInt64("AMO_LEAD_FIELD_YM_UID", 0),

		subjects:   envNameIDMap("AMO_SUBJECT_ENUMS"),
		directions: envNameIDMap("AMO_DIRECTION_ENUMS"),

		sitePipeline: mapping.PipelineTarget{
			PipelineID: envInt64("AMO_PIPELINE_SITE", 0),
			StatusID:   envInt64("AMO_STATUS_AUTOPAY_SITE", 0),
		},
		partnerPipeline: mapping.PipelineTarget{
			PipelineID: envInt64("AMO_PIPELINE_PARTNERS", 0),
			StatusID:   envInt64("AMO_STATUS_AUTOPAY_PARTNERS", 0),
		},
		searchPipeline: mapping.PipelineTarget{
			PipelineID: envInt64("AMO_PIPELINE_SEARCH", 0),
			StatusID:   envInt64("AMO_STATUS_AUTOPAY_SEARCH", 0),
		},

		partnerSources:    mapping.Set(envList("PARTNER_SOURCES")...),
		paidSearchMediums: mapping.Set(envList("PAID_SEARCH_MEDIUMS")...),
		closedStatusIDs:   mapping.IDSet(envInt64List("AMO_CLOSED_STATUS_IDS", 142, 143)...),
	}
	cfg.crm = ids

	if cfg.IsProduction() {
		if cfg.HTTP.WebhookSecret == "" {
			return Config{}, fmt.Errorf("config: WEBHOOK_SECRET is required")
		}
		if cfg.AmoCRM.AccessToken == "" {
			return Config{}, fmt.Errorf("config: AMO_ACCESS_TOKEN is required")
		}
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	return int(envInt64(key, int64(fallback)))
}

func envInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	// Bare integers are read as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func envInt64List(key string, fallback ...int64) []int64 {
	parts := envList(key)
	if len(parts) == 0 {
		return fallback
	}
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		parsed, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, parsed)
	}
	return ids
}

// envNameIDMap parses "Name=123,Other=456" pairs. Names may contain spaces.
func envNameIDMap(key string) map[string]int64 {
	out := map[string]int64{}
	for _, pair := range envList(key) {
		idx := strings.LastIndex(pair, "=")
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(pair[:idx])
		id, err := strconv.ParseInt(strings.TrimSpace(pair[idx+1:]), 10, 64)
		if err != nil || name == "" {
			continue
		}
		out[name] = id
	}
	return out
}
