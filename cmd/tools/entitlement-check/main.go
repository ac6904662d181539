// Package main implements the entitlement-check CLI tool for inspecting an
// organization's resolved entitlements directly against the database,
// bypassing any caching layer a long-lived service would carry.
//
// This tool is intended for local development, support escalations, and
// operational debugging ("why is this org rate limited?"). It wires the
// entitlement service with a zero-TTL cache so every answer reflects the
// database at the moment of the call.
//
// Usage:
//
//	go run ./cmd/tools/entitlement-check --org=42
//	go run ./cmd/tools/entitlement-check --org=42 --feature=seats --usage=17
//	go run ./cmd/tools/entitlement-check --org=42 --user=7 --workspace=13
//
// The tool reads DATABASE_URL from environment variables (or .env file via
// godotenv).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"workhub/internal/access"
	"workhub/internal/cache"
	"workhub/internal/db"
	"workhub/internal/entitlement"
	"workhub/internal/telemetry"
	"workhub/internal/types"
	"workhub/internal/usage"
)

// report is the JSON document printed to stdout.
type report struct {
	OrganizationID int64            `json:"organization_id"`
	CurrentPlan    *types.Plan      `json:"current_plan"`
	HasActivePlan  bool             `json:"has_active_plan"`
	Trial          types.TrialInfo  `json:"trial"`
	APIRateLimit   int              `json:"api_rate_limit"`
	Feature        *featureReport   `json:"feature,omitempty"`
	Access         *accessReport    `json:"access,omitempty"`
}

type featureReport struct {
	Name           string `json:"name"`
	EffectiveLimit *int   `json:"effective_limit"`
	CurrentUsage   int    `json:"current_usage"`
	WithinLimit    bool   `json:"within_limit"`
}

type accessReport struct {
	UserID      int64  `json:"user_id"`
	WorkspaceID int64  `json:"workspace_id"`
	Role        string `json:"role,omitempty"`
	HasAccess   bool   `json:"has_access"`
	Direct      bool   `json:"direct"`
}

func main() {
	orgFlag := flag.Int64("org", 0, "Organization id to inspect (required)")
	featureFlag := flag.String("feature", "", "Feature key to resolve the effective limit for")
	usageFlag := flag.Int("usage", -1, "Usage value to check against the limit (default: read the ledger)")
	userFlag := flag.Int64("user", 0, "User id for an access check (requires --workspace)")
	workspaceFlag := flag.Int64("workspace", 0, "Workspace id for an access check (requires --user)")
	defaultRateFlag := flag.Int("default-rate-limit", 60, "System default API rate limit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: entitlement-check [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Inspect an organization's resolved entitlements against the database.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *orgFlag == 0 {
		fmt.Fprintf(os.Stderr, "error: --org is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if (*userFlag == 0) != (*workspaceFlag == 0) {
		fmt.Fprintf(os.Stderr, "error: --user and --workspace must be given together\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// Load .env file for local development (non-fatal if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Attribute any writes or warnings logged downstream to this tool.
	ctx = types.WithActor(ctx, types.Actor{
		Type:           types.ActorTypeSystem,
		OrganizationID: *orgFlag,
		Source:         "entitlement-check",
	})
	ctx = types.WithRequestID(ctx, uuid.NewString())

	if err := run(ctx, *orgFlag, *featureFlag, *usageFlag, *userFlag, *workspaceFlag, *defaultRateFlag, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, orgID int64, feature string, usageOverride int, userID, workspaceID int64, defaultRate int, logger *slog.Logger) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	planRepo := db.NewPlanRepo(pool)
	orgPlanRepo := db.NewOrgPlanRepo(pool)
	orgRepo := db.NewOrganizationRepo(pool)
	usageRepo := db.NewUsageRepo(pool)
	membershipRepo := db.NewMembershipRepo(pool)
	workspaceRepo := db.NewWorkspaceRepo(pool)

	// Data-integrity hits found during inspection still count: emit them to
	// CloudWatch when metrics are enabled, otherwise drop them.
	var metrics entitlement.Metrics = entitlement.NopMetrics{}
	if os.Getenv("ENABLE_METRICS") == "true" {
		cw, err := telemetry.NewCloudWatchClient(ctx, os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
		if err != nil {
			return fmt.Errorf("creating CloudWatch client: %w", err)
		}
		metrics = telemetry.NewEmitter(cw, logger)
	}

	svc := entitlement.NewService(entitlement.Config{
		Plans:        planRepo,
		Associations: orgPlanRepo,
		Orgs:         orgRepo,
		TxManager:    entitlement.NewPgTxManager(db.NewTxManager(pool)),
		// Zero TTL: every read reflects the database right now.
		CacheTTL:            time.Nanosecond,
		DefaultAPIRateLimit: defaultRate,
		Cache:               cache.NewMemoryStore(nil),
		Logger:              logger,
		Metrics:             metrics,
	})
	ledger := usage.NewLedger(usageRepo, planRepo, nil, logger)

	rep := report{OrganizationID: orgID}

	if rep.CurrentPlan, err = svc.GetCurrentPlan(ctx, orgID); err != nil {
		return fmt.Errorf("resolving current plan: %w", err)
	}
	if rep.HasActivePlan, err = svc.HasActivePlan(ctx, orgID); err != nil {
		return fmt.Errorf("checking active plan: %w", err)
	}
	if rep.Trial, err = svc.GetTrialInfo(ctx, orgID); err != nil {
		return fmt.Errorf("resolving trial info: %w", err)
	}
	if rep.APIRateLimit, err = svc.APIRateLimit(ctx, orgID); err != nil {
		return fmt.Errorf("resolving api rate limit: %w", err)
	}

	if feature != "" {
		limit, err := svc.EffectiveLimit(ctx, orgID, feature)
		if err != nil {
			return fmt.Errorf("resolving effective limit for %s: %w", feature, err)
		}
		current := usageOverride
		if current < 0 {
			if current, err = ledger.OrganizationUsage(ctx, orgID, feature); err != nil {
				return fmt.Errorf("reading usage for %s: %w", feature, err)
			}
		}
		within, err := svc.IsWithinEffectiveLimit(ctx, orgID, feature, current)
		if err != nil {
			return fmt.Errorf("checking limit for %s: %w", feature, err)
		}
		rep.Feature = &featureReport{
			Name:           feature,
			EffectiveLimit: limit,
			CurrentUsage:   current,
			WithinLimit:    within,
		}
	}

	if userID != 0 {
		resolver := access.NewResolver(membershipRepo, workspaceRepo, orgRepo, logger)
		role, hasAccess, err := resolver.ResolveWorkspaceRole(ctx, userID, workspaceID)
		if err != nil {
			return fmt.Errorf("resolving workspace role: %w", err)
		}
		// Directness is a separate question: an org admin reaches the
		// workspace implicitly without holding a membership row.
		direct, err := resolver.IsDirectMember(ctx, userID, workspaceID)
		if err != nil {
			return fmt.Errorf("checking direct membership: %w", err)
		}
		rep.Access = &accessReport{
			UserID:      userID,
			WorkspaceID: workspaceID,
			Role:        string(role),
			HasAccess:   hasAccess,
			Direct:      direct,
		}
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
