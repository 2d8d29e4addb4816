package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pauamargant/leaseCare-lauzhack/internal/defense"
	"github.com/pauamargant/leaseCare-lauzhack/internal/gateway"
	"github.com/pauamargant/leaseCare-lauzhack/internal/ledger"
	"github.com/pauamargant/leaseCare-lauzhack/internal/prompt"
)

func main() {
	leasePath := flag.String("lease", "", "Path to analyzed lease JSON")
	dbPath := flag.String("db", "leasecare.db", "Path to evidence ledger SQLite database")
	leaseID := flag.String("lease-id", "", "Lease identifier (defaults to a fresh uuid)")
	query := flag.String("query", "", "The tenant's dispute question")
	jurisdiction := flag.String("jurisdiction", "", "Jurisdiction override (defaults to the catalogue's)")
	tenantName := flag.String("tenant-name", "", "Tenant name for the report")
	tenantLocation := flag.String("tenant-location", "", "Tenant location (city or canton)")
	rubricPath := flag.String("rubric", "", "Optional legal catalogue YAML (defaults to the embedded one)")
	outputPath := flag.String("output", "", "Path to write the result envelope JSON (defaults to stdout)")
	flag.Parse()

	if *leasePath == "" {
		log.Fatal("missing required -lease")
	}
	if strings.TrimSpace(*query) == "" {
		log.Fatal("missing required -query")
	}
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	lease, err := readLease(*leasePath)
	if err != nil {
		log.Fatalf("read lease: %v", err)
	}
	id := *leaseID
	if id == "" {
		id = uuid.NewString()
	}

	led, err := ledger.NewSQLiteLedger(*dbPath, id, lease.InspectionItems)
	if err != nil {
		log.Fatalf("open evidence ledger: %v", err)
	}
	defer led.Close()

	cat, err := loadCatalogue(*rubricPath)
	if err != nil {
		log.Fatalf("load legal catalogue: %v", err)
	}

	client := gateway.NewClient(gateway.Config{
		BaseURL:     os.Getenv("LLM_BASE_URL"),
		APIKey:      os.Getenv("TOGETHER_API_KEY"),
		Model:       os.Getenv("LLM_MODEL"),
		VisionModel: os.Getenv("LLM_VISION_MODEL"),
		Logger:      logger,
	})

	composer := prompt.NewComposer(cat, *jurisdiction)
	runner := defense.NewLLMStageRunner(client, composer, logger)
	pipeline := defense.NewPipeline(runner, logger, defense.WithProgress(func(stage, status string) {
		logger.Info("stage progress", zap.String("stage", stage), zap.String("status", status))
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := pipeline.Run(ctx, defense.RunRequest{
		LeaseID:   id,
		Lease:     lease,
		Evidence:  led,
		UserQuery: *query,
		Tenant:    prompt.TenantInfo{Name: *tenantName, Location: *tenantLocation},
	})
	if err != nil {
		if stage := defense.StageNameFromError(err); stage != "" {
			log.Fatalf("pipeline failed at %s stage: %v", stage, err)
		}
		log.Fatalf("pipeline failed: %v", err)
	}

	if err := writeResult(*outputPath, res); err != nil {
		log.Fatalf("write result: %v", err)
	}
	logger.Info("pipeline complete",
		zap.String("leaseId", res.LeaseID),
		zap.String("mode", string(res.Metadata.Mode)))
}

func readLease(path string) (*ledger.LeaseData, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lease ledger.LeaseData
	if err := json.Unmarshal(b, &lease); err != nil {
		return nil, err
	}
	return &lease, nil
}

func loadCatalogue(path string) (*prompt.Catalogue, error) {
	if path == "" {
		return prompt.LoadCatalogue()
	}
	return prompt.LoadCatalogueFile(path)
}

func writeResult(path string, res *defense.RunResult) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
