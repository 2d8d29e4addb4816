package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pauamargant/leaseCare-lauzhack/internal/compare"
	"github.com/pauamargant/leaseCare-lauzhack/internal/gateway"
	"github.com/pauamargant/leaseCare-lauzhack/internal/ledger"
	"github.com/pauamargant/leaseCare-lauzhack/internal/storage"
)

// evidence-capture stores one batch of photos for an inspection item and
// records it in the evidence ledger. At checkout it can run the damage
// comparison against the intake photos and attach the analysis.
func main() {
	dbPath := flag.String("db", "leasecare.db", "Path to evidence ledger SQLite database")
	leasePath := flag.String("lease", "", "Optional analyzed lease JSON to seed the inspection checklist")
	leaseID := flag.String("lease-id", "", "Lease identifier")
	itemID := flag.String("item", "", "Inspection item ID")
	phase := flag.String("phase", "intake", "Capture phase: intake or checkout")
	notes := flag.String("notes", "", "Optional capture notes")
	analyze := flag.Bool("analyze", false, "Run the damage comparison after a checkout capture")
	flag.Parse()

	if *leaseID == "" {
		log.Fatal("missing required -lease-id")
	}
	if *itemID == "" {
		log.Fatal("missing required -item")
	}
	files := flag.Args()
	if len(files) == 0 {
		log.Fatal("no photo files given")
	}
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	var items []ledger.InspectionItem
	if *leasePath != "" {
		lease, err := readLease(*leasePath)
		if err != nil {
			log.Fatalf("read lease: %v", err)
		}
		items = lease.InspectionItems
	}

	led, err := ledger.NewSQLiteLedger(*dbPath, *leaseID, items)
	if err != nil {
		log.Fatalf("open evidence ledger: %v", err)
	}
	defer led.Close()

	store, err := storage.NewFromEnv()
	if err != nil {
		log.Fatalf("init photo storage: %v", err)
	}

	ctx := context.Background()
	refs, err := uploadBatch(ctx, store, logger, *leaseID, *itemID, files)
	if err != nil {
		log.Fatalf("upload photos: %v", err)
	}

	urls := make([]string, len(refs))
	for i, ref := range refs {
		urls[i] = store.URL(ref)
	}

	ph := ledger.Phase(strings.ToLower(*phase))
	if _, err := led.RecordEvidence(*itemID, ph, urls, *notes); err != nil {
		log.Fatalf("record evidence: %v", err)
	}
	logger.Info("evidence recorded",
		zap.String("itemId", *itemID),
		zap.String("phase", string(ph)),
		zap.Int("photos", len(urls)))

	if *analyze && ph == ledger.PhaseCheckout {
		runComparison(ctx, led, logger, *itemID)
	}
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

func uploadBatch(ctx context.Context, store storage.PhotoStore, logger *zap.Logger, leaseID, itemID string, files []string) ([]string, error) {
	photos := make([]storage.Photo, 0, len(files))
	opened := make([]*os.File, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		opened = append(opened, f)
		photos = append(photos, storage.Photo{Filename: filepath.Base(path), Data: f})
	}
	return storage.NewBatchUploader(store, logger).Upload(ctx, leaseID, itemID, photos)
}

func runComparison(ctx context.Context, led *ledger.SQLiteLedger, logger *zap.Logger, itemID string) {
	intake := led.Record(itemID, ledger.PhaseIntake)
	checkout := led.Record(itemID, ledger.PhaseCheckout)
	if intake == nil || len(intake.Photos) == 0 {
		logger.Warn("no intake photos, skipping comparison", zap.String("itemId", itemID))
		return
	}

	client := gateway.NewClient(gateway.Config{
		BaseURL:     os.Getenv("LLM_BASE_URL"),
		APIKey:      os.Getenv("TOGETHER_API_KEY"),
		Model:       os.Getenv("LLM_MODEL"),
		VisionModel: os.Getenv("LLM_VISION_MODEL"),
		Logger:      logger,
	})
	engine := compare.NewEngine(client, logger)

	itemName := itemID
	for _, it := range led.Items() {
		if it.ID == itemID {
			itemName = it.Name
		}
	}

	verdict := engine.QuickMatch(ctx, itemName, intake.Photos[0], checkout.Photos[len(checkout.Photos)-1])
	if verdict.Recommendation == "retake" {
		logger.Warn("checkout photo does not match the intake location",
			zap.String("reason", verdict.Reason))
	}

	analysis := engine.FullComparison(ctx, itemName, intake.Photos, checkout.Photos)
	if err := led.AttachAnalysis(itemID, analysis); err != nil {
		log.Fatalf("attach analysis: %v", err)
	}
	logger.Info("damage analysis attached",
		zap.String("itemId", itemID),
		zap.String("severity", string(analysis.Severity)),
		zap.Bool("tenantLiable", analysis.TenantLiable))
}
