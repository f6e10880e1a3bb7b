package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/rpattn/scdsync/internal/config"
	"github.com/rpattn/scdsync/internal/db"
	"github.com/rpattn/scdsync/internal/pipeline"
	"github.com/rpattn/scdsync/internal/report"
	"github.com/rpattn/scdsync/internal/scd"
	"github.com/rpattn/scdsync/internal/source"
	"github.com/rpattn/scdsync/internal/transform"
	"github.com/rpattn/scdsync/internal/warehouse"
)

func main() {
	date := flag.String("date", "", "run date (e.g. 2024-05-01), names the report workbook")
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	if *date == "" {
		log.Fatal("--date is required")
	}

	// run owns the deferred resource closes; exiting from main keeps
	// them from being skipped by os.Exit.
	os.Exit(run(*date, *configPath))
}

func run(date, configPath string) int {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	conn, err := db.NewConnection(ctx, cfg.Warehouse)
	if err != nil {
		log.Printf("Failed to connect to warehouse: %v", err)
		return 1
	}
	defer conn.Close()

	reader, err := source.Open(cfg.SourcePath)
	if err != nil {
		log.Printf("Failed to open source database: %v", err)
		return 1
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("Failed to close source database: %v", err)
		}
	}()

	log.Println("ETL is starting")

	users, err := reader.Users(ctx)
	if err != nil {
		log.Printf("Failed to extract users: %v", err)
		return 1
	}
	transactions, err := reader.Transactions(ctx)
	if err != nil {
		log.Printf("Failed to extract transactions: %v", err)
		return 1
	}
	purchases, err := reader.MembershipPurchases(ctx)
	if err != nil {
		log.Printf("Failed to extract membership purchases: %v", err)
		return 1
	}
	activities, err := reader.UserActivities(ctx)
	if err != nil {
		log.Printf("Failed to extract user activity: %v", err)
		return 1
	}
	rates, err := reader.MDRRates(ctx)
	if err != nil {
		log.Printf("Failed to extract mdr rates: %v", err)
		return 1
	}

	profiles := transform.BuildUserProfiles(users, transactions, purchases, activities)
	summaries := transform.BuildTransactionSummaries(transactions, purchases, rates)

	profileRecords := make([]scd.Record, len(profiles))
	for i, profile := range profiles {
		profileRecords[i] = profile.Record()
	}
	summaryRecords := make([]scd.Record, len(summaries))
	for i, summary := range summaries {
		summaryRecords[i] = summary.Record()
	}

	runner := pipeline.NewRunner(warehouse.NewStore(conn), report.NewWriter(cfg.ReportDir))
	results := runner.Run(ctx, date, []pipeline.Table{
		{Schema: transform.UserProfilingTable, Candidate: profileRecords},
		{Schema: transform.TransactionSummaryTable, Candidate: summaryRecords},
	})

	if pipeline.Failed(results) {
		return 1
	}
	log.Println("ETL is finished")
	return 0
}
