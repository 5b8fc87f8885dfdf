package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	directoryadapter "measurehub_backend/internal/directory/adapter"
	directoryrepo "measurehub_backend/internal/directory/repository"
	directoryservice "measurehub_backend/internal/directory/service"
	"measurehub_backend/internal/exports"
	"measurehub_backend/internal/measurements/domain"
	measurementsrepo "measurehub_backend/internal/measurements/repository"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/db"
	"measurehub_backend/platform/logger"
)

func main() {
	out := flag.String("out", "", "output path for the xlsx file (default measurements_<timestamp>.xlsx)")
	status := flag.String("status", "", "only export jobs with this status (assigned|confirmed|completed|cancelled)")
	measurer := flag.Int64("measurer", 0, "only export jobs assigned to this measurer id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting measurement export")

	var filter exports.Filter
	if *status != "" {
		st := domain.Status(*status)
		if !st.Valid() {
			log.Error("unknown status", "status", *status)
			panic("unknown status: " + *status)
		}
		filter.Status = &st
	}
	if *measurer > 0 {
		filter.MeasurerID = measurer
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	directoryService := directoryservice.New(directoryrepo.New(pool), log)
	names := directoryadapter.NewUserNameLookup(directoryService)
	exporter := exports.NewExporter(measurementsrepo.New(pool), names, log)

	f, rows, err := exporter.Workbook(ctx, filter)
	if err != nil {
		log.Error("failed to build workbook", "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	path := *out
	if path == "" {
		path = fmt.Sprintf("measurements_%s.xlsx", time.Now().Format("20060102_150405"))
	}

	if err := f.SaveAs(path); err != nil {
		log.Error("failed to write workbook", "path", path, "error", err)
		return
	}

	log.Info("export written", "path", path, "rows", rows)
}
