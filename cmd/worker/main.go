package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/salesmail-ingest/internal/aws"
	"github.com/imrishuroy/salesmail-ingest/internal/bootstrap"
	"github.com/imrishuroy/salesmail-ingest/internal/config"
	"github.com/imrishuroy/salesmail-ingest/internal/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.ServiceName+"-worker", cfg.LogLevel)

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to init aws clients")
	}
	app, err := bootstrap.New(ctx, cfg, clients)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("bootstrap")
	}
	defer app.Close()

	var metrics RunMetrics
	if app.Metrics != nil {
		metrics = app.Metrics
	}
	var continuer Continuer
	if app.Publisher != nil {
		continuer = app.Publisher
	}
	p := NewProcessor(app.Controller, metrics, continuer, cfg.ContinuationDelay)

	// RUN_LOCAL runs a single scan and prints the result.
	if cfg.RunLocal {
		res, err := p.Handle(ctx, nil)
		out, _ := json.MarshalIndent(res, "", "  ")
		_, _ = os.Stdout.Write(append(out, '\n'))
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("local run failed")
		}
		return
	}

	lambda.Start(p.Handle)
}
