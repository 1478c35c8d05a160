package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/salesmail-ingest/internal/aws"
	"github.com/imrishuroy/salesmail-ingest/internal/bootstrap"
	"github.com/imrishuroy/salesmail-ingest/internal/config"
	"github.com/imrishuroy/salesmail-ingest/internal/handlers"
	"github.com/imrishuroy/salesmail-ingest/internal/logger"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.ServiceName+"-api", cfg.LogLevel)

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to init aws clients")
	}
	app, err := bootstrap.New(ctx, cfg, clients)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("bootstrap")
	}
	defer app.Close()

	r := setupRouter(handlers.HandlerConfig{
		Runner:    app.Controller,
		Extractor: app.Extractor,
		Validator: app.Validator,
		Messages:  app.Mailbox,
		Records:   app.Records,
	})

	// RUN_LOCAL serves plain HTTP for development.
	if cfg.RunLocal {
		addr := ":8080"
		logger.Logger.Info().Str("addr", addr).Msg("running local server")
		if err := r.Run(addr); err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to run local server")
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
