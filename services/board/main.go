// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/FlightBoard/pkg/logging"
	"github.com/AleutianAI/FlightBoard/services/board/aggregate"
	"github.com/AleutianAI/FlightBoard/services/board/githubapp"
	"github.com/AleutianAI/FlightBoard/services/board/routes"
	"github.com/AleutianAI/FlightBoard/services/board/secrets"
	"github.com/AleutianAI/FlightBoard/services/board/store"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	boardmw "github.com/AleutianAI/FlightBoard/services/board/middleware"
)

// appKeySecretName is the secret holding the GitHub App private key PEM.
const appKeySecretName = "flightboard_github_app_key"

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("board-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("BOARD_PORT")
	if port == "" {
		port = "12280"
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "board",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer (skipped when no collector is configured) ---
	if otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); otelEndpoint != "" {
		cleanup, err := initTracer(otelEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Warn("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
	}

	bucket := os.Getenv("BOARD_GCS_BUCKET")
	if bucket == "" {
		log.Fatal("BOARD_GCS_BUCKET must be set")
	}

	ctx := context.Background()
	blobs, err := store.NewGCSBlobStore(ctx, bucket, os.Getenv("BOARD_GCS_SA_KEY_PATH"))
	if err != nil {
		log.Fatalf("failed to create the blob store: %v", err)
	}
	cfgStore := store.NewConfigStore(blobs)

	appID := os.Getenv("BOARD_GITHUB_APP_ID")
	if appID == "" {
		log.Fatal("BOARD_GITHUB_APP_ID must be set")
	}
	secretProvider := secrets.NewFileProvider(os.Getenv("BOARD_SECRETS_DIR"))
	appKey, err := secretProvider.GetSecret(appKeySecretName)
	if err != nil {
		log.Fatalf("failed to load the GitHub App key: %v", err)
	}
	github := githubapp.NewClient(appID, secrets.Seal(appKey))

	agg := aggregate.New(cfgStore, github)

	// Verification on add is best-effort and can be switched off for
	// environments where the upstream is flaky or firewalled.
	var verifier store.WorkflowVerifier = github
	verifySetting := strings.ToLower(os.Getenv("BOARD_VERIFY_ON_ADD"))
	if verifySetting == "false" || verifySetting == "0" {
		slog.Warn("add-time workflow verification disabled")
		verifier = nil
	}

	routes.RegisterValidators()
	router := gin.Default()
	router.Use(otelgin.Middleware("board-service"))
	router.Use(boardmw.Metrics())
	routes.SetupRoutes(router, cfgStore, agg, verifier)

	slog.Info("board service listening", "port", port, "bucket", bucket)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
