// Command usergraph-lambda runs usergraph on AWS Lambda.
//
// LAMBDA_HANDLER selects the function:
//
//	api     API Gateway REST (v1) proxy events (default)
//	http    API Gateway HTTP (v2) proxy events
//	stream  DynamoDB Streams events; purges children of removed parents
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/usergraph/gateway"
	"github.com/jacentio/usergraph/internal/app"
	"github.com/jacentio/usergraph/internal/config"
	"github.com/jacentio/usergraph/stream"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("lambda init failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("USERGRAPH_CONFIG"), os.Getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	if err := a.Connect(ctx); err != nil {
		return err
	}

	switch mode := os.Getenv("LAMBDA_HANDLER"); mode {
	case "", "api":
		lambda.Start(gateway.NewHandler(a.Handler(), logger).HandleREST)
	case "http":
		lambda.Start(gateway.NewHandler(a.Handler(), logger).HandleHTTP)
	case "stream":
		h := stream.NewHandler(a.Service(), a.Registry(), cfg.Store.TablePrefix, logger)
		lambda.Start(h.HandleCascadeDelete)
	default:
		return fmt.Errorf("unknown LAMBDA_HANDLER %q", mode)
	}
	return nil
}
