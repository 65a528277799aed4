package main

import (
	"context"
	"log"

	"sellerdash/internal/bootstrap"
	"sellerdash/internal/etl"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func main() {
	ctx := context.Background()
	env, err := bootstrap.Load(ctx, "etl-daily-performance")
	if err != nil {
		log.Fatalf("etl-daily-performance: %v", err)
	}
	defer func() { _ = env.Log.Sync() }()

	loc, err := env.Config.Location()
	if err != nil {
		log.Fatalf("etl-daily-performance: %v", err)
	}
	exp := env.Config.Export
	alerts := etl.NewAlerter(sns.NewFromConfig(env.AWS), exp.AlertsTopicARN, exp.AlertsEmail, exp.RTOAlertThreshold)

	h := etl.NewExporter(
		env.App.ExportTargets,
		s3.NewFromConfig(env.AWS),
		athena.NewFromConfig(env.AWS),
		glue.NewFromConfig(env.AWS),
		alerts,
		exp,
		loc,
		env.Log,
	)
	lambda.Start(h.Handle)
}
