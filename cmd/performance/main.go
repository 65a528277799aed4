package main

import (
	"context"
	"log"

	"sellerdash/internal/bootstrap"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env, err := bootstrap.Load(context.Background(), "performance")
	if err != nil {
		log.Fatalf("performance: %v", err)
	}
	defer func() { _ = env.Log.Sync() }()

	lambda.Start(env.App.Performance)
}
