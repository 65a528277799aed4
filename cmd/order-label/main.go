package main

import (
	"context"
	"log"

	"sellerdash/internal/bootstrap"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env, err := bootstrap.Load(context.Background(), "order-label")
	if err != nil {
		log.Fatalf("order-label: %v", err)
	}
	defer func() { _ = env.Log.Sync() }()

	lambda.Start(env.App.Label)
}
