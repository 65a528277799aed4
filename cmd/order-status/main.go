package main

import (
	"context"
	"log"

	"sellerdash/internal/bootstrap"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env, err := bootstrap.Load(context.Background(), "order-status")
	if err != nil {
		log.Fatalf("order-status: %v", err)
	}
	defer func() { _ = env.Log.Sync() }()

	lambda.Start(env.App.UpdateStatus)
}
