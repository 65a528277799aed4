package main

import (
	"context"
	"log"

	"sellerdash/internal/bootstrap"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env, err := bootstrap.Load(context.Background(), "health")
	if err != nil {
		log.Fatalf("health: %v", err)
	}
	defer func() { _ = env.Log.Sync() }()

	lambda.Start(env.App.Health)
}
