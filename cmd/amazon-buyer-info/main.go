package main

import (
	"context"
	"log"

	"sellerdash/internal/bootstrap"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env, err := bootstrap.Load(context.Background(), "amazon-buyer-info")
	if err != nil {
		log.Fatalf("amazon-buyer-info: %v", err)
	}
	defer func() { _ = env.Log.Sync() }()

	lambda.Start(env.App.BuyerInfo)
}
