// Package bootstrap assembles configuration, logging and clients for the mains.
package bootstrap

import (
	"context"
	"fmt"

	"sellerdash/internal/config"
	"sellerdash/internal/handlers"
	"sellerdash/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"
)

type Env struct {
	AWS    aws.Config
	Config *config.Config
	Log    *zap.Logger
	App    *handlers.App
}

// Load reads .env (outside production), the AWS default config and the app
// configuration with ssm: references resolved, then builds the handler App.
func Load(ctx context.Context, name string) (*Env, error) {
	config.LoadDotEnv()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	cfg, err := config.Load(ctx, config.NewSSMResolver(ssm.NewFromConfig(awsCfg)))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.MustNew(cfg.Log.Level, cfg.Log.Format).Named(name)

	app, err := handlers.NewApp(ctx, awsCfg, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	return &Env{AWS: awsCfg, Config: cfg, Log: log, App: app}, nil
}
