package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

const ssmPrefix = "ssm:"

type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMResolver reads SecureString parameters from Parameter Store.
type SSMResolver struct {
	client SSMAPI
}

func NewSSMResolver(client SSMAPI) *SSMResolver {
	return &SSMResolver{client: client}
}

func (r *SSMResolver) Resolve(ctx context.Context, name string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %s has no value", name)
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}

type reader struct {
	ctx     context.Context
	secrets SecretResolver
	err     error
}

// secret reads key and resolves an ssm: reference. The first failure sticks.
func (r *reader) secret(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if !strings.HasPrefix(v, ssmPrefix) || r.err != nil {
		return v
	}
	name := strings.TrimPrefix(v, ssmPrefix)
	if r.secrets == nil {
		r.err = fmt.Errorf("%w: %s references %s but no secret resolver is configured", ErrMissingConfig, key, name)
		return ""
	}
	resolved, err := r.secrets.Resolve(r.ctx, name)
	if err != nil {
		r.err = fmt.Errorf("resolve %s: %w", key, err)
		return ""
	}
	return resolved
}
