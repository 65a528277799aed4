package etl

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type RepairOptions struct {
	Database       string
	Table          string
	Workgroup      string
	OutputLocation string // s3://bucket/prefix/
	MaxWait        time.Duration
	PollInterval   time.Duration
}

type AthenaError struct {
	State            string
	Reason           string
	QueryExecutionID string
}

func (e *AthenaError) Error() string {
	if e.QueryExecutionID != "" {
		return fmt.Sprintf("athena %s: %s (qid=%s)", e.State, e.Reason, e.QueryExecutionID)
	}
	return fmt.Sprintf("athena %s: %s", e.State, e.Reason)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RepairPartitions runs MSCK REPAIR TABLE so Athena sees new dt/shop_id
// partitions, and waits for it to finish.
func RepairPartitions(ctx context.Context, c AthenaAPI, opt RepairOptions) (string, error) {
	if !identifier.MatchString(opt.Table) {
		return "", fmt.Errorf("invalid table name %q", opt.Table)
	}
	if !strings.HasPrefix(opt.OutputLocation, "s3://") {
		return "", fmt.Errorf("athena output must start with s3://, got %q", opt.OutputLocation)
	}
	if opt.Workgroup == "" {
		opt.Workgroup = "primary"
	}
	if opt.MaxWait == 0 {
		opt.MaxWait = 60 * time.Second
	}
	if opt.PollInterval == 0 {
		opt.PollInterval = 2 * time.Second
	}

	start, err := c.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(fmt.Sprintf("MSCK REPAIR TABLE %s", opt.Table)),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(opt.Database),
		},
		WorkGroup: aws.String(opt.Workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(opt.OutputLocation),
		},
	})
	if err != nil {
		return "", fmt.Errorf("athena StartQueryExecution: %w", err)
	}
	qid := aws.ToString(start.QueryExecutionId)

	ctx, cancel := context.WithTimeout(ctx, opt.MaxWait)
	defer cancel()
	ticker := time.NewTicker(opt.PollInterval)
	defer ticker.Stop()
	for {
		out, err := c.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: aws.String(qid)})
		if err != nil {
			return qid, fmt.Errorf("athena GetQueryExecution: %w", err)
		}
		status := out.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return qid, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			return qid, &AthenaError{State: string(status.State), Reason: aws.ToString(status.StateChangeReason), QueryExecutionID: qid}
		}
		select {
		case <-ctx.Done():
			return qid, &AthenaError{State: "TIMEOUT", Reason: "repair did not finish", QueryExecutionID: qid}
		case <-ticker.C:
		}
	}
}
