package etl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
)

type GlueAPI interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
}

// TableLocation reads the storage location of a Glue table.
func TableLocation(ctx context.Context, c GlueAPI, database, table string) (string, error) {
	out, err := c.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		return "", fmt.Errorf("glue GetTable %s.%s: %w", database, table, err)
	}
	if out.Table == nil || out.Table.StorageDescriptor == nil {
		return "", fmt.Errorf("glue table %s.%s has no storage descriptor", database, table)
	}
	loc := aws.ToString(out.Table.StorageDescriptor.Location)
	if loc == "" {
		return "", fmt.Errorf("glue table %s.%s has no location", database, table)
	}
	return loc, nil
}

// ParseS3URI splits s3://bucket/some/prefix/ into bucket and prefix.
func ParseS3URI(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "s3" && u.Scheme != "s3a") || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 location: %q", uri)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
