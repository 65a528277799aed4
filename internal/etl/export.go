// Package etl exports daily performance to the analytics lake.
package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sellerdash/internal/config"
	"sellerdash/internal/domain"
	"sellerdash/internal/pipeline"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"
)

// DailyPerformanceRow matches the Glue table columns. dt and shop_id are partitions.
type DailyPerformanceRow struct {
	ShopID           string  `parquet:"name=merchant_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MetricDate       string  `parquet:"name=metric_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Spend            float64 `parquet:"name=spend, type=DOUBLE"`
	Revenue          float64 `parquet:"name=revenue, type=DOUBLE"`
	TotalOrders      int64   `parquet:"name=total_orders, type=INT64"`
	DeliveredOrders  int64   `parquet:"name=delivered_orders, type=INT64"`
	CancelledOrders  int64   `parquet:"name=cancelled_orders, type=INT64"`
	RTOOrders        int64   `parquet:"name=rto_orders, type=INT64"`
	InTransitOrders  int64   `parquet:"name=in_transit_orders, type=INT64"`
	ProcessingOrders int64   `parquet:"name=processing_orders, type=INT64"`
	NewOrders        int64   `parquet:"name=new_orders, type=INT64"`
	ExceptionOrders  int64   `parquet:"name=exception_orders, type=INT64"`
	CPO              float64 `parquet:"name=cpo, type=DOUBLE"`
	ROAS             float64 `parquet:"name=roas, type=DOUBLE"`
	RTOPercentage    float64 `parquet:"name=rto_percentage, type=DOUBLE"`
}

func rowFor(shop string, d *pipeline.DayBucket) DailyPerformanceRow {
	return DailyPerformanceRow{
		ShopID:           shop,
		MetricDate:       d.Date,
		Spend:            d.Spend,
		Revenue:          d.Revenue,
		TotalOrders:      int64(d.TotalOrders),
		DeliveredOrders:  int64(d.DeliveredOrders),
		CancelledOrders:  int64(d.CancelledOrders),
		RTOOrders:        int64(d.RTOOrders),
		InTransitOrders:  int64(d.InTransitOrders),
		ProcessingOrders: int64(d.ProcessingOrders),
		NewOrders:        int64(d.NewOrders),
		ExceptionOrders:  int64(d.ExceptionOrders),
		CPO:              d.CPO,
		ROAS:             d.ROAS,
		RTOPercentage:    d.RTOPercentage,
	}
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Runner produces a report for a range; *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// Target is one shop the export covers.
type Target struct {
	Shop   string
	Runner Runner
}

type Result struct {
	OK       bool     `json:"ok"`
	Shops    int      `json:"shops"`
	DaysBack int      `json:"days_back"`
	Written  int      `json:"written"`
	Bucket   string   `json:"bucket"`
	Prefix   string   `json:"prefix"`
	QueryID  string   `json:"repair_query_id,omitempty"`
	Alerts   int      `json:"alerts"`
	Failed   []string `json:"failed,omitempty"`
}

// Exporter writes one Parquet object per shop and day under
// <prefix>/dt=YYYY-MM-DD/shop_id=<shop>/part-<rand>.parquet.
type Exporter struct {
	Targets func(ctx context.Context) ([]Target, error)
	S3      S3API
	Athena  AthenaAPI
	Glue    GlueAPI
	Alerts  *Alerter
	Cfg     config.ExportConfig
	Loc     *time.Location
	Log     *zap.Logger

	now func() time.Time
}

func NewExporter(targets func(ctx context.Context) ([]Target, error), s3c S3API, ath AthenaAPI, gl GlueAPI, alerts *Alerter, cfg config.ExportConfig, loc *time.Location, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		Targets: targets,
		S3:      s3c,
		Athena:  ath,
		Glue:    gl,
		Alerts:  alerts,
		Cfg:     cfg,
		Loc:     loc,
		Log:     log,
		now:     time.Now,
	}
}

// Handle is triggered by an EventBridge schedule. It covers the last DaysBack
// complete days. A shop whose report fails is skipped and listed in Failed.
func (e *Exporter) Handle(ctx context.Context, _ events.CloudWatchEvent) (Result, error) {
	bucket, prefix, err := e.destination(ctx)
	if err != nil {
		return Result{}, err
	}
	targets, err := e.Targets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list export targets: %w", err)
	}
	r := domain.LastDays(e.now(), e.Cfg.DaysBack, e.Loc)
	res := Result{Shops: len(targets), DaysBack: len(r.Days()), Bucket: bucket, Prefix: prefix}

	for _, t := range targets {
		log := e.Log.With(zap.String("shop", t.Shop))
		report, err := t.Runner.Run(ctx, pipeline.Request{Range: r, Level: domain.LevelAdSet})
		if err != nil {
			log.Error("report failed", zap.Error(err))
			res.Failed = append(res.Failed, t.Shop)
			continue
		}
		for _, day := range report.TimeSeries {
			key := fmt.Sprintf("%sdt=%s/shop_id=%s/part-%s.parquet", withSlash(prefix), day.Date, t.Shop, randHex(8))
			if err := e.writeParquet(ctx, bucket, key, rowFor(t.Shop, day)); err != nil {
				return res, fmt.Errorf("write parquet for shop=%s dt=%s: %w", t.Shop, day.Date, err)
			}
			res.Written++
		}
		if e.Alerts != nil {
			sent, err := e.Alerts.NotifyRTO(ctx, t.Shop, report.TimeSeries)
			if err != nil {
				log.Warn("rto alert failed", zap.Error(err))
			}
			res.Alerts += sent
		}
	}

	if res.Written > 0 && e.Athena != nil && e.Cfg.GlueDatabase != "" && e.Cfg.AthenaOutput != "" {
		qid, err := RepairPartitions(ctx, e.Athena, RepairOptions{
			Database:       e.Cfg.GlueDatabase,
			Table:          e.Cfg.Table,
			Workgroup:      e.Cfg.AthenaWorkgroup,
			OutputLocation: e.Cfg.AthenaOutput,
		})
		if err != nil {
			return res, err
		}
		res.QueryID = qid
	}

	res.OK = len(res.Failed) == 0
	e.Log.Info("export finished",
		zap.Int("shops", res.Shops),
		zap.Int("written", res.Written),
		zap.Int("alerts", res.Alerts),
		zap.Strings("failed", res.Failed))
	return res, nil
}

// destination is ANALYTICS_BUCKET/prefix, or the Glue table location when no
// bucket is configured.
func (e *Exporter) destination(ctx context.Context) (string, string, error) {
	if e.Cfg.Bucket != "" {
		return e.Cfg.Bucket, e.Cfg.Prefix, nil
	}
	if e.Glue == nil || e.Cfg.GlueDatabase == "" {
		return "", "", fmt.Errorf("%w: ANALYTICS_BUCKET or GLUE_DATABASE", config.ErrMissingConfig)
	}
	loc, err := TableLocation(ctx, e.Glue, e.Cfg.GlueDatabase, e.Cfg.Table)
	if err != nil {
		return "", "", err
	}
	return ParseS3URI(loc)
}

// writeParquet encodes a single row through a temp file, as the parquet writer
// needs a seekable target.
func (e *Exporter) writeParquet(ctx context.Context, bucket, key string, row DailyPerformanceRow) error {
	path := filepath.Join(os.TempDir(), "daily_performance_"+randHex(8)+".parquet")
	defer func() { _ = os.Remove(path) }()

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("parquet file writer: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(DailyPerformanceRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.PageSize = 8 * 1024
	if err := pw.Write(row); err != nil {
		_ = pw.WriteStop()
		_ = fw.Close()
		return fmt.Errorf("parquet write row: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read parquet tmp: %w", err)
	}
	_, err = e.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func withSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
