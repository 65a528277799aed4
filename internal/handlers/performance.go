package handlers

import (
	"context"
	"net/http"

	"sellerdash/internal/domain"
	"sellerdash/internal/pipeline"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

type performanceRequest struct {
	Since     string `json:"since"`
	Until     string `json:"until"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Level     string `json:"level"`
	Shop      string `json:"shop"`
}

func (a *App) parsePerformance(req events.APIGatewayV2HTTPRequest) (pipeline.Request, error) {
	q := req.QueryStringParameters
	pr := performanceRequest{
		Since:     q["since"],
		Until:     q["until"],
		StartDate: q["startDate"],
		EndDate:   q["endDate"],
		Level:     q["level"],
	}
	if req.RequestContext.HTTP.Method == http.MethodPost {
		if err := decodeBody(req, &pr); err != nil {
			return pipeline.Request{}, err
		}
	}
	since, until := pr.Since, pr.Until
	if since == "" {
		since = pr.StartDate
	}
	if until == "" {
		until = pr.EndDate
	}

	r, err := a.dateRange(since, until, 7)
	if err != nil {
		return pipeline.Request{}, err
	}
	level, err := domain.ParseAdLevel(pr.Level)
	if err != nil {
		return pipeline.Request{}, badRequest("%v", err)
	}
	return pipeline.Request{Range: r, Level: level}, nil
}

func (a *App) runReport(ctx context.Context, req events.APIGatewayV2HTTPRequest) (*pipeline.Report, error) {
	if _, err := userSub(req); err != nil {
		return nil, err
	}
	preq, err := a.parsePerformance(req)
	if err != nil {
		return nil, err
	}
	if err := a.requireAds(); err != nil {
		return nil, err
	}
	sf, err := a.storefrontFor(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.pipelineFor(sf).Run(ctx, preq)
}

// Performance returns the entity rollup, the daily series and the per-order lines.
func (a *App) Performance(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	report, err := a.runReport(ctx, req)
	if err != nil {
		return fail(log, "performance", err)
	}
	return jsonResp(http.StatusOK, report)
}

// DailyPerformance returns only the daily series.
func (a *App) DailyPerformance(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log := a.log.With(zap.String("request_id", requestID(req)))
	report, err := a.runReport(ctx, req)
	if err != nil {
		return fail(log, "daily performance", err)
	}
	return jsonResp(http.StatusOK, map[string]any{
		"since":      report.Since,
		"until":      report.Until,
		"timeSeries": report.TimeSeries,
	})
}
