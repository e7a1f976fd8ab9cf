package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"finmentor/internal/domain"
	"finmentor/internal/engine"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, reports ReportReader, registry RegistryReader, cfg engine.Config) {
	server.AddResource(&mcp.Resource{
		URI:         "rules://registry",
		Name:        "rules-registry",
		Description: "Full declarative rule registry the engine evaluates",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		if registry == nil {
			return nil, fmt.Errorf("rule registry unavailable")
		}
		return jsonResource(req.Params.URI, rulesListOutput{Groups: registry.Groups(), Rules: registry.Rules()})
	})

	server.AddResource(&mcp.Resource{
		URI:         "rules://groups",
		Name:        "rules-groups",
		Description: "Rule group metadata keyed by bucket name",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		if registry == nil {
			return nil, fmt.Errorf("rule registry unavailable")
		}
		return jsonResource(req.Params.URI, registry.Groups())
	})

	server.AddResource(&mcp.Resource{
		URI:         "personas://defaults",
		Name:        "personas-defaults",
		Description: "Per-persona threshold tables used during evaluation",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		return jsonResource(req.Params.URI, personaDefaults{
			Currency:            cfg.Currency,
			PersonaMinSavings:   cfg.PersonaMinSavings,
			VolatilityThreshold: cfg.VolatilityThreshold,
			EmergencyFundMonths: cfg.EmergencyFundMonths,
			BufferMonthsWarning: cfg.BufferMonthsWarning,
		})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "reports://latest{?user,month}",
		Name:        "reports-latest",
		Description: "Stored risk report for a user; optional month query param",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if reports == nil {
			return nil, fmt.Errorf("report store unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "reports" || parsed.Host != "latest" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		user, err := normalizeUser(parsed.Query().Get("user"))
		if err != nil {
			return nil, err
		}
		month, err := normalizeMonth(parsed.Query().Get("month"))
		if err != nil {
			return nil, err
		}

		var report *domain.Report
		if month != "" {
			report, err = reports.ReportForMonth(ctx, user, month)
		} else {
			report, err = reports.LatestReport(ctx, user)
		}
		if err != nil {
			return nil, err
		}
		if report == nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return jsonResource(req.Params.URI, reportsGetLatestOutput{Report: report})
	})
}

type personaDefaults struct {
	Currency            string             `json:"currency"`
	PersonaMinSavings   map[string]float64 `json:"persona_min_savings"`
	VolatilityThreshold map[string]float64 `json:"volatility_threshold"`
	EmergencyFundMonths map[string]float64 `json:"emergency_fund_months"`
	BufferMonthsWarning map[string]float64 `json:"buffer_months_warning"`
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
