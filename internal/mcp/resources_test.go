package mcp

import (
	"context"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestResourcesRegistryAndGroups(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _, _ := testServer(t)
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	res, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "rules://registry"})
	if err != nil {
		t.Fatalf("read registry resource failed: %v", err)
	}
	var registryOut rulesListOutput
	if err := decodeResourceJSON(res, &registryOut); err != nil {
		t.Fatalf("decode registry resource: %v", err)
	}
	if len(registryOut.Rules) == 0 {
		t.Fatal("expected rules in registry resource")
	}
	if len(registryOut.Groups) == 0 {
		t.Fatal("expected groups in registry resource")
	}

	res, err = session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "rules://groups"})
	if err != nil {
		t.Fatalf("read groups resource failed: %v", err)
	}
	if len(res.Contents) == 0 || res.Contents[0].Text == "" {
		t.Fatal("expected group metadata payload")
	}
}

func TestResourcesPersonaDefaults(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _, _ := testServer(t)
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	res, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "personas://defaults"})
	if err != nil {
		t.Fatalf("read personas resource failed: %v", err)
	}
	var defaults personaDefaults
	if err := decodeResourceJSON(res, &defaults); err != nil {
		t.Fatalf("decode personas resource: %v", err)
	}
	if defaults.PersonaMinSavings["gig_worker"] != 0.25 {
		t.Fatalf("unexpected gig_worker min savings: %v", defaults.PersonaMinSavings)
	}
	if _, ok := defaults.EmergencyFundMonths["default"]; !ok {
		t.Fatal("expected a default emergency fund bucket")
	}
}

func TestResourcesLatestReportTemplate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _, _ := testServer(t)
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	res, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "reports://latest?user=u-1"})
	if err != nil {
		t.Fatalf("read latest report failed: %v", err)
	}
	var out reportsGetLatestOutput
	if err := decodeResourceJSON(res, &out); err != nil {
		t.Fatalf("decode latest report: %v", err)
	}
	if out.Report == nil || out.Report.Metadata.UserID != "u-1" {
		t.Fatalf("unexpected report payload: %+v", out.Report)
	}

	res, err = session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "reports://latest?user=u-1&month=2025-06"})
	if err != nil {
		t.Fatalf("read monthly report failed: %v", err)
	}
	if err := decodeResourceJSON(res, &out); err != nil {
		t.Fatalf("decode monthly report: %v", err)
	}
	if out.Report == nil || out.Report.Metadata.Month != "2025-06" {
		t.Fatalf("unexpected monthly report payload: %+v", out.Report)
	}

	if _, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "reports://latest"}); err == nil {
		t.Fatal("expected error for missing user param")
	}
}
