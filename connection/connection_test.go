package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/gateway/mock"
	"github.com/GoCodeAlone/metacat/notify"
)

func TestStartCase(t *testing.T) {
	cases := map[string]string{
		"databaseServices":  "Database Services",
		"mlmodelServices":   "Mlmodel Services",
		"metadataServices":  "Metadata Services",
		"pipeline_services": "Pipeline Services",
		"HTTPServer":        "HTTP Server",
		"dbtCloudAPI":       "Dbt Cloud API",
		"glue2Services":     "Glue 2 Services",
		"":                  "",
	}
	for in, want := range cases {
		if got := StartCase(in); got != want {
			t.Errorf("StartCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func seed() *mock.Gateway {
	gw := mock.New()
	gw.AddService("databaseServices", catalog.Service{
		Name:        "sample_data",
		ServiceType: "BigQuery",
		Description: "warehouse",
		Owner:       &catalog.EntityReference{ID: "u-1", Type: "user", Name: "aaron"},
		Connection:  &catalog.Connection{Config: map[string]any{"hostPort": "localhost:3306"}},
	})
	gw.AddService(MetadataCategory, catalog.Service{Name: BuiltinService, ServiceType: "OpenMetadata"})
	return gw
}

func TestPage_LoadBuildsBreadcrumb(t *testing.T) {
	p := New(seed(), nil, nil)
	if err := p.Load(context.Background(), "databaseServices", "sample_data"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	v := p.View()
	want := []catalog.Breadcrumb{
		{Name: "Database Services", URL: "/settings/services/databases"},
		{Name: "sample_data", URL: "/service/databaseServices/sample_data", ImageSrc: "/images/services/bigquery.svg"},
		{Name: "Edit Connection", Active: true},
	}
	if diff := cmp.Diff(want, v.Breadcrumb); diff != "" {
		t.Errorf("breadcrumb (-want +got):\n%s", diff)
	}
	if v.Loading || v.Missing || v.TestConnectionDisabled {
		t.Errorf("flags = %+v", v)
	}
	if v.Heading != "Edit sample_data Service Connection" {
		t.Errorf("Heading = %q", v.Heading)
	}
}

func TestPage_BuiltinMetadataService(t *testing.T) {
	p := New(seed(), nil, nil)
	if err := p.Load(context.Background(), MetadataCategory, BuiltinService); err != nil {
		t.Fatal(err)
	}
	if !p.View().TestConnectionDisabled {
		t.Error("test connection should be disabled for the built-in metadata service")
	}
}

func TestPage_LoadMissing(t *testing.T) {
	center := notify.NewCenter(nil)
	p := New(seed(), center, nil)

	err := p.Load(context.Background(), "databaseServices", "nope")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	v := p.View()
	if !v.Missing || v.ErrorMessage != "databaseServices instance for nope not found" {
		t.Errorf("view = %+v", v)
	}
	if len(center.Active()) != 0 {
		t.Error("a missing service shows the placeholder, not a toast")
	}
}

func TestPage_LoadFailureToasts(t *testing.T) {
	gw := seed()
	gw.Errors["ServiceByFQN"] = errors.New("connection reset")
	center := notify.NewCenter(nil)
	p := New(gw, center, nil)

	if err := p.Load(context.Background(), "databaseServices", "sample_data"); err == nil {
		t.Fatal("expected error")
	}
	active := center.Active()
	if len(active) != 1 || active[0].Message != "Error while fetching service details!" {
		t.Errorf("toasts = %+v", active)
	}
	if p.View().Missing {
		t.Error("transport failure is not a missing service")
	}
}

// ownerless answers updates without the owner field.
type ownerless struct {
	*mock.Gateway
	sent *catalog.Service
}

func (o *ownerless) UpdateService(ctx context.Context, category string, svc *catalog.Service) (*catalog.Service, error) {
	o.sent = svc
	res, err := o.Gateway.UpdateService(ctx, category, svc)
	if res != nil {
		res.Owner = nil
	}
	return res, err
}

func TestPage_UpdateConfigKeepsOwner(t *testing.T) {
	gw := &ownerless{Gateway: seed()}
	p := New(gw, nil, nil)
	ctx := context.Background()
	if err := p.Load(ctx, "databaseServices", "sample_data"); err != nil {
		t.Fatal(err)
	}

	cfg := map[string]any{"hostPort": "db:3306", "username": "svc"}
	if err := p.UpdateConfig(ctx, cfg); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	if gw.sent.Name != "sample_data" || gw.sent.ServiceType != "BigQuery" || gw.sent.Description != "warehouse" {
		t.Errorf("request = %+v", gw.sent)
	}
	if diff := cmp.Diff(cfg, gw.sent.Connection.Config); diff != "" {
		t.Errorf("sent config (-want +got):\n%s", diff)
	}

	v := p.View()
	if v.Service.Owner == nil || v.Service.Owner.Name != "aaron" {
		t.Errorf("owner = %+v, want previous owner kept", v.Service.Owner)
	}
	if v.Service.Connection.Config["hostPort"] != "db:3306" {
		t.Errorf("config = %+v", v.Service.Connection.Config)
	}
}

func TestPage_UpdateConfigEmptyResponse(t *testing.T) {
	gw := seed()
	center := notify.NewCenter(nil)
	p := New(gw, center, nil)
	ctx := context.Background()
	if err := p.Load(ctx, "databaseServices", "sample_data"); err != nil {
		t.Fatal(err)
	}
	gw.EmptyResponses["UpdateService"] = true

	if err := p.UpdateConfig(ctx, map[string]any{"hostPort": "x"}); !errors.Is(err, catalog.ErrUnexpectedResponse) {
		t.Fatalf("err = %v", err)
	}
	active := center.Active()
	if len(active) != 1 || active[0].Message != "Error while updating service config" {
		t.Errorf("toasts = %+v", active)
	}
	if p.View().Service.Connection.Config["hostPort"] != "localhost:3306" {
		t.Error("failed update must keep the loaded config")
	}
}
