package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/etherloops/ether-backend/pkg/config"
)

func TestNormalizeTables(t *testing.T) {
	tables, err := normalizeTables([]TableSpec{{Name: " marketplace_events ", PartitionField: "occurred_at"}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tables[0].Name != "marketplace_events" {
		t.Fatalf("expected trimmed name, got %q", tables[0].Name)
	}
	if _, err := normalizeTables(nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table error, got %v", err)
	}
	if _, err := normalizeTables([]TableSpec{{Name: "  "}}); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table error for blank name, got %v", err)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	spec := TableSpec{Name: "t"}
	if _, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "ether"}, nil, spec); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{}, nil, spec); !errors.Is(err, errDatasetRequired) {
		t.Fatalf("expected dataset error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "ether"}, nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table error, got %v", err)
	}
}

func TestTableMetadataPartitionsByDay(t *testing.T) {
	schema := bigquery.Schema{{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true}}
	md := tableMetadata(TableSpec{Name: "marketplace_events", Schema: schema, PartitionField: "occurred_at"})
	if md.TimePartitioning == nil || md.TimePartitioning.Field != "occurred_at" || md.TimePartitioning.Type != bigquery.DayPartitioningType {
		t.Fatalf("unexpected partitioning %+v", md.TimePartitioning)
	}
	if tableMetadata(TableSpec{Name: "raw", Schema: schema}).TimePartitioning != nil {
		t.Fatal("expected no partitioning without a field")
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "t", []any{1}); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized on ping, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})) {
		t.Fatal("expected wrapped 404 to be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 is not a not-found error")
	}
}
