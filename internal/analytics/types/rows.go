package types

import (
	"math/big"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// MarketplaceEventRow mirrors the marketplace_events BigQuery schema.
// Amount is a NUMERIC column.
type MarketplaceEventRow struct {
	EventID     string             `bigquery:"event_id"`
	EventType   string             `bigquery:"event_type"`
	AggregateID string             `bigquery:"aggregate_id"`
	OccurredAt  time.Time          `bigquery:"occurred_at"`
	BuyerID     *string            `bigquery:"buyer_id"`
	VendorID    *string            `bigquery:"vendor_id"`
	Amount      *big.Rat           `bigquery:"amount"`
	Payload     cbigquery.NullJSON `bigquery:"payload"`
}

// MarketplaceEventsSchema is used when the worker creates the table itself.
var MarketplaceEventsSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "aggregate_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
	{Name: "buyer_id", Type: cbigquery.StringFieldType},
	{Name: "vendor_id", Type: cbigquery.StringFieldType},
	{Name: "amount", Type: cbigquery.NumericFieldType},
	{Name: "payload", Type: cbigquery.JSONFieldType},
}
