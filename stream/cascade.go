// Package stream provides DynamoDB Streams handlers for cascade operations.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/usergraph/store"
)

// Purger deletes the descendants of a removed parent document.
type Purger interface {
	PurgeChildren(ctx context.Context, collection string, id int64) (int64, error)
}

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	purger      Purger
	registry    *store.Registry
	tablePrefix string
	logger      *slog.Logger
}

// NewHandler creates a new stream handler. tablePrefix maps table names back to
// collections; a nil registry uses store.DefaultRegistry.
func NewHandler(p Purger, registry *store.Registry, tablePrefix string, logger *slog.Logger) *Handler {
	if registry == nil {
		registry = store.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		purger:      p,
		registry:    registry,
		tablePrefix: tablePrefix,
		logger:      logger,
	}
}

// HandleCascadeDelete purges the children of every removed parent item in event.
// A cascade that failed part way leaves orphans; the removal of their parent
// still arrives here, so the orphans are deleted asynchronously.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeRemove) {
		return nil
	}

	collection, ok := h.collectionFor(record.EventSourceArn)
	if !ok || !h.registry.HasChildren(collection) {
		return nil
	}

	id, ok := getNumberAttr(record.Change.Keys, store.IDField)
	if !ok {
		h.logger.Warn("removed item has no numeric id",
			"eventID", record.EventID,
			"collection", collection,
		)
		return nil
	}

	n, err := h.purger.PurgeChildren(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("purge children of %s %d: %w", collection, id, err)
	}

	h.logger.Info("cascade delete completed",
		"collection", collection,
		"parentId", id,
		"childrenProcessed", n,
	)
	return nil
}

// collectionFor maps a stream ARN
// (arn:aws:dynamodb:region:account:table/NAME/stream/LABEL) to its collection.
func (h *Handler) collectionFor(arn string) (string, bool) {
	table := tableFromARN(arn)
	if table == "" || !strings.HasPrefix(table, h.tablePrefix) {
		return "", false
	}
	return strings.TrimPrefix(table, h.tablePrefix), true
}

func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}

// getNumberAttr extracts an integer attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) (int64, bool) {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.Number(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
