package es

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CharellKing/ela-work/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// BulkRequestItem is one serialized action of a bulk request: the metadata
// line and, unless the action is a delete, the source line.
type BulkRequestItem struct {
	ActionType string
	Metadata   json.RawMessage
	Document   json.RawMessage
	Refresh    RefreshPolicy
}

func NewBulkRequestItem[R any](ec *ExecutionContext, work BulkableWork[R]) (*BulkRequestItem, error) {
	metadata, err := work.BulkActionMetadata(ec)
	if err != nil {
		return nil, err
	}
	if len(metadata) != 1 {
		return nil, invalidWork(work.Kind(), "bulk metadata must hold exactly one action, got %d", len(metadata))
	}
	actionType, _ := utils.GetFirstKeyMapValue(metadata)

	metadataBytes, err := ec.serializer().Marshal(metadata)
	if err != nil {
		return nil, err
	}

	document, hasDocument, err := work.BulkActionBody(ec)
	if err != nil {
		return nil, err
	}

	item := &BulkRequestItem{
		ActionType: actionType,
		Metadata:   metadataBytes,
	}
	if hasDocument {
		if item.Document, err = ec.serializer().Marshal(document); err != nil {
			return nil, err
		}
	}
	if refreshAware, ok := any(work).(RefreshAware); ok {
		item.Refresh = ec.ResolveRefresh(refreshAware.RefreshPolicy())
	} else {
		item.Refresh = ec.ResolveRefresh(RefreshNone)
	}
	return item, nil
}

func (item *BulkRequestItem) Lines() []json.RawMessage {
	if item.Document == nil {
		return []json.RawMessage{item.Metadata}
	}
	return []json.RawMessage{item.Metadata, item.Document}
}

// Size is the number of bytes the item adds to the bulk body.
func (item *BulkRequestItem) Size() int {
	size := len(item.Metadata) + 1
	if item.Document != nil {
		size += len(item.Document) + 1
	}
	return size
}

// BuildBulkRequest renders items in order into one NDJSON POST /_bulk. The
// request carries the strongest refresh any item asked for.
func BuildBulkRequest(items []*BulkRequestItem) *Request {
	b := NewRequestBuilder(http.MethodPost).PathComponent("_bulk").NDJSON()
	refresh := StrongestRefresh(lo.Map(items, func(item *BulkRequestItem, _ int) RefreshPolicy {
		return item.Refresh
	})...)
	b.ParamIfNotEmpty("refresh", string(refresh))
	for _, item := range items {
		for _, line := range item.Lines() {
			b.Body(line)
		}
	}
	return b.Build()
}

// BulkResponseItem is the engine's answer for one action. Body keeps the
// whole nested object for error reporting and result extraction.
type BulkResponseItem struct {
	ActionType string                 `mapstructure:"-"`
	Index      string                 `mapstructure:"_index"`
	Id         string                 `mapstructure:"_id"`
	Status     int                    `mapstructure:"status"`
	Result     string                 `mapstructure:"result"`
	Body       map[string]interface{} `mapstructure:"-"`
}

type BulkResponse struct {
	Took   int64         `mapstructure:"took"`
	Errors bool          `mapstructure:"errors"`
	Items  []interface{} `mapstructure:"items"`
}

// ParseBulkResponse splits a bulk response into exactly expected items. Any
// deviation is a *ProtocolError because positional correlation is then
// impossible.
func ParseBulkResponse(body map[string]interface{}, expected int) ([]*BulkResponseItem, error) {
	if body == nil {
		return nil, &ProtocolError{Reason: "bulk response has no json body", Expected: expected, Actual: expected}
	}
	if _, ok := body["items"].([]interface{}); !ok {
		return nil, &ProtocolError{Reason: "bulk response has no items array", Expected: expected, Actual: expected}
	}

	var bulkResponse BulkResponse
	if err := mapstructure.Decode(body, &bulkResponse); err != nil {
		return nil, &ProtocolError{Reason: errors.WithStack(err).Error(), Expected: expected, Actual: expected}
	}
	if len(bulkResponse.Items) != expected {
		return nil, &ProtocolError{
			Reason:   "request items amount is not equal to response items",
			Expected: expected,
			Actual:   len(bulkResponse.Items),
		}
	}

	bulkResponseItems := make([]*BulkResponseItem, 0, expected)
	for i, rawItem := range bulkResponse.Items {
		item, err := parseBulkResponseItem(rawItem)
		if err != nil {
			return nil, &ProtocolError{
				Reason:   fmt.Sprintf("malformed item at position %d: %s", i, err),
				Expected: expected,
				Actual:   expected,
			}
		}
		bulkResponseItems = append(bulkResponseItems, item)
	}
	return bulkResponseItems, nil
}

func parseBulkResponseItem(rawItem interface{}) (*BulkResponseItem, error) {
	itemMap, ok := rawItem.(map[string]interface{})
	if !ok || len(itemMap) != 1 {
		return nil, errors.New("item must be an object with exactly one action")
	}
	actionType, body := utils.GetFirstKeyMapValue(itemMap)
	if body == nil {
		return nil, errors.Errorf("%s item is not an object", actionType)
	}
	if _, ok := body["status"]; !ok {
		return nil, errors.Errorf("%s item has no status", actionType)
	}

	var item BulkResponseItem
	if err := mapstructure.Decode(body, &item); err != nil {
		return nil, errors.WithStack(err)
	}
	if item.Status <= 0 {
		return nil, errors.Errorf("%s item has invalid status %v", actionType, body["status"])
	}
	item.ActionType = actionType
	item.Body = body
	return &item, nil
}
