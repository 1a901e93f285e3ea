package es

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBulkRequest(t *testing.T) {
	ec := mustContext(t, "8.14.0")

	indexItem, err := NewBulkRequestItem[Void](ec, NewIndexDocumentWork("logs", "1", map[string]interface{}{"a": 1}))
	require.NoError(t, err)
	deleteItem, err := NewBulkRequestItem[Void](ec, NewDeleteDocumentWork("logs", "2").WithRefresh(RefreshWaitFor))
	require.NoError(t, err)
	updateItem, err := NewBulkRequestItem[Void](ec, NewUpdateDocumentWork("logs", "3", map[string]interface{}{"b": 2}))
	require.NoError(t, err)

	assert.Equal(t, "index", indexItem.ActionType)
	assert.Equal(t, "delete", deleteItem.ActionType)
	assert.Len(t, deleteItem.Lines(), 1)
	assert.Equal(t, len(deleteItem.Metadata)+1, deleteItem.Size())

	req := BuildBulkRequest([]*BulkRequestItem{indexItem, deleteItem, updateItem})
	assert.Equal(t, "POST /_bulk?refresh=wait_for", req.String())
	assert.Equal(t, ContentTypeNDJSON, req.ContentType())

	expected := `{"index":{"_id":"1","_index":"logs"}}` + "\n" +
		`{"a":1}` + "\n" +
		`{"delete":{"_id":"2","_index":"logs"}}` + "\n" +
		`{"update":{"_id":"3","_index":"logs"}}` + "\n" +
		`{"doc":{"b":2}}` + "\n"
	assert.Equal(t, expected, string(req.Body()))
	assert.Equal(t, indexItem.Size()+deleteItem.Size()+updateItem.Size(), len(req.Body()))
}

func TestBuildBulkRequestWithoutRefresh(t *testing.T) {
	ec := mustContext(t, "8.14.0")
	item, err := NewBulkRequestItem[Void](ec, NewIndexDocumentWork("logs", "1", map[string]interface{}{}))
	require.NoError(t, err)

	req := BuildBulkRequest([]*BulkRequestItem{item})
	assert.Equal(t, "POST /_bulk", req.String())
}

func decodeBody(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	return body
}

func TestParseBulkResponse(t *testing.T) {
	body := decodeBody(t, `{"took":3,"errors":true,"items":[
		{"index":{"_index":"logs","_id":"1","status":201,"result":"created"}},
		{"delete":{"_index":"logs","_id":"2","status":404,"result":"not_found"}},
		{"update":{"_index":"logs","_id":"3","status":409,"error":{"type":"version_conflict_engine_exception","reason":"conflict"}}}
	]}`)

	items, err := ParseBulkResponse(body, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "index", items[0].ActionType)
	assert.Equal(t, 201, items[0].Status)
	assert.Equal(t, "created", items[0].Result)
	assert.Equal(t, "2", items[1].Id)
	assert.Equal(t, 409, items[2].Status)
	assert.NotNil(t, items[2].Body["error"])
}

func TestParseBulkResponseProtocolErrors(t *testing.T) {
	testCases := map[string]struct {
		body     string
		expected int
	}{
		"missing items": {`{"took":1,"errors":false}`, 1},
		"items not array": {`{"items":{}}`, 1},
		"length mismatch": {`{"items":[{"index":{"status":201}},{"index":{"status":201}}]}`, 3},
		"item not object": {`{"items":[1]}`, 1},
		"two actions":     {`{"items":[{"index":{"status":201},"delete":{"status":200}}]}`, 1},
		"missing status":  {`{"items":[{"index":{"_id":"1"}}]}`, 1},
		"action scalar":   {`{"items":[{"index":"oops"}]}`, 1},
	}
	for name, tc := range testCases {
		_, err := ParseBulkResponse(decodeBody(t, tc.body), tc.expected)
		var protocolErr *ProtocolError
		assert.True(t, errors.As(err, &protocolErr), name)
	}

	_, err := ParseBulkResponse(nil, 2)
	var protocolErr *ProtocolError
	require.True(t, errors.As(err, &protocolErr))

	_, err = ParseBulkResponse(decodeBody(t, `{"items":[{"index":{"status":201}},{"index":{"status":201}}]}`), 3)
	require.True(t, errors.As(err, &protocolErr))
	assert.Equal(t, 3, protocolErr.Expected)
	assert.Equal(t, 2, protocolErr.Actual)
}
