package client

import (
	"net/http"

	"WCKV/internal/domain"
	"WCKV/internal/platform/server/handler/dbentry"
	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
)

const (
	rowEndpoint    = "/db/{cf}/{key}"
	columnEndpoint = "/db/{cf}/{key}/{column}"
)

// EngineClient calls the HTTP API of a remote instance. It offers the same
// operations as the local engine.
type EngineClient struct {
	client *resty.Client
}

var _ domain.StorageEngine = (*EngineClient)(nil)

func NewEngineClient(serverUrl string) *EngineClient {
	return &EngineClient{
		client: resty.New().SetBaseURL(serverUrl),
	}
}

func (c *EngineClient) request(key []byte, columnFamily string) *resty.Request {
	return c.client.R().
		SetPathParam("cf", columnFamily).
		SetPathParam("key", string(key)).
		SetError(&dbentry.ErrorResponse{})
}

func responseError(resp *resty.Response) error {
	if failure, ok := resp.Error().(*dbentry.ErrorResponse); ok && failure.Error != "" {
		return errors.Newf("%s %s: %d %s", resp.Request.Method, resp.Request.URL, resp.StatusCode(), failure.Error)
	}
	return errors.Newf("%s %s: %d", resp.Request.Method, resp.Request.URL, resp.StatusCode())
}

func (c *EngineClient) Find(key []byte, columnFamily, column string) ([]byte, bool, error) {
	var result dbentry.EntryResponse
	resp, err := c.request(key, columnFamily).
		SetPathParam("column", column).
		SetResult(&result).
		Get(columnEndpoint)
	if err != nil {
		return nil, false, err
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, false, nil
	case resp.IsError():
		return nil, false, responseError(resp)
	}
	return []byte(result.Value), true, nil
}

func (c *EngineClient) FindColumns(key []byte, columnFamily string) (map[string][]byte, error) {
	var result dbentry.ColumnsResponse
	resp, err := c.request(key, columnFamily).
		SetResult(&result).
		Get(rowEndpoint)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return map[string][]byte{}, nil
	case resp.IsError():
		return nil, responseError(resp)
	}
	columns := make(map[string][]byte, len(result.Columns))
	for column, value := range result.Columns {
		columns[column] = []byte(value)
	}
	return columns, nil
}

func (c *EngineClient) Insert(key []byte, columnFamily, column string, value []byte) (domain.MessageKey, error) {
	return c.mutate(c.request(key, columnFamily).
		SetPathParam("column", column).
		SetBody(value), http.MethodPut, columnEndpoint)
}

func (c *EngineClient) InsertColumns(key []byte, columnFamily string, columns map[string][]byte) (domain.MessageKey, error) {
	body := make(map[string]string, len(columns))
	for column, value := range columns {
		body[column] = string(value)
	}
	return c.mutate(c.request(key, columnFamily).
		SetHeader("Content-Type", "application/json").
		SetBody(body), http.MethodPost, rowEndpoint)
}

func (c *EngineClient) Delete(key []byte, columnFamily, column string) (domain.MessageKey, error) {
	return c.mutate(c.request(key, columnFamily).
		SetPathParam("column", column), http.MethodDelete, columnEndpoint)
}

func (c *EngineClient) DeleteColumns(key []byte, columnFamily string) (domain.MessageKey, error) {
	return c.mutate(c.request(key, columnFamily), http.MethodDelete, rowEndpoint)
}

func (c *EngineClient) mutate(req *resty.Request, method, endpoint string) (domain.MessageKey, error) {
	var result dbentry.MutationResponse
	resp, err := req.SetResult(&result).Execute(method, endpoint)
	if err != nil {
		return domain.MessageKey{}, err
	}
	if resp.IsError() {
		return domain.MessageKey{}, responseError(resp)
	}
	return domain.NewMessageKey([]byte(result.Key), result.ColumnFamily), nil
}
