package dbentry

import (
	"io"
	"net/http"
	"net/url"

	"WCKV/internal/application/service"
	"WCKV/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type DbEntryHandler struct {
	insertService      *service.InsertEntryService
	deleteService      *service.DeleteEntryService
	findService        *service.FindEntryService
	findColumnsService *service.FindColumnsService
}

type EntryResponse struct {
	Key          string `json:"key"`
	ColumnFamily string `json:"column_family"`
	Column       string `json:"column"`
	Value        string `json:"value"`
}

type ColumnsResponse struct {
	Key          string            `json:"key"`
	ColumnFamily string            `json:"column_family"`
	Columns      map[string]string `json:"columns"`
}

// MutationResponse carries the message key produced by a write.
type MutationResponse struct {
	Key          string `json:"key"`
	ColumnFamily string `json:"column_family"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func MapToMutationResponse(key domain.MessageKey) MutationResponse {
	return MutationResponse{
		Key:          string(key.Key),
		ColumnFamily: key.ColumnFamily,
	}
}

func NewDbEntryHandler(insertService *service.InsertEntryService,
	deleteService *service.DeleteEntryService,
	findService *service.FindEntryService,
	findColumnsService *service.FindColumnsService) *DbEntryHandler {
	return &DbEntryHandler{
		insertService:      insertService,
		deleteService:      deleteService,
		findService:        findService,
		findColumnsService: findColumnsService,
	}
}

func writeJson(w http.ResponseWriter, status int, body interface{}) {
	output, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		output, _ = json.Marshal(ErrorResponse{Error: err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(output)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJson(w, status, ErrorResponse{Error: err.Error()})
}

// urlParam returns a path parameter decoded. chi matches on the raw path when the
// request carries escaped separators, so keys holding '/' arrive escaped.
func urlParam(r *http.Request, name string) string {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value
	}
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}

func (h *DbEntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	key, cf, column := urlParam(r, "key"), urlParam(r, "cf"), urlParam(r, "column")
	result := h.findService.Execute(service.FindEntryQuery{
		Key:          []byte(key),
		ColumnFamily: cf,
		Column:       column,
	})
	if result.Err != nil {
		writeError(w, http.StatusInternalServerError, result.Err)
		return
	}
	if !result.Found {
		writeJson(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	writeJson(w, http.StatusOK, EntryResponse{
		Key:          key,
		ColumnFamily: cf,
		Column:       column,
		Value:        string(result.Value),
	})
}

func (h *DbEntryHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	key, cf := urlParam(r, "key"), urlParam(r, "cf")
	result := h.findColumnsService.Execute(service.FindColumnsQuery{
		Key:          []byte(key),
		ColumnFamily: cf,
	})
	if result.Err != nil {
		writeError(w, http.StatusInternalServerError, result.Err)
		return
	}
	if len(result.Columns) == 0 {
		writeJson(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	columns := make(map[string]string, len(result.Columns))
	for column, value := range result.Columns {
		columns[column] = string(value)
	}
	writeJson(w, http.StatusOK, ColumnsResponse{
		Key:          key,
		ColumnFamily: cf,
		Columns:      columns,
	})
}

// PutEntry stores the raw request body as the value of one column.
func (h *DbEntryHandler) PutEntry(w http.ResponseWriter, r *http.Request) {
	value, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.insert(w, urlParam(r, "key"), urlParam(r, "cf"), map[string][]byte{
		urlParam(r, "column"): value,
	})
}

// PostColumns stores a JSON object of column to value.
func (h *DbEntryHandler) PostColumns(w http.ResponseWriter, r *http.Request) {
	var request map[string]string
	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = json.Unmarshal(body, &request)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	columns := make(map[string][]byte, len(request))
	for column, value := range request {
		columns[column] = []byte(value)
	}
	h.insert(w, urlParam(r, "key"), urlParam(r, "cf"), columns)
}

func (h *DbEntryHandler) insert(w http.ResponseWriter, key, cf string, columns map[string][]byte) {
	result := h.insertService.Execute(service.InsertEntryCommand{
		Key:          []byte(key),
		ColumnFamily: cf,
		Columns:      columns,
	})
	if errors.Is(result.Err, service.ErrNoColumns) {
		writeError(w, http.StatusBadRequest, result.Err)
		return
	}
	if result.Err != nil {
		writeError(w, http.StatusInternalServerError, result.Err)
		return
	}
	writeJson(w, http.StatusOK, MapToMutationResponse(result.MessageKey))
}

func (h *DbEntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	result := h.deleteService.Execute(service.DeleteEntryCommand{
		Key:          []byte(urlParam(r, "key")),
		ColumnFamily: urlParam(r, "cf"),
		Column:       urlParam(r, "column"),
	})
	if result.Err != nil {
		writeError(w, http.StatusInternalServerError, result.Err)
		return
	}
	writeJson(w, http.StatusOK, MapToMutationResponse(result.MessageKey))
}
