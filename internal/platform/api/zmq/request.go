package zmq

type ApiRequest struct {
	Action       string            `json:"action,omitempty"`
	Key          string            `json:"key,omitempty"`
	ColumnFamily string            `json:"column_family,omitempty"`
	Column       string            `json:"column,omitempty"`
	Value        string            `json:"value,omitempty"`
	Columns      map[string]string `json:"columns,omitempty"`
}

type ApiResponse struct {
	Success    bool                `json:"success"`
	Found      bool                `json:"found,omitempty"`
	Value      string              `json:"value,omitempty"`
	Columns    map[string]string   `json:"columns,omitempty"`
	MessageKey *MessageKeyResponse `json:"message_key,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type MessageKeyResponse struct {
	Key          string `json:"key"`
	ColumnFamily string `json:"column_family"`
}
