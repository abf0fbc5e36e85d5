package health

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type statusResponse struct {
	Status string `json:"status"`
}

func CheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	output, _ := json.Marshal(statusResponse{Status: "UP"})
	w.Write(output)
}
