package utils

import (
	"encoding/json"
	"net/http"
)

// JSONErrorResponse is the uniform error payload of the API.
type JSONErrorResponse struct {
	Error string `json:"error"`
}

// SendJSONError writes an error message as a JSON response with the given status code.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(JSONErrorResponse{Error: message})
}
