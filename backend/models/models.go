// ABOUTME: Shared API response models
// ABOUTME: JSON-serializable structures for health and error responses

package models

// HealthResponse reports service status
type HealthResponse struct {
	Status        string `json:"status"`
	CatalogModels int    `json:"catalog_models"`
	StoreDir      string `json:"store_dir"`
	StoreWritable bool   `json:"store_writable"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    int    `json:"code"`
}
