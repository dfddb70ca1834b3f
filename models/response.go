package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "stopping"
	Uptime  string `json:"uptime"`
	Backend string `json:"backend"`
	Version string `json:"version"`
}

// RunResponse is the response for GET /api/v1/run and POST /api/v1/run/stop.
type RunResponse struct {
	Section  string       `json:"section"`
	TopicURL string       `json:"topic_url"`
	Stats    RunStats     `json:"stats"`
	Error    *ErrorDetail `json:"error,omitempty"`
}
