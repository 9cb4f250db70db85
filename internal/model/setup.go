package model

import "time"

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusWarning  = "warning"
	StatusError    = "error"
	StatusUnknown  = "unknown"
)

// BackendHealth is what the negotiator reports on GET /health.
type BackendHealth struct {
	Status  string `json:"status"`
	Ollama  string `json:"ollama,omitempty"`
	Llama   string `json:"llama3,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ComponentStatus struct {
	Status    string   `json:"status"`
	Message   string   `json:"message,omitempty"`
	Available []string `json:"available,omitempty"`
}

// SetupStatus backs the setup console.
type SetupStatus struct {
	Backend     ComponentStatus `json:"backend"`
	Ollama      ComponentStatus `json:"ollama"`
	Models      ComponentStatus `json:"models"`
	LastChecked time.Time       `json:"last_checked"`
}

type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ModelList struct {
	Models []ModelInfo `json:"models"`
}

type DiagnosticResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}
