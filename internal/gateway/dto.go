package gateway

import (
	"time"

	"smc-enginev1/internal/detect"
)

// AnalyzeRequest is the POST /api/analyze body. Ops empty means "run every
// registered operation"; zero params select the defaults.
type AnalyzeRequest struct {
	Pair      string        `json:"pair"`
	Timeframe string        `json:"timeframe"`
	Count     int           `json:"count,omitempty"`
	Ops       []string      `json:"ops,omitempty"`
	Params    detect.Params `json:"params,omitempty"`
}

// AnalyzeResponse is the analysis result envelope.
type AnalyzeResponse struct {
	RunID       string         `json:"run_id"`
	Pair        string         `json:"pair"`
	Timeframe   string         `json:"timeframe"`
	Candles     int            `json:"candles"`
	GeneratedAt time.Time      `json:"generated_at"`
	Results     map[string]any `json:"results"`
}

// OpsResponse lists the registered operation names and the parameter
// defaults an omitted params object resolves to.
type OpsResponse struct {
	Ops           []string      `json:"ops"`
	DefaultParams detect.Params `json:"default_params"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
