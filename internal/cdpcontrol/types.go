package cdpcontrol

import "fmt"

const (
	CodeValidation       = "VALIDATION"
	CodeChartNotFound    = "CHART_NOT_FOUND"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	CodeAPIUnavailable   = "API_UNAVAILABLE"
	CodeEvalFailure      = "EVAL_FAILURE"
	CodeEvalTimeout      = "EVAL_TIMEOUT"
	CodeCDPUnavailable   = "CDP_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// ChartInfo describes a chart tab mapped from a browser target.
type ChartInfo struct {
	ChartID  string `json:"chart_id"`
	TargetID string `json:"target_id"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
}

// Study is an indicator instance on the chart.
type Study struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Toggles reports chart display options. Nil means the toolbar button could
// not be found.
type Toggles struct {
	LogScale      *bool `json:"log_scale"`
	AutoScale     *bool `json:"auto_scale"`
	ExtendedHours *bool `json:"extended_hours"`
}
