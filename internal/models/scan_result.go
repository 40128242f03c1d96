package models

import "time"

// ScanStatus is the outcome of processing one symbol in a batch
type ScanStatus string

const (
	ScanStatusOK     ScanStatus = "ok"
	ScanStatusFailed ScanStatus = "failed"
)

// ScanResult is the per-symbol output of a batch run
type ScanResult struct {
	Symbol      string        `json:"symbol"`
	Status      ScanStatus    `json:"status"`
	Error       string        `json:"error,omitempty"`
	BarCount    int           `json:"bar_count"`
	Patterns    []Pattern     `json:"patterns"`
	Trades      []Trade       `json:"trades"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// FailedSymbol records why a symbol was excluded from a batch
type FailedSymbol struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}
