package config

import "time"

// Default runtime limits and guardrails for the Excel MCP server. They can be
// overridden by a YAML config file, EXCEL_MCP_* environment variables or CLI
// flags, and are referenced by internal/runtime.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenWorkbooks      = 4

	// Payload and cell limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxCellsPerOp   = 10_000
	DefaultPageRows        = 500
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultLockTimeout           = 10 * time.Second
)

// DefaultSheetName is used when create_workbook is called without a sheet name.
const DefaultSheetName = "Sheet1"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EXCEL_MCP_"
