// Package server implements the MCP (Model Context Protocol) server for
// kymograph blood flow analysis.
//
// This package provides a JSON-RPC 2.0 server that exposes the velocity
// analysis through the MCP protocol so an assistant can load line-scan
// images, estimate flow and inspect the results.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Loading:
//   - kym_load: Load a kymograph, optionally overriding its calibration
//   - kym_header: Read the Olympus sidecar header
//
// Analysis:
//   - kym_analyze: Run the sliding window Radon velocity analysis
//   - kym_velocity: Time and velocity series with cleanup
//   - kym_report: Summary statistics
//
// Persistence:
//   - kym_save_analysis: Save the analysis CSV (and database row)
//   - kym_load_analysis: Load a saved analysis
//   - kym_summary_table: Analyze and summarize a whole folder
//
// Rendering:
//   - kym_preview: Kymograph preview PNG
//   - kym_plot_velocity: Velocity plot as PNG or HTML
//
// Database:
//   - kym_store_list: List stored analyses
//   - kym_store_get: Get a stored analysis and its report
//   - kym_store_delete: Delete a stored analysis
//
// # Caching
//
// Loaded kymographs and their analyses are cached by path for the lifetime
// of the server. Re-running kym_analyze with the same window size and
// pixel range returns the cached series.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// NaN velocities are encoded as JSON null.
//
// # Usage
//
//	srv := server.New(cfg, nil)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
