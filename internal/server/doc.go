// Package server implements the MCP (Model Context Protocol) server for CAPTCHA tools.
//
// This package provides a JSON-RPC 2.0 server that exposes palette
// quantization, OCR and the full solving pipeline through the MCP protocol.
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
// Logs never go to stdout; the logger passed with WithLogger should write to
// stderr or a file.
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Region Operations:
//   - image_crop: Extract rectangular region
//
// Color Operations:
//   - image_sample_color: Get color at pixel
//   - image_dominant_colors: Most frequent exact colors
//   - image_quantize: Reduce the palette with seeded k-means
//
// Segmentation:
//   - image_segment: Same-color segments and text line candidates
//
// OCR Operations:
//   - image_ocr_full: Extract all text
//   - image_ocr_region: Extract text from region
//
// Solving:
//   - captcha_solve: Run the configured filter chain and score the answer
//
// Tools that accept quantizer, segment or OCR settings overlay them on the server
// configuration for that call only.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, avoiding redundant disk I/O.
// The cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv, err := server.New(cfg, server.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
