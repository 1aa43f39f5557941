// Package api defines the HTTP request/response DTOs for the VeriFlow API.
//
// # API Overview
//
// VeriFlow exposes a RESTful API for:
//   - Submitting content for multi-agent verification
//   - Querying persisted verification decisions
//   - Inspecting registered agents and their health
//   - Listing and resolving health alerts
//   - Streaming orchestration events over WebSocket
//
// # Authentication
//
// When API-key auth is enabled, endpoints under /api/v1 require the
// X-API-Key header:
//
//	X-API-Key: your-api-key
//
// Probe endpoints (/healthz, /ready, /version) are always public.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Request/Response Convention
//
// All /api/v1 endpoints wrap payloads in a uniform envelope (see
// handlers.Response): success flag, data, structured error, timestamp
// and the echoed X-Request-ID. Probe endpoints return their status
// documents unwrapped so external checkers can parse them directly.
//
// # Generating Documentation
//
// To regenerate Swagger documentation using swag:
//
//	swag init -g cmd/veriflow/main.go -o api --parseDependency --parseInternal
package api
