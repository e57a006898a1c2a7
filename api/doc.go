// Copyright (c) zigen Authors.
// Licensed under the MIT License.

// Package api holds the request and response types of the zigen HTTP API.
//
// # API Overview
//
// zigen exposes:
//   - Image generation: synchronous JSON, SSE streaming and WebSocket
//   - Runtime settings: read and partial update
//   - Job history (when a database is configured)
//   - Health, readiness and version probes
//
// # Authentication
//
// When API keys are configured, requests carry:
//
//	X-API-Key: your-api-key
//
// The settings endpoints additionally require a bearer JWT when jwt.secret
// or jwt.public_key is set.
//
// # Endpoints
//
//	POST  /api/v1/images/generations
//	POST  /api/v1/images/generations/stream
//	GET   /api/v1/images/ws
//	GET   /api/v1/settings
//	PATCH /api/v1/settings
//	GET   /api/v1/jobs?limit=n
//	GET   /health /healthz /ready /version
//
// Handlers live in api/handlers.
package api
