// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP surface using the Chi router.
//
// All endpoints return a standardized envelope:
//
//	{
//	  "status": "success",
//	  "data": { ... },
//	  "metadata": {"timestamp": "...", "query_time_ms": 12}
//	}
//
// Errors carry a machine-readable code:
//
//	{
//	  "status": "error",
//	  "error": {"code": "NOT_FOUND", "message": "customer not found"},
//	  "metadata": {"timestamp": "..."}
//	}
//
// Error mapping:
//   - unknown seed (customer or product): 404 NOT_FOUND
//   - malformed parameters or body: 400 VALIDATION_ERROR
//   - graph store unreachable before any scoring could run: 503
//     STORE_UNAVAILABLE
//   - request deadline exceeded: 504 TIMEOUT
//
// A degraded recommendation (sources failed, or the owned-product set
// could not be loaded) is still a 200 with empty or partial items; the
// degraded sources are listed in the response body.
package api
