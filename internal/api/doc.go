// Package api exposes a Runner over HTTP.
//
// Routes:
//
//	GET  /health                 liveness
//	POST /init                   committed snapshot delivery starts from
//	POST /commits                one or more commit notifications, in order
//	GET  /status                 engine.Status of the runner
//	GET  /runs/{runID}/batches   delivered batches, when a BatchReader is set
//
// The handlers only enqueue: a 202 from /commits means the commits reached
// the runner's inbox, not that anything was delivered.
package api
