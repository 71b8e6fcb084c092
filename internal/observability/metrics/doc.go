// Package metrics holds process-level Prometheus metrics shared by the API
// and the worker: build information and database pool statistics.
//
// Request, dispatch, adapter and intake metrics live next to the code that
// records them.
package metrics
