// Package http implements the rpc transport over HTTP. Every request is a
// POST to /{areaId} with the serialized message as body; the response body
// is the serialized response.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Endpoints may be
//     given as host:port or as URL; requests are spread round robin over all
//     endpoints and retried with exponential backoff.
//
//   - httpServerTransport: Implements IRPCServerTransport around
//     net/http.Server. The handler (see NewHandler) also serves GET /metrics
//     with all VictoriaMetrics counters of the process, e.g.
//     rkv_rpc_requests_total and rkv_changes_emitted_total. In debug mode
//     every request is logged with its status and duration.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use. It uses an atomic
//	counter for the round robin selection of the endpoint.
package http
