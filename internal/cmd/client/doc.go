// Package client provides the `runnel` command-line client.
//
// The CLI talks to the Runnel HTTP API to query persisted items, list and
// tail alerts, inspect dead letters, and publish or generate events. It is
// primarily intended for developers and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it reads
// RUNNEL_HTTP and defaults to http://127.0.0.1:8080.
//
// Usage
//
//	runnel publish --type inventory --key P-1004 \
//	    --attr product_id=P-1004 --attr inventory=3
//
//	runnel produce --count 500 --interval-ms 50
//	runnel produce --count 10 --dry-run          # print NDJSON, no server
//
//	runnel items get --pk 'path#/api/users' --sk 2025-09-20T00:39:41.527Z
//	runnel items range --pk 'path#/api/users' --limit 20
//
//	runnel alerts list --limit 10
//	runnel alerts tail --from earliest
//
//	runnel dlq list --group persist
//	runnel stats
package client
