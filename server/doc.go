// Package server exposes biasdaily over the Model Context Protocol.
//
// A Server wraps an app.App and registers tools that search the catalog,
// pick the daily bias and record progress. Tools are described with
// toolfoundation's model.Tool so namespaces, tags and versions travel with
// each definition.
//
// Features:
//   - MCP methods initialize, ping, tools/list and tools/call
//   - Transports: newline-delimited stdio, streamable HTTP (POST), SSE
//   - JSON-RPC error codes for unknown tools (-32001), bad arguments
//     (-32602) and failed executions (-32002)
//   - Custom tools through RegisterTool and RegisterFunc
//
// Example usage:
//
//	a, _ := app.New(ctx, app.Options{})
//	srv, err := server.New(a, server.Config{
//	    ServerInfo: server.ServerInfo{Name: "biasdaily", Version: "1.0.0"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	server.ServeStdio(ctx, srv)
package server
