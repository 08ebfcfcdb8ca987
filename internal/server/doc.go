// Package server exposes the bridge over HTTP.
//
// Routes:
//   - GET /bridge: websocket upgrade into the ws host
//   - GET /channels: registered channels with their actions
//   - GET /health: liveness and open connection count
//   - GET /metrics: Prometheus exposition
//
// Server Lifecycle:
//  1. Build the registry and install the dispatcher on a ws.Host
//  2. NewServer wires routes, CORS and request metrics
//  3. Run serves until the context is cancelled
//  4. Shutdown closes every websocket connection, which disconnects
//     their ports
//
// Example Usage:
//
//	host := ws.NewHost(ws.WithCheckOrigin(server.CheckOrigin(cfg.Server.AllowedOrigin)))
//	_ = bridge.NewDispatcher(reg).Install(host)
//	srv := server.NewServer(cfg.Server, server.Deps{Registry: reg, Host: host})
//	err := srv.Run(ctx)
package server
