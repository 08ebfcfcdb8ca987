// Package bridge exposes native handlers to a script engine by name.
//
// A Handler publishes a dispatch table of typed actions built with the
// Method, Proc and Async constructors. The Registry keys handlers by channel
// name and builds each table once, at registration. The Dispatcher is the
// MessageDelegate every host installs per channel:
//
//	reg := bridge.NewRegistry()
//	reg.RegisterAs("geckoBridge", probe.New())
//	d := bridge.NewDispatcher(reg, bridge.WithLogger(log))
//	d.Install(host)
//
// One-shot messages carry {action, data}. The payload binds to parameters by
// position (array) or by name (object); a single parameter takes the payload
// itself, or the first element of an array. Results are either immediate or
// a Future that settles later. Every failure surfaces as a NativeCallError
// whose cause maps to a wire code through Code.
//
// Streaming handlers additionally implement Streamer and receive a Port per
// script connection.
package bridge
