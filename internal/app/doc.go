// Package app holds the use cases behind the WebSocket surface: session
// authentication, permission-checked command routing, the inventory poller
// and the inventory and plant command handlers. It depends on domain only;
// transports and stores are injected.
package app
