// Package server is the realtime transport for trio rooms.
//
// Browsers connect to /ws and exchange JSON envelopes of the form
// {"event": "...", "data": ...}. Each connection is a Client with its own
// read and write pumps; the Hub tracks live clients and detaches them from
// the room registry when they go away. Inbound events are decoded, checked
// and routed to the registry on the client's read pump.
//
// The package also provides the HTTP surface around the websocket endpoint:
// origin checks, health, the VAPID public key and server construction.
package server
