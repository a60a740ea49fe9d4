// Package stream connects to the exchange stream and extracts market definitions.
//
// A Client owns one TLS connection carrying CRLF-terminated JSON messages: it reads lines
// into a buffered channel, sends heartbeat requests and watches for stale connections.
// A Consumer drives a Client through authentication and market subscription, decodes
// "mcm" messages and hands every market definition it sees to a Handler, reconnecting
// with exponential backoff when the connection drops.
package stream
