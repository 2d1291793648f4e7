// Package realtime pushes board changes to connected clients.
//
// There is a single shared board channel. After any successful mutation the
// board service calls Invalidate, and every joined client receives one
//
//	{"event":"sync","data":{"type":"refresh"}}
//
// message and re-fetches the snapshot over REST. There is no diff protocol.
//
// Clients connect to /ws and send {"event":"join-board","token":"..."} with
// their session token. Until they join they receive nothing. A rejected join
// gets {"event":"auth-error","data":"Invalid token"} and may try again.
//
// When several server processes share one database, Relay forwards
// invalidations through Redis pub/sub so clients of every process refresh.
// Delivery is best-effort in all cases: clients also poll.
package realtime
