package config

import "time"

// WebSocket connection limits and constraints
const (
	// Connection limits
	MaxConnectionsPerRoom = 50
	MaxRoomsPerInstance   = 1000
	MaxTotalConnections   = 10000

	// Rate limiting
	MaxMessagesPerSecond = 10
	RateLimitWindow      = time.Second

	// Timeouts
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second
	PongTimeout  = 90 * time.Second // 3x ping interval for network delay tolerance

	// Channel buffers
	ClientSendBufferSize   = 256
	HubBroadcastBufferSize = 256

	// Stale participant reconciliation: a connection that drops without a
	// leave-room keeps its registry entry until it rejoins or this much time
	// passes disconnected.
	PruneInterval       = time.Minute
	MaxDisconnectedAge  = 5 * time.Minute
	ShutdownGracePeriod = 10 * time.Second
)
