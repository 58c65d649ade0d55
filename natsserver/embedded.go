// Package natsserver provides the embedded NATS server backing the live
// detection feed.
package natsserver

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// EmbeddedNATS wraps an in-process NATS server with a client connection.
type EmbeddedNATS struct {
	server *server.Server
	conn   *nats.Conn
	port   int
}

// Config holds configuration for the embedded server.
type Config struct {
	Port       int
	MaxPayload int32
}

// DefaultConfig returns sensible defaults. Detection messages are small; the
// payload ceiling only guards against misbehaving publishers.
func DefaultConfig() Config {
	return Config{
		Port:       4233,
		MaxPayload: 1 << 20,
	}
}

// New creates and starts an embedded NATS server and connects an internal
// client to it.
func New(cfg Config) (*EmbeddedNATS, error) {
	opts := &server.Options{
		Host:          "0.0.0.0",
		Port:          cfg.Port,
		NoLog:         true,
		NoSigs:        true,
		MaxPayload:    cfg.MaxPayload,
		WriteDeadline: 10 * time.Second,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("NATS server not ready after 5 seconds")
	}

	nc, err := nats.Connect(
		fmt.Sprintf("nats://localhost:%d", cfg.Port),
		nats.Name("platewatch-internal"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	log.Printf("📡 Embedded NATS server started on port %d", cfg.Port)

	return &EmbeddedNATS{server: ns, conn: nc, port: cfg.Port}, nil
}

// Conn returns the internal client connection.
func (e *EmbeddedNATS) Conn() *nats.Conn {
	return e.conn
}

// Address returns the server URL.
func (e *EmbeddedNATS) Address() string {
	return fmt.Sprintf("nats://localhost:%d", e.port)
}

// NumClients returns the number of connected clients.
func (e *EmbeddedNATS) NumClients() int {
	return e.server.NumClients()
}

// Shutdown closes the client connection and stops the server.
func (e *EmbeddedNATS) Shutdown() {
	if e.conn != nil {
		e.conn.Close()
	}
	if e.server != nil {
		e.server.Shutdown()
	}
	log.Println("📡 NATS server shut down")
}
