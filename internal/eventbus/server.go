package eventbus

import (
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"ticketforge/internal/logger"
)

// StartEmbedded starts an in-process NATS server without network ports.
func StartEmbedded() (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{DontListen: true})
	if err != nil {
		return nil, err
	}
	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}
	logger.Debug("embedded NATS server ready")
	return ns, nil
}

// Connect dials url, or the embedded server when ns is set.
func Connect(url string, ns *server.Server) (*nats.Conn, error) {
	if ns != nil {
		return nats.Connect("", nats.InProcessServer(ns))
	}
	return nats.Connect(url, nats.Name("ticketforge"), nats.MaxReconnects(-1))
}

// Shutdown drains the connection, then stops the embedded server if any.
func Shutdown(nc *nats.Conn, ns *server.Server) {
	if nc != nil {
		done := make(chan error, 1)
		go func() { done <- nc.Drain() }()
		select {
		case err := <-done:
			if err != nil {
				logger.Warn("NATS drain failed, forcing close: %v", err)
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			logger.Warn("NATS drain timed out after 2s, forcing close")
			nc.Close()
		}
	}
	if ns != nil {
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}
