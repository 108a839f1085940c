package queue

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Manager handles NATS connection and messaging
type Manager struct {
	conn    *nats.Conn
	url     string
	options []nats.Option
}

// NewManager creates a new NATS manager
func NewManager(natsURL string) (*Manager, error) {
	options := []nats.Option{
		nats.Name("Tile Supply Planner"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(natsURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Printf("Connected to NATS at %s", natsURL)

	return &Manager{
		conn:    conn,
		url:     natsURL,
		options: options,
	}, nil
}

// Close closes the NATS connection
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

// Conn returns the NATS connection
func (m *Manager) Conn() *nats.Conn {
	return m.conn
}

// Publish publishes a message to a subject
func (m *Manager) Publish(subject string, data []byte) error {
	return m.conn.Publish(subject, data)
}

// Subscribe subscribes to a subject with a handler
func (m *Manager) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.Subscribe(subject, handler)
}

// QueueSubscribe creates a queue subscriber (load balanced across workers)
func (m *Manager) QueueSubscribe(subject, queue string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.QueueSubscribe(subject, queue, handler)
}

// Request sends a request and waits for a response
func (m *Manager) Request(subject string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	return m.conn.Request(subject, data, timeout)
}

// NATS subject patterns. This service has a single logical environment
// (spec: "No multi-tenant isolation"), so subjects carry no TRN/PRD
// dimension, unlike the teacher's per-environment split.
const (
	// Bulk-ingestion subjects: upstream scripts publish a notice that new
	// snapshot rows have landed, and workers publish back progress/result.
	SubjectIngestRequest  = "ingest.request"
	SubjectIngestProgress = "ingest.progress.%s" // ingest.progress.{jobID}
	SubjectIngestComplete = "ingest.complete.%s" // ingest.complete.{jobID}
	SubjectIngestError    = "ingest.error.%s"    // ingest.error.{jobID}

	// Horizon-compute subjects: a request to (re)run the forward
	// projection simulator for one or more products, dispatched async so
	// HTTP handlers aren't blocked by the 12-month cascade (spec §4.4, C4).
	SubjectHorizonComputeRequest  = "horizon.compute.request"
	SubjectHorizonComputeProgress = "horizon.compute.progress.%s" // horizon.compute.progress.{jobID}
	SubjectHorizonComputeComplete = "horizon.compute.complete.%s" // horizon.compute.complete.{jobID}
	SubjectHorizonComputeError    = "horizon.compute.error.%s"    // horizon.compute.error.{jobID}

	QueueGroupIngest  = "ingest-workers"
	QueueGroupHorizon = "horizon-workers"
)

// GetIngestProgressSubject returns the progress subject for an ingestion job.
func GetIngestProgressSubject(jobID string) string {
	return fmt.Sprintf(SubjectIngestProgress, jobID)
}

// GetIngestCompleteSubject returns the completion subject for an ingestion job.
func GetIngestCompleteSubject(jobID string) string {
	return fmt.Sprintf(SubjectIngestComplete, jobID)
}

// GetIngestErrorSubject returns the error subject for an ingestion job.
func GetIngestErrorSubject(jobID string) string {
	return fmt.Sprintf(SubjectIngestError, jobID)
}

// GetHorizonComputeProgressSubject returns the progress subject for a
// horizon-compute job.
func GetHorizonComputeProgressSubject(jobID string) string {
	return fmt.Sprintf(SubjectHorizonComputeProgress, jobID)
}

// GetHorizonComputeCompleteSubject returns the completion subject for a
// horizon-compute job.
func GetHorizonComputeCompleteSubject(jobID string) string {
	return fmt.Sprintf(SubjectHorizonComputeComplete, jobID)
}

// GetHorizonComputeErrorSubject returns the error subject for a
// horizon-compute job.
func GetHorizonComputeErrorSubject(jobID string) string {
	return fmt.Sprintf(SubjectHorizonComputeError, jobID)
}
