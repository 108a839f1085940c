// Package workers runs the long-lived background consumers that drain
// the job queue (C13): the horizon-compute pool is the worker side of
// "a pool of worker tasks that each handle one planning/builder request
// end-to-end" (spec §5).
package workers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
	"github.com/pinggolf/tile-supply-planner/internal/core"
	"github.com/pinggolf/tile-supply-planner/internal/queue"
)

// HorizonComputeRequest is the payload published to
// queue.SubjectHorizonComputeRequest.
type HorizonComputeRequest struct {
	JobID     string `json:"job_id"`
	FactoryID string `json:"factory_id"`
	Months    int    `json:"months"`
}

// HorizonWorker drains queue.SubjectHorizonComputeRequest and runs
// core.PlanningHorizon end to end, publishing the result (or error) to
// the job-specific completion subject.
type HorizonWorker struct {
	mgr  *queue.Manager
	core *core.Core
}

// NewHorizonWorker constructs a worker bound to one core instance.
func NewHorizonWorker(mgr *queue.Manager, c *core.Core) *HorizonWorker {
	return &HorizonWorker{mgr: mgr, core: c}
}

// Start subscribes the worker to its queue group. Multiple processes can
// call Start concurrently; NATS load-balances requests across them, one
// request handled sequentially per worker (load -> simulate -> render).
func (w *HorizonWorker) Start() error {
	_, err := w.mgr.QueueSubscribe(queue.SubjectHorizonComputeRequest, queue.QueueGroupHorizon, func(msg *nats.Msg) {
		w.handle(msg)
	})
	if err != nil {
		return apperr.Wrap("subscribe horizon compute requests", err)
	}
	return nil
}

func (w *HorizonWorker) handle(msg *nats.Msg) {
	var req HorizonComputeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("horizon worker: malformed request: %v", err)
		return
	}

	months := req.Months
	if months < 1 || months > 12 {
		months = 3
	}

	horizon, err := w.core.PlanningHorizon(context.Background(), req.FactoryID, months)
	if err != nil {
		log.Printf("horizon worker: job %s failed: %v", req.JobID, err)
		payload, _ := json.Marshal(map[string]string{"job_id": req.JobID, "error": err.Error()})
		w.mgr.Publish(queue.GetHorizonComputeErrorSubject(req.JobID), payload)
		return
	}

	payload, err := json.Marshal(horizon)
	if err != nil {
		log.Printf("horizon worker: job %s: marshal result: %v", req.JobID, err)
		return
	}
	if err := w.mgr.Publish(queue.GetHorizonComputeCompleteSubject(req.JobID), payload); err != nil {
		log.Printf("horizon worker: job %s: publish result: %v", req.JobID, err)
	}
}
