package negotiation

// Queue plumbing shared by the in-memory and SQS implementations. The
// dispatcher serializes turns per (product, thread) key downstream, so the
// queue itself needs no ordering guarantees.

import "context"

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const jobTypeTurn jobType = "turn"

type queuePayload struct {
	ID   string      `json:"id"`
	Kind jobType     `json:"kind"`
	Turn TurnRequest `json:"turn,omitempty"`
}
