package main

import (
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// one queue message in flight, built from a receive call and discarded once
// its round completes
type Message struct {
	ID            string
	Body          string
	Attributes    map[string]types.MessageAttributeValue
	ReceiptHandle string
}

type RelayMode string

const (
	ModeMove RelayMode = "move"
	ModeCopy RelayMode = "copy"
)

// delivery totals for a single destination queue over one run
type DestinationReport struct {
	QueueName string
	Delivered int
	Failed    int
}

// aggregate outcome of one relay run
type RelayReport struct {
	RunID        string
	Mode         RelayMode
	Fetched      int
	Deleted      int
	DeleteFailed int
	Destinations []DestinationReport
}
