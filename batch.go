package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// fetches up to batchSize messages in one receive call. A non-positive
// batchSize fetches nothing without touching the network; the relay loop
// relies on this to end a limited run. Requests beyond the service cap are
// clamped to it.
func getMessages(ctx context.Context, client SQSClientInterface, queueURL string, batchSize int) ([]Message, error) {
	if batchSize <= 0 {
		return nil, nil
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   int32(batchSize),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Messages) == 0 {
		return nil, nil
	}

	messages := make([]Message, 0, len(resp.Messages))
	for _, raw := range resp.Messages {
		attributes := raw.MessageAttributes
		if attributes == nil {
			attributes = map[string]types.MessageAttributeValue{}
		}
		messages = append(messages, Message{
			ID:            aws.ToString(raw.MessageId),
			Body:          aws.ToString(raw.Body),
			Attributes:    attributes,
			ReceiptHandle: aws.ToString(raw.ReceiptHandle),
		})
	}
	return messages, nil
}

// sends messages to queueURL in one batched call and returns the subset that
// the backend rejected, in input order. Correlation is by message id, the
// batch APIs do not report failures by position.
func sendMessages(ctx context.Context, client SQSClientInterface, queueURL string, messages []Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	entries := make([]types.SendMessageBatchRequestEntry, 0, len(messages))
	for _, message := range messages {
		entries = append(entries, types.SendMessageBatchRequestEntry{
			Id:                aws.String(message.ID),
			MessageBody:       aws.String(message.Body),
			MessageAttributes: message.Attributes,
		})
	}

	resp, err := client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	})
	if err != nil {
		return nil, err
	}

	failed := failedSubset(messages, resp.Failed)
	if len(failed) > 0 {
		log.Error().Str("queue_url", queueURL).Int("count", len(failed)).Msg("Failed to send messages")
	}
	return failed, nil
}

// deletes messages from queueURL by receipt handle and returns the subset the
// backend refused to delete, in input order.
func deleteMessages(ctx context.Context, client SQSClientInterface, queueURL string, messages []Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(messages))
	for _, message := range messages {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(message.ID),
			ReceiptHandle: aws.String(message.ReceiptHandle),
		})
	}

	resp, err := client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	})
	if err != nil {
		return nil, err
	}

	failed := failedSubset(messages, resp.Failed)
	if len(failed) > 0 {
		log.Error().Str("queue_url", queueURL).Int("count", len(failed)).Msg("Failed to delete messages")
	}
	return failed, nil
}

func failedSubset(messages []Message, failures []types.BatchResultErrorEntry) []Message {
	if len(failures) == 0 {
		return nil
	}

	failedIDs := make(map[string]struct{}, len(failures))
	for _, failure := range failures {
		failedIDs[aws.ToString(failure.Id)] = struct{}{}
	}

	var failed []Message
	for _, message := range messages {
		if _, ok := failedIDs[message.ID]; ok {
			failed = append(failed, message)
		}
	}
	return failed
}
