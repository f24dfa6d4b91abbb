package main

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

type RelayConfig struct {
	SourceQueue       string
	DestinationQueues []string // fanned out in this order
	BatchSize         int
	MessageLimit      int // negative means drain the current approximate depth
}

// journal entries older than this are pruned after a run unless the caller
// sets its own retention
const defaultJournalRetention = 7 * 24 * time.Hour

// drains a source queue into one or more destination queues, one round at a
// time
type Relay struct {
	client           SQSClientInterface
	journal          RelayJournal // nil disables journalling
	journalRetention time.Duration
}

func NewRelay(awsConfig aws.Config, journal RelayJournal, journalRetention time.Duration) *Relay {
	return &Relay{
		client:           sqs.NewFromConfig(awsConfig),
		journal:          journal,
		journalRetention: journalRetention,
	}
}

// Move relays messages and deletes every message that reached all
// destinations from the source. Messages that failed at any destination stay
// on the source for a later run.
func (r *Relay) Move(ctx context.Context, config RelayConfig) (*RelayReport, error) {
	return r.relay(ctx, config, ModeMove)
}

// Copy relays messages without ever deleting from the source.
func (r *Relay) Copy(ctx context.Context, config RelayConfig) (*RelayReport, error) {
	return r.relay(ctx, config, ModeCopy)
}

func (r *Relay) relay(ctx context.Context, config RelayConfig, mode RelayMode) (*RelayReport, error) {
	if len(config.DestinationQueues) == 0 {
		return nil, errors.New("at least one destination queue is required")
	}

	sourceURL, err := resolveQueueURL(ctx, r.client, config.SourceQueue)
	if err != nil {
		return nil, err
	}

	destinationURLs := make([]string, 0, len(config.DestinationQueues))
	for _, queueName := range config.DestinationQueues {
		destinationURL, err := resolveQueueURL(ctx, r.client, queueName)
		if err != nil {
			return nil, err
		}
		destinationURLs = append(destinationURLs, destinationURL)
	}

	report := &RelayReport{
		RunID:        xid.New().String(),
		Mode:         mode,
		Destinations: make([]DestinationReport, len(config.DestinationQueues)),
	}
	for i, queueName := range config.DestinationQueues {
		report.Destinations[i].QueueName = queueName
	}

	rl := log.With().Str("run_id", report.RunID).Str("mode", string(mode)).Logger()

	// depth snapshot at run start; load-bearing only when no limit was given
	size, sizeErr := approximateQueueSize(ctx, r.client, sourceURL)
	if sizeErr != nil {
		rl.Warn().Err(sizeErr).Str("queue", config.SourceQueue).Msg("Failed to fetch source queue depth")
	} else {
		rl.Info().Str("queue", config.SourceQueue).Int("approximate_size", size).Msg("Approximate messages in source queue")
	}

	limit := config.MessageLimit
	if limit < 0 {
		if sizeErr != nil {
			return nil, sizeErr
		}
		rl.Info().Int("limit", size).Msg("No limit given, draining current queue depth")
		limit = size
	}

	round := 0
	for {
		// the final partial round shrinks the request, and a request at or
		// past the limit goes non-positive, which fetches nothing and ends
		// the loop
		requested := config.BatchSize
		if remaining := limit - report.Fetched; remaining < requested {
			requested = remaining
		}

		batch, err := getMessages(ctx, r.client, sourceURL, requested)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}

		rl.Debug().Int("count", len(batch)).Int("requested", requested).Msg("Received messages")

		failedAnywhere := make(map[string]struct{})
		for i, destinationURL := range destinationURLs {
			failed, err := sendMessages(ctx, r.client, destinationURL, batch)
			if err != nil {
				return report, err
			}
			report.Destinations[i].Delivered += len(batch) - len(failed)
			report.Destinations[i].Failed += len(failed)
			for _, message := range failed {
				failedAnywhere[message.ID] = struct{}{}
			}
		}

		delivered := make([]Message, 0, len(batch))
		for _, message := range batch {
			if _, ok := failedAnywhere[message.ID]; !ok {
				delivered = append(delivered, message)
			}
		}

		relayed := delivered
		if mode == ModeMove {
			deleteFailed, err := deleteMessages(ctx, r.client, sourceURL, delivered)
			if err != nil {
				return report, err
			}
			report.Deleted += len(delivered) - len(deleteFailed)
			report.DeleteFailed += len(deleteFailed)

			stillOnSource := make(map[string]struct{}, len(deleteFailed))
			for _, message := range deleteFailed {
				stillOnSource[message.ID] = struct{}{}
			}
			relayed = make([]Message, 0, len(delivered))
			for _, message := range delivered {
				if _, ok := stillOnSource[message.ID]; !ok {
					relayed = append(relayed, message)
				}
			}
		}

		r.recordRound(ctx, report, config.SourceQueue, relayed)

		report.Fetched += len(batch)
		round++
		if round%10 == 0 {
			size, err := approximateQueueSize(ctx, r.client, sourceURL)
			if err != nil {
				rl.Warn().Err(err).Msg("Failed to fetch queue depth for progress report")
			} else {
				rl.Info().Int("fetched", report.Fetched).Int("approximately_left", size).Msg("Relay progress")
			}
		}
	}

	r.cleanupJournal(ctx)

	rl.Info().
		Int("fetched", report.Fetched).
		Int("deleted", report.Deleted).
		Msg("Relay run complete")
	return report, nil
}

// Poll fetches and logs message bodies from the source queue without
// delivering or deleting them, and returns the number fetched.
func (r *Relay) Poll(ctx context.Context, sourceQueue string, batchSize, messageLimit int) (int, error) {
	sourceURL, err := resolveQueueURL(ctx, r.client, sourceQueue)
	if err != nil {
		return 0, err
	}

	limit, err := r.effectiveLimit(ctx, messageLimit, sourceQueue, sourceURL)
	if err != nil {
		return 0, err
	}

	fetched := 0
	for {
		requested := batchSize
		if remaining := limit - fetched; remaining < requested {
			requested = remaining
		}

		batch, err := getMessages(ctx, r.client, sourceURL, requested)
		if err != nil {
			return fetched, err
		}
		if len(batch) == 0 {
			return fetched, nil
		}

		for _, message := range batch {
			log.Info().Str("message_id", message.ID).Str("body", message.Body).Msg("Polled message")
		}
		fetched += len(batch)
	}
}

// an unspecified limit becomes a one-time snapshot of the source depth, so a
// "drain what's there now" run cannot chase new arrivals forever
func (r *Relay) effectiveLimit(ctx context.Context, messageLimit int, queueName, queueURL string) (int, error) {
	if messageLimit >= 0 {
		return messageLimit, nil
	}

	size, err := approximateQueueSize(ctx, r.client, queueURL)
	if err != nil {
		return 0, err
	}
	log.Info().Str("queue", queueName).Int("approximate_size", size).Msg("No limit given, draining current queue depth")
	return size, nil
}

func (r *Relay) recordRound(ctx context.Context, report *RelayReport, sourceQueue string, relayed []Message) {
	if r.journal == nil || len(relayed) == 0 {
		return
	}

	entries := make([]JournalEntry, 0, len(relayed))
	now := time.Now()
	for _, message := range relayed {
		entries = append(entries, JournalEntry{
			MessageID:   message.ID,
			RunID:       report.RunID,
			SourceQueue: sourceQueue,
			Mode:        report.Mode,
			RelayedAt:   now,
		})
	}

	if err := r.journal.Record(ctx, entries); err != nil {
		log.Error().Err(err).Int("count", len(entries)).Msg("Failed to record journal entries")
	}
}

// prunes journal entries older than the configured retention so the
// persistent variants do not grow without bound across runs
func (r *Relay) cleanupJournal(ctx context.Context) {
	if r.journal == nil {
		return
	}

	retention := r.journalRetention
	if retention <= 0 {
		retention = defaultJournalRetention
	}

	if err := r.journal.Cleanup(ctx, retention); err != nil {
		log.Error().Err(err).Msg("Failed to clean up journal")
	}
}
