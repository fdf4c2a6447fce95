package app

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

// DeriverHandler is the Lambda entry point for object-store notifications.
// Returning the joined error lets the platform retry or dead-letter the event.
func (a *App) DeriverHandler() func(context.Context, DeriverPayload) error {
	return func(ctx context.Context, payload DeriverPayload) error {
		_, err := a.HandleS3Event(ctx, payload)
		return err
	}
}

// IndexerHandler is the Lambda entry point for record-store stream batches.
func (a *App) IndexerHandler() func(context.Context, events.DynamoDBEvent) error {
	return a.HandleStreamEvent
}
