package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/voyantlabs/advisory-pipeline/internal/report"
)

// PubSubSink publishes run reports to a Google Cloud Pub/Sub topic so
// downstream consumers can react to advisory changes.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubSink connects a Pub/Sub client and resolves the topic handle.
func NewPubSubSink(ctx context.Context, projectID, topicName string) (*PubSubSink, error) {
	if projectID == "" || topicName == "" {
		return nil, fmt.Errorf("report.project_id and report.topic_name are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSubSink{client: client, topic: client.Topic(topicName)}, nil
}

// Publish marshals the report to JSON and publishes it, blocking until the
// server acknowledges the message.
func (s *PubSubSink) Publish(ctx context.Context, rep report.RunReport) error {
	if err := rep.Validate(); err != nil {
		return fmt.Errorf("invalid run report: %w", err)
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": rep.RunID.String(),
		},
	}
	if _, err := s.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish run report: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (s *PubSubSink) Close(context.Context) error {
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
