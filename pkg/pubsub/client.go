package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub settlement topic is required")
)

// Client publishes settlement events to Pub/Sub. Downstream consumers
// (analytics, tax reporting) subscribe to the settlement topic; the API never
// reads from it.
type Client struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	projectID string
	topic     string
}

// NewClient creates a Pub/Sub v2 client and verifies the settlement topic exists.
func NewClient(ctx context.Context, projectID string, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.SettlementTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: projectID,
		topic:     topic,
	}

	if err := c.ensureTopicExists(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	c.publisher = psClient.Publisher(c.topicResourceName())

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

// Publish sends one JSON-encoded settlement event, tagged with its type.
// Returns the server-assigned message ID.
func (c *Client) Publish(ctx context.Context, eventType string, payload any) (string, error) {
	if c == nil || c.publisher == nil {
		return "", errors.New("pubsub client not initialized")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode settlement event: %w", err)
	}
	result := c.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"event_type": eventType},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish settlement event: %w", err)
	}
	return id, nil
}

// Ping verifies Pub/Sub connectivity by checking the settlement topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureTopicExists(ctx)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

func (c *Client) ensureTopicExists(ctx context.Context) error {
	_, err := c.client.TopicAdminClient.GetTopic(
		ctx,
		&pubsubpb.GetTopicRequest{Topic: c.topicResourceName()},
	)
	if err != nil {
		// v2 uses gRPC errors; NotFound means the topic doesn't exist.
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", c.topic)
		}
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
	return nil
}

func (c *Client) topicResourceName() string {
	n := strings.TrimSpace(c.topic)
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.projectID, n)
}
