// Package pubsub connects to Google Cloud Pub/Sub and hands out one publisher per topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("pubsub: gcp project id required")
	errNoTopics          = errors.New("pubsub: no topics configured")
	errClosed            = errors.New("pubsub: client not connected")
)

// Client publishes to a fixed set of topics that must already exist.
type Client struct {
	conn    *gcppubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

// NewClient dials Pub/Sub and fails unless every topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, topics []string, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	names := resourceNames(project, topics)
	if len(names) == 0 {
		return nil, errNoTopics
	}

	conn, err := gcppubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}
	c := &Client{conn: conn, project: project, topics: names, publishers: map[string]*gcppubsub.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", names), "pubsub ready")
	}
	return c, nil
}

// Ping checks every configured topic concurrently.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errClosed
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range c.topics {
		g.Go(func() error {
			_, err := c.conn.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
			switch {
			case status.Code(err) == codes.NotFound:
				return fmt.Errorf("pubsub: topic %s does not exist", name)
			case err != nil:
				return fmt.Errorf("pubsub: get topic %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Publisher returns the shared publisher for a topic id or full resource name,
// or nil when the name is blank or the client is closed.
func (c *Client) Publisher(topic string) *gcppubsub.Publisher {
	if c == nil || c.conn == nil {
		return nil
	}
	name := resourceName(c.project, topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p
	}
	p := c.conn.Publisher(name)
	c.publishers[name] = p
	return p
}

// Close flushes pending messages on every publisher, then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = map[string]*gcppubsub.Publisher{}
	c.mu.Unlock()
	return c.conn.Close()
}

func resourceNames(project string, topics []string) []string {
	seen := make(map[string]bool, len(topics))
	var out []string
	for _, t := range topics {
		if name := resourceName(project, t); name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// resourceName expands a bare topic id to projects/{project}/topics/{id}.
func resourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case project == "":
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
