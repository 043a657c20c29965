package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Runner executes one Cypher query and returns its records as maps.
// *Client implements it against Neo4j, tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error)
}

// Client wraps the Neo4j driver with connectivity checks and record
// conversion.
type Client struct {
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
	database string
}

// NewClient connects to Neo4j and verifies connectivity before
// returning, so a bad sink fails the run before any source request.
func NewClient(ctx context.Context, uri, user, password, database string) (*Client, error) {
	if uri == "" || user == "" {
		return nil, errors.ConfigurationErrorf("neo4j connection settings missing: uri=%q user=%q", uri, user)
	}

	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(user, password, ""),
		func(config *neo4j.Config) {
			// The pipelines run strictly serially, a small pool is plenty
			config.MaxConnectionPoolSize = 10
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.SinkUnavailablef(err, "failed to create neo4j driver for %s", uri)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.SinkUnavailablef(err, "failed to connect to neo4j at %s", uri)
	}

	logger := slog.Default().With("component", "neo4j")
	logger.Info("neo4j client connected", "uri", uri, "user", user, "database", database)

	return &Client{
		driver:   driver,
		logger:   logger,
		database: database,
	}, nil
}

// Run executes a Cypher query against the configured database and
// returns the records converted to maps.
func (c *Client) Run(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database))
	if err != nil {
		return nil, errors.SinkUnavailablef(err, "neo4j query failed: %s", cypher)
	}

	records := make([]map[string]interface{}, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, record.AsMap())
	}

	c.logger.Debug("query executed", "records", len(records))
	return records, nil
}

// Database returns the configured database name.
func (c *Client) Database() string {
	return c.database
}

// Close closes the Neo4j driver connection.
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return errors.SinkUnavailablef(err, "failed to close neo4j driver")
	}
	c.logger.Info("neo4j client closed")
	return nil
}
