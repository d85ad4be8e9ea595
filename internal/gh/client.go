// Package gh provides a GraphQL client for the GitHub Projects v2 API and a
// card source that presents a project as a board: the options of a
// single-select field are the lists, project items are the cards.
package gh

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"

	"github.com/h0rv/sumup/internal/auth"
)

// DefaultEndpoint is the GitHub GraphQL API.
const DefaultEndpoint = "https://api.github.com/graphql"

// Client is a GitHub GraphQL API client for Projects v2.
type Client struct {
	gql   *graphql.Client
	token string
}

// New creates a client for endpoint authenticated with token. An empty
// endpoint selects DefaultEndpoint.
func New(endpoint, token string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		gql:   graphql.NewClient(endpoint),
		token: token,
	}
}

// NewFromAuth creates a client for the public API, resolving the token
// through the auth providers. configured may be empty.
func NewFromAuth(configured string) (*Client, error) {
	token, err := auth.GetToken(configured)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain GitHub token: %w", err)
	}
	return New(DefaultEndpoint, token), nil
}

// makeRequest executes a GraphQL request with authentication.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.gql.Run(ctx, req, resp)
}
