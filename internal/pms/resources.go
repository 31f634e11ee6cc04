package pms

import (
	"context"
	"fmt"
)

// ListProviders lists the practice's providers.
// GET /providers
func (c *Client) ListProviders(ctx context.Context) ([]Resource, error) {
	providers, err := listAll[Resource](ctx, c, "list_providers", "/providers", "providers", nil)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

// ListOperatories lists the practice's operatories.
// GET /operatories
func (c *Client) ListOperatories(ctx context.Context) ([]Resource, error) {
	ops, err := listAll[Resource](ctx, c, "list_operatories", "/operatories", "operatories", nil)
	if err != nil {
		return nil, fmt.Errorf("list operatories: %w", err)
	}
	return ops, nil
}
