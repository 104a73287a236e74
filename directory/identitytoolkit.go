package directory

import (
	"context"

	"github.com/arloliu/fanout/identitytoolkit"
	"github.com/arloliu/fanout/types"
)

// IdentityToolkit lists and creates the tenants of a Google Cloud Identity
// Platform project.
//
// Partition IDs are the server-assigned tenant IDs; display names are the
// tenant display names.
type IdentityToolkit struct {
	client *identitytoolkit.Client
}

var _ types.PartitionDirectory = (*IdentityToolkit)(nil)

// NewIdentityToolkit wraps an Identity Toolkit client as a partition directory.
//
// Example:
//
//	client, err := identitytoolkit.New(ctx, projectID, identitytoolkit.WithHTTPClient(hc))
//	if err != nil { /* handle */ }
//	dir := directory.NewIdentityToolkit(client)
func NewIdentityToolkit(client *identitytoolkit.Client) *IdentityToolkit {
	return &IdentityToolkit{client: client}
}

// ListPartitionsPage returns one page of tenants.
func (d *IdentityToolkit) ListPartitionsPage(ctx context.Context, pageToken string) (types.Page, error) {
	page, err := d.client.ListTenants(ctx, pageToken)
	if err != nil {
		return types.Page{}, err
	}

	partitions := make([]types.Partition, 0, len(page.Tenants))
	for _, t := range page.Tenants {
		partitions = append(partitions, toPartition(t))
	}

	return types.Page{Partitions: partitions, NextPageToken: page.NextPageToken}, nil
}

// CreatePartition creates a tenant with the given display name and settings.
func (d *IdentityToolkit) CreatePartition(ctx context.Context, displayName string, cfg types.PartitionConfig) (types.Partition, error) {
	t, err := d.client.CreateTenant(ctx, identitytoolkit.Tenant{
		DisplayName:           displayName,
		AllowPasswordSignup:   cfg.AllowPasswordSignup,
		EnableEmailLinkSignin: cfg.EnableEmailLinkSignin,
	})
	if err != nil {
		return types.Partition{}, err
	}

	return toPartition(t), nil
}

func toPartition(t identitytoolkit.Tenant) types.Partition {
	return types.Partition{ID: t.ID(), DisplayName: t.DisplayName}
}
