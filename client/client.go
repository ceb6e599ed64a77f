// Package client bundles a set of vaults and a TTL store under one
// identity, and implements their stable binary serialization for the
// snapshot codec.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/ladzaretti/strongbox/store"
	"github.com/ladzaretti/strongbox/vault"
	"github.com/ladzaretti/strongbox/vaultid"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

// Client owns a set of vaults and a key-value store, all addressed
// under one client identity.
type Client struct {
	id vaultid.ClientId

	mu     sync.RWMutex
	vaults map[vaultid.VaultId]*vault.Vault
	store  *store.Store
}

// New returns an empty client identified by id.
func New(id vaultid.ClientId) *Client {
	return &Client{
		id:     id,
		vaults: make(map[vaultid.VaultId]*vault.Vault),
		store:  store.New(),
	}
}

// Id returns the client's identifier.
func (c *Client) Id() vaultid.ClientId { return c.id }

// Store returns the client's TTL-backed key-value store.
func (c *Client) Store() *store.Store { return c.store }

// CreateVault creates and registers a fresh vault under id. It fails if
// id is already in use by this client.
func (c *Client) CreateVault(id vaultid.VaultId) (*vault.Vault, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.vaults[id]; ok {
		return nil, fmt.Errorf("client: create vault %s: %w", id, vaulterrors.ErrExists)
	}

	v, err := vault.New(id)
	if err != nil {
		return nil, fmt.Errorf("client: create vault %s: %w", id, err)
	}

	c.vaults[id] = v

	return v, nil
}

// Vault returns the vault registered under id.
func (c *Client) Vault(id vaultid.VaultId) (*vault.Vault, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.vaults[id]
	if !ok {
		return nil, fmt.Errorf("client: vault %s: %w", id, vaulterrors.ErrNoVault)
	}

	return v, nil
}

// Vaults returns every registered vault id.
func (c *Client) Vaults() []vaultid.VaultId {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]vaultid.VaultId, 0, len(c.vaults))
	for id := range c.vaults {
		out = append(out, id)
	}

	return out
}

// DropVault clears and unregisters the vault at id.
func (c *Client) DropVault(ctx context.Context, id vaultid.VaultId) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.vaults[id]
	if !ok {
		return fmt.Errorf("client: drop vault %s: %w", id, vaulterrors.ErrNoVault)
	}

	if err := v.Clear(ctx); err != nil {
		return fmt.Errorf("client: drop vault %s: %w", id, err)
	}

	delete(c.vaults, id)

	return nil
}
