// Package share manages public shares, including the system-generated
// ones that back cover art links.
package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"melodex/internal/catalog"
	"melodex/internal/logging"
)

// Manager creates and looks up shares.
type Manager struct {
	catalog *catalog.Catalog
}

// NewManager creates a share Manager over the catalog.
func NewManager(c *catalog.Catalog) *Manager {
	return &Manager{catalog: c}
}

// GetOrCreate returns the share for a cover, creating it under the
// admin account if none exists. Repeated calls for the same cover
// return the same share. Returns (nil, nil) when no admin account
// exists; auto-sharing silently waits for one to be created.
func (m *Manager) GetOrCreate(ctx context.Context, coverID string) (*catalog.Share, error) {
	shareID, err := m.catalog.GetAutoShare(ctx, coverID)
	if err == nil {
		existing, getErr := m.catalog.GetShare(ctx, shareID)
		if getErr == nil {
			return existing, nil
		}
		if !errors.Is(getErr, catalog.ErrNotFound) && !catalog.IsMalformed(getErr) {
			return nil, getErr
		}
		// Index points at a share that no longer decodes; recreate.
		logging.Warn("Auto-share index for cover %s names missing share %s, recreating", coverID, shareID)
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}

	admin, err := m.catalog.FindAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		logging.Debug("No admin account, skipping auto-share for cover %s", coverID)
		return nil, nil
	}

	s := &catalog.Share{
		ID:       uuid.NewString(),
		Username: admin.Username,
		ItemID:   coverID,
		ItemType: catalog.ItemTypeCoverArt,
		Created:  time.Now(),
	}
	if err := m.catalog.PutShare(ctx, s); err != nil {
		return nil, fmt.Errorf("create auto-share: %w", err)
	}
	if err := m.catalog.PutAutoShare(ctx, coverID, s.ID); err != nil {
		return nil, fmt.Errorf("index auto-share: %w", err)
	}
	return s, nil
}

// EnsureAll walks every persisted cover and ensures each has an
// auto-share. Called after a scan completes.
func (m *Manager) EnsureAll(ctx context.Context) (created int, err error) {
	err = m.catalog.EachCover(ctx, func(cov *catalog.CoverArt) error {
		_, lookupErr := m.catalog.GetAutoShare(ctx, cov.ID)
		if lookupErr == nil {
			return nil
		}
		if !errors.Is(lookupErr, catalog.ErrNotFound) {
			return lookupErr
		}
		s, createErr := m.GetOrCreate(ctx, cov.ID)
		if createErr != nil {
			return createErr
		}
		if s != nil {
			created++
		}
		return nil
	})
	if created > 0 {
		logging.Info("Created %d auto-shares for cover art", created)
	}
	return created, err
}
