package services

import (
	"context"
	"sync"

	"github.com/amaumene/miaou/internal/database"
)

func (c *CleanupService) fetchOldMagnets() ([]database.Magnet, error) {
	c.mu.Lock()
	retention := c.retentionPeriod
	c.mu.Unlock()

	oldMagnets, err := c.db.GetOldMagnets(retention)
	if err != nil {
		c.logger.Errorf("[Cleanup] failed to get old magnets: %v", err)
		return nil, err
	}

	if len(oldMagnets) == 0 {
		c.logger.Debugf("[Cleanup] no old magnets to clean up")
		return nil, nil
	}

	c.logger.Infof("[Cleanup] found %d magnets older than %v", len(oldMagnets), retention)
	return oldMagnets, nil
}

func (c *CleanupService) groupMagnetsByFingerprint(magnets []database.Magnet) map[string][]database.Magnet {
	byKey := make(map[string][]database.Magnet)
	for _, magnet := range magnets {
		if magnet.KeyFingerprint != "" {
			byKey[magnet.KeyFingerprint] = append(byKey[magnet.KeyFingerprint], magnet)
		}
	}
	return byKey
}

// cleanupDebridConcurrently deletes each group with its registered key and
// returns the magnets that can leave the ledger. Groups whose key is unknown
// to this process are kept.
func (c *CleanupService) cleanupDebridConcurrently(ctx context.Context, byKey map[string][]database.Magnet) []database.Magnet {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		removable []database.Magnet
	)
	for fp, magnets := range byKey {
		apiKey, ok := c.keys.Lookup(fp)
		if !ok {
			c.logger.Debugf("[Cleanup] key %s not registered, keeping %d magnets", fp, len(magnets))
			continue
		}

		wg.Add(1)
		go func(fp, apiKey string, mags []database.Magnet) {
			defer wg.Done()
			if c.cleanupDebridMagnets(ctx, fp, apiKey, mags) {
				mu.Lock()
				removable = append(removable, mags...)
				mu.Unlock()
			}
		}(fp, apiKey, magnets)
	}
	wg.Wait()
	return removable
}

func (c *CleanupService) cleanupDebridMagnets(ctx context.Context, fingerprint, apiKey string, magnets []database.Magnet) bool {
	ids := make([]int64, 0, len(magnets))
	deleted := make([]DeletedMagnet, 0, len(magnets))
	for _, m := range magnets {
		if m.DebridID != 0 {
			ids = append(ids, m.DebridID)
		}
		deleted = append(deleted, DeletedMagnet{Hash: m.Hash, DebridID: m.DebridID})
	}

	if err := c.debrid.DeleteMagnets(ctx, ids, apiKey); err != nil {
		c.logger.Warnf("[Cleanup] failed to delete %d magnets for key %s: %v", len(ids), c.validator.MaskAPIKey(apiKey), err)
		return false
	}
	c.debrid.Forget(fingerprint, deleted)
	c.logger.Debugf("[Cleanup] deleted %d magnets for key %s", len(ids), c.validator.MaskAPIKey(apiKey))
	return true
}

func (c *CleanupService) deleteMagnetsFromDatabase(magnets []database.Magnet) int {
	cleaned := 0
	for _, magnet := range magnets {
		if err := c.db.DeleteMagnet(magnet.ID); err != nil {
			c.logger.Errorf("[Cleanup] failed to delete magnet %s from ledger: %v", magnet.ID, err)
		} else {
			cleaned++
		}
	}
	return cleaned
}
