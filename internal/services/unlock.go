package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/amaumene/miaou/internal/cache"
	apperrors "github.com/amaumene/miaou/internal/errors"
	"github.com/amaumene/miaou/internal/models"
	"github.com/amaumene/miaou/pkg/logger"
)

// EncodeToken serializes t as unpadded base64url JSON. Equal tokens encode to
// equal strings.
func EncodeToken(t models.UnlockToken) string {
	data, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken. Padded input is
// accepted.
func DecodeToken(s string) (models.UnlockToken, error) {
	var t models.UnlockToken

	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return t, apperrors.NewInvalidTokenError(errors.New("empty token"))
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return t, apperrors.NewInvalidTokenError(err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, apperrors.NewInvalidTokenError(err)
	}
	if t.AllDebridLink == "" {
		return t, apperrors.NewInvalidTokenError(errors.New("token has no link"))
	}
	return t, nil
}

type linkUnlocker interface {
	UnlockLink(ctx context.Context, link, apiKey string) (string, error)
}

// UnlockService turns deferred tokens into direct URLs on playback.
type UnlockService struct {
	debrid linkUnlocker
	cache  *cache.Manager
	logger logger.Logger
}

func NewUnlockService(debrid linkUnlocker, c *cache.Manager, log logger.Logger) *UnlockService {
	return &UnlockService{debrid: debrid, cache: c, logger: log}
}

// Unlock decodes token and returns the direct URL of its file. Results are
// cached briefly so repeated plays do not unlock again.
func (u *UnlockService) Unlock(ctx context.Context, token, apiKey string) (string, error) {
	t, err := DecodeToken(token)
	if err != nil {
		return "", err
	}

	key := cache.UnlockKey(t.AllDebridLink)
	if direct, ok := cache.Lookup[string](u.cache, key); ok {
		u.logger.Debugf("[Unlock] cache hit for %s", t.FileName)
		return direct, nil
	}

	direct, err := u.debrid.UnlockLink(ctx, t.AllDebridLink, apiKey)
	if err != nil {
		u.logger.Errorf("[Unlock] failed to unlock %s: %v", t.FileName, err)
		return "", err
	}

	u.cache.Set(key, direct)
	u.logger.Infof("[Unlock] %s unlocked (%s)", t.FileName, t.Source)
	return direct, nil
}
