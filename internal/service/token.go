package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mealplanner/auth-service/internal/cache"
	"github.com/mealplanner/auth-service/internal/models"
	"github.com/mealplanner/auth-service/internal/pkg/log"
	"github.com/mealplanner/auth-service/internal/storage"
	"github.com/mealplanner/auth-service/internal/token"
)

// hashRefreshToken — sha256 от refresh-токена в base64url.
// В БД и кэше токен фигурирует только в виде этого хэша.
func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// validateAccessToken проверяет access-токен через подписывающий модуль.
func (s *Service) validateAccessToken(raw string) (*models.Claims, error) {
	const op = "service.token.validateAccessToken"

	claims, err := s.tokens.Verify(raw, token.TypeAccess)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// validateRefreshToken проверяет refresh-токен: сначала подпись и срок
// (подписывающий модуль), затем серверную запись — отозванный при ротации
// токен отбрасывается здесь, даже если криптографически он ещё валиден.
func (s *Service) validateRefreshToken(ctx context.Context, raw string) (*models.RefreshToken, error) {
	const op = "service.token.validateRefreshToken"

	lg := log.From(ctx)

	if _, err := s.tokens.Verify(raw, token.TypeRefresh); err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	hash := hashRefreshToken(raw)

	// Кэш — только быстрый отказ; положительное решение всегда за БД.
	if s.rcache != nil {
		entry, ok, err := s.rcache.Get(ctx, hash)
		if err != nil {
			lg.Warn("refresh_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok && entry.Revoked {
			lg.Warn("refresh_revoked_cached", slog.String("op", op))
			return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}
	}

	record, err := s.storage.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found", slog.String("op", op))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if record.Revoked {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("user_id", record.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	if time.Now().UTC().After(record.ExpiresAt) {
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", record.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	return record, nil
}

// issueTokenPair выпускает новую пару access+refresh токенов.
// Если oldRefreshHash != "", сначала атомарно отзывает старый refresh-токен
// (ротация): проигравший гонку повторный запрос с тем же токеном получит
// ErrTokenRevoked, второй пары не возникнет.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User, oldRefreshHash string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.issueTokenPair"

	lg := log.From(ctx)

	if oldRefreshHash != "" {
		revoked, err := s.storage.RevokeRefreshTokenIfActive(ctx, oldRefreshHash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}

		if !revoked {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}

		s.markRevokedInCache(ctx, oldRefreshHash)
	}

	accessToken, accessExpiresAt, err := s.tokens.Sign(user.ID, user.Username, token.TypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, refreshExpiresAt, err := s.tokens.Sign(user.ID, user.Username, token.TypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		lg.Error("refresh_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	newHash := hashRefreshToken(refreshToken)

	record := &models.RefreshToken{
		RefreshTokenHash: newHash,
		UserID:           user.ID,
		CreatedAt:        now,
		ExpiresAt:        refreshExpiresAt,
		Revoked:          false,
	}

	if err := s.storage.SaveRefreshToken(ctx, record); err != nil {
		lg.Error("save_refresh_token_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.rcache != nil {
		entry := &cache.RefreshEntry{
			UserID:    user.ID,
			Revoked:   false,
			ExpiresAt: refreshExpiresAt,
		}
		if err := s.rcache.Set(ctx, newHash, entry, time.Until(refreshExpiresAt)); err != nil {
			lg.Warn("refresh_cache_set_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExpiresAt,
	}, user.ID, nil
}

// markRevokedInCache — best-effort пометка отзыва в кэше.
func (s *Service) markRevokedInCache(ctx context.Context, hash string) {
	if s.rcache == nil {
		return
	}

	if err := s.rcache.MarkRevoked(ctx, hash); err != nil {
		log.From(ctx).Warn("refresh_cache_revoke_failed",
			slog.String("err", err.Error()),
		)
	}
}
