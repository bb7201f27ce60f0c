package referrals

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/pkg/config"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines referral program operations.
type Service interface {
	GenerateLink(ctx context.Context, userID uuid.UUID) (*LinkView, error)
	Invite(ctx context.Context, params InviteParams) (*ReferralView, error)
	Complete(ctx context.Context, params CompleteParams) error
	Stats(ctx context.Context, userID uuid.UUID) (*StatsView, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	cfg    config.ReferralsConfig
}

// LinkView carries a user's stable referral code and shareable link.
type LinkView struct {
	Code string `json:"code"`
	Link string `json:"link"`
}

// InviteParams records a referred email before the signup lands.
type InviteParams struct {
	ReferrerID    uuid.UUID
	ReferredEmail string
}

// CompleteParams attributes a finished signup to a referral code.
type CompleteParams struct {
	Code           string
	ReferredUserID uuid.UUID
	ReferredEmail  string
}

// ReferralView is the API projection of one referred signup.
type ReferralView struct {
	ID            uuid.UUID  `json:"id"`
	ReferredEmail string     `json:"referredEmail"`
	Status        string     `json:"status"`
	PointsAwarded int        `json:"pointsAwarded"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// StatsView aggregates a user's referral standing.
type StatsView struct {
	TotalPoints   int      `json:"totalPoints"`
	ReferralCount int      `json:"referralCount"`
	Tier          TierInfo `json:"tier"`
}

// LeaderboardEntry is one pre-sorted leaderboard row.
type LeaderboardEntry struct {
	UserID        uuid.UUID `json:"userId"`
	TotalPoints   int       `json:"totalPoints"`
	ReferralCount int       `json:"referralCount"`
	Tier          Tier      `json:"tier"`
}

const defaultLeaderboardLimit = 20

// NewService wires referral dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, cfg config.ReferralsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("referrals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cfg.PointsPerReferral <= 0 {
		return nil, fmt.Errorf("points per referral must be positive")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, cfg: cfg}, nil
}

// CodeFor derives the stable referral code for a user. Deterministic so
// regenerating a link never invalidates previously shared ones.
func CodeFor(userID uuid.UUID) string {
	sum := sha256.Sum256(userID[:])
	return strings.ToUpper(hex.EncodeToString(sum[:4]))
}

func (s *service) GenerateLink(ctx context.Context, userID uuid.UUID) (*LinkView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	code := CodeFor(userID)
	err := s.repo.UpsertAccount(ctx, &models.ReferralAccount{
		UserID: userID,
		Code:   code,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert referral account")
	}

	return &LinkView{
		Code: code,
		Link: fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.LinkBaseURL, "/"), code),
	}, nil
}

func (s *service) Invite(ctx context.Context, params InviteParams) (*ReferralView, error) {
	if params.ReferrerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	email := strings.ToLower(strings.TrimSpace(params.ReferredEmail))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid email required")
	}

	referral := &models.Referral{
		ReferrerID:    params.ReferrerID,
		ReferredEmail: email,
		Status:        models.ReferralStatusPending,
	}
	if err := s.repo.CreateReferral(ctx, referral); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create referral")
	}
	view := buildReferralView(referral)
	return &view, nil
}

func (s *service) Complete(ctx context.Context, params CompleteParams) error {
	code := strings.ToUpper(strings.TrimSpace(params.Code))
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "referral code required")
	}
	if params.ReferredUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "referred user id required")
	}
	email := strings.ToLower(strings.TrimSpace(params.ReferredEmail))

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account, err := repo.FindAccountByCode(ctx, code)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "referral code not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referral account")
		}
		if account.UserID == params.ReferredUserID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot refer yourself")
		}

		referral, err := repo.FindReferral(ctx, account.UserID, email)
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referral")
			}
			referral = &models.Referral{
				ReferrerID:    account.UserID,
				ReferredEmail: email,
				Status:        models.ReferralStatusPending,
			}
			if err := repo.CreateReferral(ctx, referral); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create referral")
			}
		}
		if referral.Status == models.ReferralStatusCompleted {
			return nil
		}

		now := time.Now()
		points := s.cfg.PointsPerReferral
		if err := repo.CompleteReferral(ctx, referral.ID, params.ReferredUserID, points, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete referral")
		}
		if err := repo.AddPoints(ctx, account.UserID, points); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "award points")
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReferralCompleted,
			AggregateType: enums.AggregateReferral,
			AggregateID:   referral.ID,
			Actor:         &outbox.ActorRef{UserID: params.ReferredUserID},
			Version:       1,
			Data: payloads.ReferralCompletedEvent{
				ReferralID:    referral.ID,
				ReferrerID:    account.UserID,
				ReferredID:    params.ReferredUserID,
				PointsAwarded: points,
				TotalPoints:   account.TotalPoints + points,
			},
		})
	})
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*StatsView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &StatsView{Tier: TierFor(0)}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referral account")
	}

	return &StatsView{
		TotalPoints:   account.TotalPoints,
		ReferralCount: account.ReferralCount,
		Tier:          TierFor(account.TotalPoints),
	}, nil
}

func (s *service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultLeaderboardLimit
	}

	accounts, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load leaderboard")
	}

	entries := make([]LeaderboardEntry, 0, len(accounts))
	for _, account := range accounts {
		entries = append(entries, LeaderboardEntry{
			UserID:        account.UserID,
			TotalPoints:   account.TotalPoints,
			ReferralCount: account.ReferralCount,
			Tier:          TierFor(account.TotalPoints).Tier,
		})
	}
	return entries, nil
}

func buildReferralView(referral *models.Referral) ReferralView {
	return ReferralView{
		ID:            referral.ID,
		ReferredEmail: referral.ReferredEmail,
		Status:        referral.Status,
		PointsAwarded: referral.PointsAwarded,
		CompletedAt:   referral.CompletedAt,
		CreatedAt:     referral.CreatedAt,
	}
}
