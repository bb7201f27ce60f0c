package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/estatehubhq/estatehub-backend/internal/referrals"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
)

type testReferralsService struct {
	generateLinkFn func(ctx context.Context, userID uuid.UUID) (*referrals.LinkView, error)
	inviteFn       func(ctx context.Context, params referrals.InviteParams) (*referrals.ReferralView, error)
	completeFn     func(ctx context.Context, params referrals.CompleteParams) error
	statsFn        func(ctx context.Context, userID uuid.UUID) (*referrals.StatsView, error)
	leaderboardFn  func(ctx context.Context, limit int) ([]referrals.LeaderboardEntry, error)
}

func (s *testReferralsService) GenerateLink(ctx context.Context, userID uuid.UUID) (*referrals.LinkView, error) {
	if s.generateLinkFn != nil {
		return s.generateLinkFn(ctx, userID)
	}
	return &referrals.LinkView{}, nil
}

func (s *testReferralsService) Invite(ctx context.Context, params referrals.InviteParams) (*referrals.ReferralView, error) {
	if s.inviteFn != nil {
		return s.inviteFn(ctx, params)
	}
	return &referrals.ReferralView{}, nil
}

func (s *testReferralsService) Complete(ctx context.Context, params referrals.CompleteParams) error {
	if s.completeFn != nil {
		return s.completeFn(ctx, params)
	}
	return nil
}

func (s *testReferralsService) Stats(ctx context.Context, userID uuid.UUID) (*referrals.StatsView, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx, userID)
	}
	return &referrals.StatsView{}, nil
}

func (s *testReferralsService) Leaderboard(ctx context.Context, limit int) ([]referrals.LeaderboardEntry, error) {
	if s.leaderboardFn != nil {
		return s.leaderboardFn(ctx, limit)
	}
	return nil, nil
}

func TestCompleteReferralAttributesCaller(t *testing.T) {
	referredID := uuid.New()
	var got referrals.CompleteParams
	svc := &testReferralsService{
		completeFn: func(ctx context.Context, params referrals.CompleteParams) error {
			got = params
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/referrals/complete", `{"code":"A1B2C3D4","email":"new.buyer@example.com"}`, referredID, enums.ActorRoleBuyer)
	resp := httptest.NewRecorder()
	CompleteReferral(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if got.Code != "A1B2C3D4" || got.ReferredEmail != "new.buyer@example.com" {
		t.Fatalf("unexpected params %+v", got)
	}
	if got.ReferredUserID != referredID {
		t.Fatal("referred user must come from the auth context, not the body")
	}
}

func TestCompleteReferralRequiresCode(t *testing.T) {
	svc := &testReferralsService{
		completeFn: func(ctx context.Context, params referrals.CompleteParams) error {
			t.Fatal("service should not be reached")
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/referrals/complete", `{"email":"new.buyer@example.com"}`, uuid.New(), enums.ActorRoleBuyer)
	resp := httptest.NewRecorder()
	CompleteReferral(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d (%s)", resp.Code, resp.Body.String())
	}
}
