package appointments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/internal/transactions"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/pagination"
	"github.com/estatehubhq/estatehub-backend/pkg/stage"
)

type fakeRepository struct {
	createFn       func(ctx context.Context, appointment *models.Appointment) error
	findByIDFn     func(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	listFn         func(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, status enums.AppointmentStatus, notes *string) error
	findLeadFn     func(ctx context.Context, id uuid.UUID) (*models.Lead, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if f.createFn != nil {
		return f.createFn(ctx, appointment)
	}
	appointment.ID = uuid.New()
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) List(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.AppointmentStatus, notes *string) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status, notes)
	}
	return nil
}

func (f *fakeRepository) FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	if f.findLeadFn != nil {
		return f.findLeadFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindScheduledBefore(ctx context.Context, cutoff time.Time) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeRepository) UpdateStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.AppointmentStatus, notes *string) error {
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeAdvancer struct {
	calls []transactions.AdvanceParams
	err   error
}

func (f *fakeAdvancer) Advance(ctx context.Context, params transactions.AdvanceParams) (*transactions.TransactionView, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return &transactions.TransactionView{}, nil
}

func newTestService(t *testing.T, repo Repository, ob *fakeOutbox, advancer transactionAdvancer) Service {
	t.Helper()
	if ob == nil {
		ob = &fakeOutbox{}
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, fakeTxRunner{}, ob, advancer, logg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func scheduledAppointment() *models.Appointment {
	return &models.Appointment{
		ID:          uuid.New(),
		LeadID:      uuid.New(),
		PropertyID:  uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Status:      enums.AppointmentStatusScheduled,
	}
}

func TestService_ScheduleEmitsEvent(t *testing.T) {
	lead := &models.Lead{
		ID:         uuid.New(),
		PropertyID: uuid.New(),
		BuyerID:    uuid.New(),
		SellerID:   uuid.New(),
		Status:     enums.LeadStatusContacted,
	}
	repo := &fakeRepository{
		findLeadFn: func(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
			return lead, nil
		},
	}
	ob := &fakeOutbox{}
	svc := newTestService(t, repo, ob, nil)

	view, err := svc.Schedule(context.Background(), ScheduleParams{
		LeadID:      lead.ID,
		ViewerID:    lead.BuyerID,
		ViewerRole:  enums.ActorRoleBuyer,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != enums.AppointmentStatusScheduled {
		t.Fatalf("expected scheduled, got %s", view.Status)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventAppointmentStatusChange {
		t.Fatalf("expected status change event, got %+v", ob.events)
	}
}

func TestService_SchedulePastTimeRejected(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, nil)
	_, err := svc.Schedule(context.Background(), ScheduleParams{
		LeadID:      uuid.New(),
		ViewerID:    uuid.New(),
		ViewerRole:  enums.ActorRoleBuyer,
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_ConfirmAdvancesLaggingTransaction(t *testing.T) {
	appointment := scheduledAppointment()
	transactionID := uuid.New()
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
			return appointment, nil
		},
		findLeadFn: func(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
			return &models.Lead{
				ID: appointment.LeadID,
				Transaction: &models.Transaction{
					ID:     transactionID,
					Status: models.TransactionStatusActive,
					Stage:  stage.Pending.String(),
				},
			}, nil
		},
	}
	advancer := &fakeAdvancer{}
	svc := newTestService(t, repo, nil, advancer)

	view, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
		AppointmentID: appointment.ID,
		ViewerID:      appointment.SellerID,
		ViewerRole:    enums.ActorRoleSeller,
		Status:        "confirmed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != enums.AppointmentStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", view.Status)
	}
	if len(advancer.calls) != 1 {
		t.Fatalf("expected 1 advance call, got %d", len(advancer.calls))
	}
	if advancer.calls[0].TransactionID != transactionID || advancer.calls[0].Stage != stage.MeetingScheduled.String() {
		t.Fatalf("unexpected advance params: %+v", advancer.calls[0])
	}
}

func TestService_ConfirmSurvivesAdvanceFailure(t *testing.T) {
	appointment := scheduledAppointment()
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
			return appointment, nil
		},
		findLeadFn: func(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
			return &models.Lead{
				ID: appointment.LeadID,
				Transaction: &models.Transaction{
					ID:     uuid.New(),
					Status: models.TransactionStatusActive,
					Stage:  stage.Pending.String(),
				},
			}, nil
		},
	}
	advancer := &fakeAdvancer{err: pkgerrors.New(pkgerrors.CodeStateConflict, "transaction stage changed concurrently")}
	svc := newTestService(t, repo, nil, advancer)

	view, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
		AppointmentID: appointment.ID,
		ViewerID:      appointment.SellerID,
		ViewerRole:    enums.ActorRoleSeller,
		Status:        "confirmed",
	})
	if err != nil {
		t.Fatalf("confirm must not fail on advance error: %v", err)
	}
	if view.Status != enums.AppointmentStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", view.Status)
	}
	if len(advancer.calls) != 1 {
		t.Fatalf("expected 1 advance attempt, got %d", len(advancer.calls))
	}
}

func TestService_ConfirmSkipsAdvanceWhenAhead(t *testing.T) {
	appointment := scheduledAppointment()
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
			return appointment, nil
		},
		findLeadFn: func(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
			return &models.Lead{
				ID: appointment.LeadID,
				Transaction: &models.Transaction{
					ID:     uuid.New(),
					Status: models.TransactionStatusActive,
					Stage:  stage.DepositPaid.String(),
				},
			}, nil
		},
	}
	advancer := &fakeAdvancer{}
	svc := newTestService(t, repo, nil, advancer)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
		AppointmentID: appointment.ID,
		ViewerID:      appointment.SellerID,
		ViewerRole:    enums.ActorRoleSeller,
		Status:        "confirmed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(advancer.calls) != 0 {
		t.Fatalf("transaction already ahead, expected no advance, got %+v", advancer.calls)
	}
}

func TestService_BuyerMayOnlyCancel(t *testing.T) {
	appointment := scheduledAppointment()
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
			return appointment, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
		AppointmentID: appointment.ID,
		ViewerID:      appointment.BuyerID,
		ViewerRole:    enums.ActorRoleBuyer,
		Status:        "confirmed",
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for buyer confirm, got %v", err)
	}

	view, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
		AppointmentID: appointment.ID,
		ViewerID:      appointment.BuyerID,
		ViewerRole:    enums.ActorRoleBuyer,
		Status:        "cancelled",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != enums.AppointmentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", view.Status)
	}
}

func TestService_UpdateStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from    enums.AppointmentStatus
		to      string
		allowed bool
	}{
		{enums.AppointmentStatusScheduled, "confirmed", true},
		{enums.AppointmentStatusScheduled, "completed", false},
		{enums.AppointmentStatusScheduled, "cancelled", true},
		{enums.AppointmentStatusConfirmed, "completed", true},
		{enums.AppointmentStatusConfirmed, "cancelled", true},
		{enums.AppointmentStatusCompleted, "cancelled", false},
		{enums.AppointmentStatusCancelled, "confirmed", false},
	}
	for _, tc := range cases {
		appointment := scheduledAppointment()
		appointment.Status = tc.from
		repo := &fakeRepository{
			findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
				return appointment, nil
			},
		}
		svc := newTestService(t, repo, nil, nil)

		_, err := svc.UpdateStatus(context.Background(), UpdateStatusParams{
			AppointmentID: appointment.ID,
			ViewerID:      appointment.SellerID,
			ViewerRole:    enums.ActorRoleSeller,
			Status:        tc.to,
		})
		if tc.allowed && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.allowed && (err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict) {
			t.Fatalf("%s -> %s: expected state conflict, got %v", tc.from, tc.to, err)
		}
	}
}

func TestService_ListScopesByRole(t *testing.T) {
	viewerID := uuid.New()
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listAppointmentsParams) ([]models.Appointment, *pagination.Cursor, error) {
			if params.ViewerRole != enums.ActorRoleAgent || params.ViewerID != viewerID {
				t.Fatalf("scope not forwarded: %+v", params)
			}
			return []models.Appointment{*scheduledAppointment()}, nil, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	result, err := svc.List(context.Background(), ListParams{
		ViewerID:   viewerID,
		ViewerRole: enums.ActorRoleAgent,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(result.Items))
	}
}
