package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/internal/stream"
	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/stage"
)

type fakeRepository struct {
	createFn        func(ctx context.Context, transaction *models.Transaction) error
	findByIDFn      func(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	findLeadFn      func(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	updateStageFn   func(ctx context.Context, id uuid.UUID, fromStage, stageValue, status string, at time.Time) (bool, error)
	markReadFn      func(ctx context.Context, transactionID, notificationID uuid.UUID, at time.Time) (bool, error)
	createdProgress []models.ProgressNotification
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	if f.createFn != nil {
		return f.createFn(ctx, transaction)
	}
	transaction.ID = uuid.New()
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByLeadID(ctx context.Context, leadID uuid.UUID) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	if f.findLeadFn != nil {
		return f.findLeadFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) UpdateStage(ctx context.Context, id uuid.UUID, fromStage, stageValue, status string, at time.Time) (bool, error) {
	if f.updateStageFn != nil {
		return f.updateStageFn(ctx, id, fromStage, stageValue, status, at)
	}
	return true, nil
}

func (f *fakeRepository) CreateNotifications(ctx context.Context, notifications []models.ProgressNotification) error {
	f.createdProgress = append(f.createdProgress, notifications...)
	return nil
}

func (f *fakeRepository) MarkNotificationRead(ctx context.Context, transactionID, notificationID uuid.UUID, at time.Time) (bool, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, transactionID, notificationID, at)
	}
	return false, nil
}

func (f *fakeRepository) FindByLeadIDWithTx(tx *gorm.DB, leadID uuid.UUID) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateNotificationsWithTx(tx *gorm.DB, notifications []models.ProgressNotification) error {
	f.createdProgress = append(f.createdProgress, notifications...)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events     []outbox.DomainEvent
	idempotent []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.idempotent = append(f.idempotent, event)
	return nil
}

type fakeHub struct {
	updates []stream.TransactionUpdate
}

func (f *fakeHub) PublishTransaction(update stream.TransactionUpdate) bool {
	f.updates = append(f.updates, update)
	return true
}

func newTestService(t *testing.T, repo Repository, ob *fakeOutbox, hub streamPublisher) Service {
	t.Helper()
	if ob == nil {
		ob = &fakeOutbox{}
	}
	svc, err := NewService(repo, fakeTxRunner{}, ob, hub)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func activeTransaction(current stage.Stage) *models.Transaction {
	return &models.Transaction{
		ID:             uuid.New(),
		LeadID:         uuid.New(),
		PropertyID:     uuid.New(),
		BuyerID:        uuid.New(),
		SellerID:       uuid.New(),
		Status:         models.TransactionStatusActive,
		Stage:          current.String(),
		StageUpdatedAt: time.Now().Add(-time.Hour),
	}
}

func TestService_OpenEmitsOnce(t *testing.T) {
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

	view, err := svc.Open(context.Background(), OpenParams{
		LeadID:     lead.ID,
		ViewerID:   lead.SellerID,
		ViewerRole: enums.ActorRoleSeller,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Stage.Stage != stage.Pending.String() {
		t.Fatalf("new transaction should start at PENDING, got %s", view.Stage.Stage)
	}
	if len(ob.idempotent) != 1 || ob.idempotent[0].EventType != enums.EventTransactionOpened {
		t.Fatalf("expected idempotent transaction_opened emit, got %+v", ob.idempotent)
	}
	if len(ob.events) != 0 {
		t.Fatalf("unexpected plain emits: %+v", ob.events)
	}
}

func TestService_OpenClosedLeadRejected(t *testing.T) {
	lead := &models.Lead{
		ID:       uuid.New(),
		SellerID: uuid.New(),
		Status:   enums.LeadStatusRejected,
	}
	repo := &fakeRepository{
		findLeadFn: func(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
			return lead, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	_, err := svc.Open(context.Background(), OpenParams{
		LeadID:     lead.ID,
		ViewerID:   lead.SellerID,
		ViewerRole: enums.ActorRoleSeller,
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_OpenForbiddenForBuyer(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, nil)
	_, err := svc.Open(context.Background(), OpenParams{
		LeadID:     uuid.New(),
		ViewerID:   uuid.New(),
		ViewerRole: enums.ActorRoleBuyer,
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_AdvanceAppendsProgressAndPublishes(t *testing.T) {
	transaction := activeTransaction(stage.Pending)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return transaction, nil
		},
	}
	ob := &fakeOutbox{}
	hub := &fakeHub{}
	svc := newTestService(t, repo, ob, hub)

	view, err := svc.Advance(context.Background(), AdvanceParams{
		TransactionID: transaction.ID,
		ViewerID:      transaction.SellerID,
		ViewerRole:    enums.ActorRoleSeller,
		Stage:         "DEPOSIT_PAID",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Stage.Stage != stage.DepositPaid.String() {
		t.Fatalf("expected DEPOSIT_PAID, got %s", view.Stage.Stage)
	}
	if view.Status != models.TransactionStatusActive {
		t.Fatalf("expected ACTIVE status, got %s", view.Status)
	}

	if len(repo.createdProgress) != 2 {
		t.Fatalf("expected progress entries for buyer and seller, got %d", len(repo.createdProgress))
	}
	for _, entry := range repo.createdProgress {
		if entry.Category != enums.ProgressCategoryPayment {
			t.Fatalf("expected payment category, got %s", entry.Category)
		}
		if entry.Stage != stage.DepositPaid.String() {
			t.Fatalf("unexpected entry stage %s", entry.Stage)
		}
	}

	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventStageAdvanced {
		t.Fatalf("expected stage_advanced event, got %+v", ob.events)
	}
	if len(hub.updates) != 1 {
		t.Fatalf("expected 1 hub publish, got %d", len(hub.updates))
	}
	if hub.updates[0].Progress.Stage != stage.DepositPaid.String() {
		t.Fatalf("hub frame carries wrong stage %s", hub.updates[0].Progress.Stage)
	}
	if hub.updates[0].Property.ID != transaction.PropertyID {
		t.Fatal("hub frame missing property ref")
	}
}

func TestService_AdvanceRejectsRegression(t *testing.T) {
	transaction := activeTransaction(stage.FinalSigning)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return transaction, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	for _, target := range []string{"MEETING_SCHEDULED", "FINAL_SIGNING", "PENDING"} {
		_, err := svc.Advance(context.Background(), AdvanceParams{
			TransactionID: transaction.ID,
			ViewerID:      transaction.SellerID,
			ViewerRole:    enums.ActorRoleSeller,
			Stage:         target,
		})
		if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("target %s: expected state conflict, got %v", target, err)
		}
	}
}

func TestService_AdvanceConflictsWhenStageChangedUnderneath(t *testing.T) {
	// Simulates a second writer committing between the read and the
	// conditional update: the guarded UPDATE matches zero rows.
	transaction := activeTransaction(stage.MeetingScheduled)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return transaction, nil
		},
		updateStageFn: func(ctx context.Context, id uuid.UUID, fromStage, stageValue, status string, at time.Time) (bool, error) {
			if fromStage != stage.MeetingScheduled.String() {
				t.Fatalf("update guarded on %s, want MEETING_SCHEDULED", fromStage)
			}
			return false, nil
		},
	}
	ob := &fakeOutbox{}
	hub := &fakeHub{}
	svc := newTestService(t, repo, ob, hub)

	_, err := svc.Advance(context.Background(), AdvanceParams{
		TransactionID: transaction.ID,
		ViewerID:      transaction.SellerID,
		ViewerRole:    enums.ActorRoleSeller,
		Stage:         "DEPOSIT_PAID",
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(ob.events) != 0 || len(ob.idempotent) != 0 {
		t.Fatalf("no events should be emitted on conflict, got %+v %+v", ob.events, ob.idempotent)
	}
	if len(hub.updates) != 0 {
		t.Fatalf("no hub publish expected on conflict, got %d", len(hub.updates))
	}
}

func TestService_AdvanceFromTerminalRejected(t *testing.T) {
	for _, current := range []stage.Stage{stage.Completed, stage.Cancelled} {
		transaction := activeTransaction(current)
		transaction.Status = statusForStage(current)
		repo := &fakeRepository{
			findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
				return transaction, nil
			},
		}
		svc := newTestService(t, repo, nil, nil)

		_, err := svc.Cancel(context.Background(), CancelParams{
			TransactionID: transaction.ID,
			ViewerID:      transaction.SellerID,
			ViewerRole:    enums.ActorRoleSeller,
		})
		if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("from %s: expected state conflict, got %v", current, err)
		}
	}
}

func TestService_AdvanceInvalidStage(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, nil)
	_, err := svc.Advance(context.Background(), AdvanceParams{
		TransactionID: uuid.New(),
		ViewerID:      uuid.New(),
		ViewerRole:    enums.ActorRoleSeller,
		Stage:         "ESCROW",
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_CancelEmitsOnceAndDerivesStatus(t *testing.T) {
	transaction := activeTransaction(stage.MeetingScheduled)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return transaction, nil
		},
	}
	ob := &fakeOutbox{}
	svc := newTestService(t, repo, ob, nil)

	reason := "buyer withdrew"
	view, err := svc.Cancel(context.Background(), CancelParams{
		TransactionID: transaction.ID,
		ViewerID:      transaction.SellerID,
		ViewerRole:    enums.ActorRoleSeller,
		Reason:        &reason,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != models.TransactionStatusCancelled {
		t.Fatalf("expected CANCELLED status, got %s", view.Status)
	}
	if len(ob.idempotent) != 1 || ob.idempotent[0].EventType != enums.EventTransactionCancelled {
		t.Fatalf("expected idempotent transaction_cancelled emit, got %+v", ob.idempotent)
	}
	for _, entry := range repo.createdProgress {
		if entry.Category != enums.ProgressCategoryGeneral {
			t.Fatalf("cancellation entries use general category, got %s", entry.Category)
		}
	}
}

func TestService_GetInterestedPresentsPending(t *testing.T) {
	transaction := activeTransaction(stage.DepositPaid)
	transaction.Status = models.TransactionStatusInterested
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return transaction, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	view, err := svc.Get(context.Background(), GetParams{
		TransactionID: transaction.ID,
		ViewerID:      transaction.BuyerID,
		ViewerRole:    enums.ActorRoleBuyer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Stage.Stage != stage.Pending.String() {
		t.Fatalf("INTERESTED must present as PENDING, got %s", view.Stage.Stage)
	}
}

func TestService_GetScopedToParties(t *testing.T) {
	transaction := activeTransaction(stage.Pending)
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return transaction, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	_, err := svc.Get(context.Background(), GetParams{
		TransactionID: transaction.ID,
		ViewerID:      uuid.New(),
		ViewerRole:    enums.ActorRoleSeller,
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign seller, got %v", err)
	}
}

func TestService_MarkNotificationRead(t *testing.T) {
	transaction := activeTransaction(stage.DepositPaid)
	notificationID := uuid.New()
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return transaction, nil
		},
		markReadFn: func(ctx context.Context, transactionID, nID uuid.UUID, at time.Time) (bool, error) {
			return nID == notificationID, nil
		},
	}
	svc := newTestService(t, repo, nil, nil)

	err := svc.MarkNotificationRead(context.Background(), MarkNotificationReadParams{
		TransactionID:  transaction.ID,
		NotificationID: notificationID,
		ViewerID:       transaction.BuyerID,
		ViewerRole:     enums.ActorRoleBuyer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.MarkNotificationRead(context.Background(), MarkNotificationReadParams{
		TransactionID:  transaction.ID,
		NotificationID: uuid.New(),
		ViewerID:       transaction.BuyerID,
		ViewerRole:     enums.ActorRoleBuyer,
	})
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown notification, got %v", err)
	}
}
