package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/estatehubhq/estatehub-backend/pkg/db/models"
	"github.com/estatehubhq/estatehub-backend/pkg/enums"
	"github.com/estatehubhq/estatehub-backend/pkg/logger"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox"
	"github.com/estatehubhq/estatehub-backend/pkg/outbox/payloads"
)

const staleAppointmentDays = 7

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type staleAppointmentsRepo interface {
	FindScheduledBefore(ctx context.Context, cutoff time.Time) ([]models.Appointment, error)
	UpdateStatusWithTx(tx *gorm.DB, id uuid.UUID, status enums.AppointmentStatus, notes *string) error
}

type staleTransactionsRepo interface {
	FindByLeadIDWithTx(tx *gorm.DB, leadID uuid.UUID) (*models.Transaction, error)
	CreateNotificationsWithTx(tx *gorm.DB, notifications []models.ProgressNotification) error
}

// StaleAppointmentJobParams configures the expiry sweep for viewings that
// never happened.
type StaleAppointmentJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Appointments staleAppointmentsRepo
	Transactions staleTransactionsRepo
	Outbox       outboxEmitter
	StaleDays    int
}

// NewStaleAppointmentJob constructs the stale appointment expiry cron job.
func NewStaleAppointmentJob(params StaleAppointmentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Appointments == nil {
		return nil, fmt.Errorf("appointments repository required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	staleDays := params.StaleDays
	if staleDays <= 0 {
		staleDays = staleAppointmentDays
	}
	return &staleAppointmentJob{
		logg:         params.Logger,
		db:           params.DB,
		appointments: params.Appointments,
		transactions: params.Transactions,
		outbox:       params.Outbox,
		staleDays:    staleDays,
		now:          time.Now,
	}, nil
}

type staleAppointmentJob struct {
	logg         *logger.Logger
	db           txRunner
	appointments staleAppointmentsRepo
	transactions staleTransactionsRepo
	outbox       outboxEmitter
	staleDays    int
	now          func() time.Time
}

func (j *staleAppointmentJob) Name() string { return "stale-appointment-expiry" }

func (j *staleAppointmentJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.staleDays) * 24 * time.Hour)
	stale, err := j.appointments.FindScheduledBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale appointments: %w", err)
	}

	var errs []error
	count := 0
	for _, appointment := range stale {
		if err := j.expireAppointment(ctx, appointment); err != nil {
			errs = append(errs, fmt.Errorf("appointment %s: %w", appointment.ID, err))
			continue
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"stale_days": j.staleDays,
		"count":      count,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "stale appointment sweep complete")
	return multierr.Combine(errs...)
}

func (j *staleAppointmentJob) expireAppointment(ctx context.Context, appointment models.Appointment) error {
	note := fmt.Sprintf("Automatically cancelled: viewing date passed more than %d days ago", j.staleDays)
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.appointments.UpdateStatusWithTx(tx, appointment.ID, enums.AppointmentStatusCancelled, &note); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		if err := j.recordProgress(tx, appointment); err != nil {
			return err
		}

		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAppointmentStatusChange,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Version:       1,
			Data: payloads.AppointmentStatusChangedEvent{
				AppointmentID: appointment.ID,
				LeadID:        appointment.LeadID,
				BuyerID:       appointment.BuyerID,
				SellerID:      appointment.SellerID,
				FromStatus:    appointment.Status,
				ToStatus:      enums.AppointmentStatusCancelled,
				ScheduledAt:   appointment.ScheduledAt,
			},
		})
	})
}

// recordProgress appends an entry to the linked transaction's history so the
// parties see why the viewing disappeared. Appointments without an open
// transaction are skipped.
func (j *staleAppointmentJob) recordProgress(tx *gorm.DB, appointment models.Appointment) error {
	transaction, err := j.transactions.FindByLeadIDWithTx(tx, appointment.LeadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load linked transaction: %w", err)
	}

	message := "Viewing appointment expired and was cancelled"
	entries := []models.ProgressNotification{
		{
			TransactionID: transaction.ID,
			Message:       message,
			RecipientRole: enums.ActorRoleBuyer,
			Stage:         transaction.Stage,
			Category:      enums.ProgressCategoryAppointment,
		},
		{
			TransactionID: transaction.ID,
			Message:       message,
			RecipientRole: enums.ActorRoleSeller,
			Stage:         transaction.Stage,
			Category:      enums.ProgressCategoryAppointment,
		},
	}
	if appointment.AgentID != nil {
		entries = append(entries, models.ProgressNotification{
			TransactionID: transaction.ID,
			Message:       message,
			RecipientRole: enums.ActorRoleAgent,
			Stage:         transaction.Stage,
			Category:      enums.ProgressCategoryAppointment,
		})
	}
	if err := j.transactions.CreateNotificationsWithTx(tx, entries); err != nil {
		return fmt.Errorf("append progress entries: %w", err)
	}
	return nil
}
