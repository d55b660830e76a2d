package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"

	"github.com/sirupsen/logrus"
)

// AdmitRequest is one attempt by a user to join an event. PaymentRef, when set,
// must match the reference of the completed charge.
type AdmitRequest struct {
	EventID    int64  `json:"event_id"`
	UserID     int64  `json:"user_id" binding:"required"`
	PaymentRef string `json:"payment_ref,omitempty"`
}

// AdmissionPolicy holds the tier rules applied to every admission.
type AdmissionPolicy struct {
	// FreeMonthlyCap is the number of free admissions a free-tier user gets per
	// calendar month. Zero or less disables the cap.
	FreeMonthlyCap int
	// QuotaLocation is the timezone calendar months start in.
	QuotaLocation *time.Location
	// PaidRequiresActiveSubscription gates paid events behind an active premium subscription.
	PaidRequiresActiveSubscription bool
	// CascadeTimeout bounds everything done after an RSVP is committed. That
	// work is detached from the request context, so a client that goes away
	// does not abort it.
	CascadeTimeout time.Duration
}

const defaultCascadeTimeout = 10 * time.Second

// AdmissionDeps are the collaborators the admission controller talks to.
type AdmissionDeps struct {
	Repo          *repository.Repository
	Payments      PaymentCollaborator
	Subscriptions SubscriptionCollaborator
	Venues        VenueResolver
	Visits        VisitService
	CrossedPaths  CrossedPathService
	Notifier      Notifier
	Tasks         TaskPublisher
	Clock         Clock
}

type admissionService struct {
	repo          *repository.Repository
	payments      PaymentCollaborator
	subscriptions SubscriptionCollaborator
	venues        VenueResolver
	visits        VisitService
	crossedPaths  CrossedPathService
	notifier      Notifier
	tasks         TaskPublisher
	clock         Clock
	policy        AdmissionPolicy
}

func NewAdmissionService(deps AdmissionDeps, policy AdmissionPolicy) AdmissionService {
	if policy.QuotaLocation == nil {
		policy.QuotaLocation = time.UTC
	}
	if policy.CascadeTimeout <= 0 {
		policy.CascadeTimeout = defaultCascadeTimeout
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	return &admissionService{
		repo:          deps.Repo,
		payments:      deps.Payments,
		subscriptions: deps.Subscriptions,
		venues:        deps.Venues,
		visits:        deps.Visits,
		crossedPaths:  deps.CrossedPaths,
		notifier:      deps.Notifier,
		tasks:         deps.Tasks,
		clock:         deps.Clock,
		policy:        policy,
	}
}

// TryAdmit runs every admission rule and, when they all pass, confirms the RSVP.
// The capacity and quota checks are repeated inside the store transaction, so the
// checks here only pick the outcome for the common case. Refusals come back as
// typed outcomes; a non-nil error always wraps entity.ErrStoreUnavailable.
func (s *admissionService) TryAdmit(ctx context.Context, req *AdmitRequest) (*entity.AdmissionResult, error) {
	now := s.clock.Now()
	result := &entity.AdmissionResult{EventID: req.EventID, UserID: req.UserID}

	event, err := s.repo.Events.GetByID(ctx, req.EventID)
	if err != nil {
		return s.refuse(result, err)
	}
	if _, err := s.repo.Users.GetByID(ctx, req.UserID); err != nil {
		return s.refuse(result, err)
	}

	if event.Status != entity.EventStatusActive {
		return s.refuse(result, entity.ErrEventClosed)
	}
	if now.After(event.RSVPDeadline) {
		return s.refuse(result, entity.ErrDeadlinePassed)
	}

	existing, err := s.repo.RSVPs.GetByEventAndUser(ctx, req.EventID, req.UserID)
	if err != nil {
		return s.refuse(result, err)
	}
	if existing != nil && existing.Status == entity.RSVPStatusConfirmed {
		return s.refuse(result, entity.ErrAlreadyConfirmed)
	}
	if event.ConfirmedCount >= event.Capacity {
		return s.refuse(result, entity.ErrEventFull)
	}

	sub, err := s.subscriptions.Subscription(ctx, req.UserID)
	if err != nil {
		return s.refuse(result, err)
	}
	tier := sub.EffectiveTier(now)

	free := true
	if event.IsPaid() {
		outcome, reason, waived, err := s.checkPayment(ctx, event, req, tier)
		if err != nil {
			return s.refuse(result, err)
		}
		if outcome != "" {
			result.Outcome = outcome
			result.Reason = reason
			return result, nil
		}
		free = waived
	}

	var quota *repository.QuotaCheck
	if free && tier == entity.TierFree && s.policy.FreeMonthlyCap > 0 {
		from, to := s.quotaWindow(now)
		used, err := s.repo.RSVPs.CountFreeConfirmed(ctx, req.UserID, from, to)
		if err != nil {
			return s.refuse(result, err)
		}
		if used >= s.policy.FreeMonthlyCap {
			return s.refuse(result, entity.ErrQuotaExceeded)
		}
		quota = &repository.QuotaCheck{Cap: s.policy.FreeMonthlyCap, From: from, To: to}
	}

	rsvp := &entity.RSVP{
		EventID:     req.EventID,
		UserID:      req.UserID,
		Free:        free,
		ConfirmedAt: now,
	}
	if err := s.repo.RSVPs.Admit(ctx, rsvp, quota); err != nil {
		return s.refuse(result, err)
	}

	result.Outcome = entity.OutcomeConfirmed
	result.RSVP = rsvp

	logrus.WithFields(logrus.Fields{
		"event_id": req.EventID,
		"user_id":  req.UserID,
		"rsvp_id":  rsvp.ID,
		"free":     free,
	}).Info("rsvp confirmed")

	// The RSVP is committed; nothing below may undo it.
	cascadeCtx, cancel := s.detach(ctx)
	defer cancel()
	s.cascade(cascadeCtx, event, result, now)

	if err := s.notifier.NotifyAdmission(cascadeCtx, result); err != nil {
		logrus.WithError(err).WithField("event_id", req.EventID).Warn("admission notification failed")
		result.Warnings = appendWarning(result.Warnings, entity.WarningNotifyFailed)
	}

	return result, nil
}

// checkPayment decides a paid admission. It returns a refusal outcome, or an
// empty outcome and whether the fee was waived.
func (s *admissionService) checkPayment(ctx context.Context, event *entity.Event, req *AdmitRequest, tier entity.Tier) (entity.Outcome, string, bool, error) {
	if s.policy.PaidRequiresActiveSubscription && tier != entity.TierPremium {
		return entity.OutcomeSubscriptionRequired, "paid events require an active premium subscription", false, nil
	}

	payment, err := s.payments.PaymentStatus(ctx, event.ID, req.UserID)
	if err != nil {
		return "", "", false, err
	}
	if payment == nil {
		return entity.OutcomePaymentRequired, "no payment for this event", false, nil
	}
	if req.PaymentRef != "" && payment.Reference != req.PaymentRef {
		return entity.OutcomePaymentRequired, "payment reference does not match", false, nil
	}

	switch payment.Status {
	case entity.PaymentStatusCompleted:
		return "", "", false, nil
	case entity.PaymentStatusWaived:
		return "", "", true, nil
	default:
		return entity.OutcomePaymentRequired, fmt.Sprintf("payment is %s", payment.Status), false, nil
	}
}

// cascade records the visit and reconciles it. Every failure here is a warning.
func (s *admissionService) cascade(ctx context.Context, event *entity.Event, result *entity.AdmissionResult, now time.Time) {
	log := logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"user_id":  result.UserID,
	})

	venue, err := s.venues.ResolveVenue(ctx, event)
	if err != nil {
		if !errors.Is(err, entity.ErrVenueUnresolvable) {
			log.WithError(err).Error("failed to resolve venue")
		} else {
			log.Warn("venue unresolvable, matching skipped")
		}
		result.Warnings = appendWarning(result.Warnings, entity.WarningVenueUnresolvable)
		return
	}

	eventID := event.ID
	visit, err := s.visits.Record(ctx, result.UserID, venue.ID, &eventID, now)
	if err != nil {
		log.WithError(err).Warn("failed to record visit")
		result.Warnings = appendWarning(result.Warnings, entity.WarningVisitNotRecorded)
		return
	}
	result.Visit = visit

	matches, err := s.crossedPaths.Reconcile(ctx, visit)
	if err != nil {
		log.WithError(err).WithField("visit_id", visit.ID).Warn("reconciliation failed")
		if s.deferReconcile(ctx, visit) {
			result.Warnings = appendWarning(result.Warnings, entity.WarningMatchingDeferred)
		} else {
			result.Warnings = appendWarning(result.Warnings, entity.WarningMatchingFailed)
		}
		return
	}
	result.Matches = matches

	for _, ev := range matches {
		if err := s.notifier.NotifyMatch(ctx, ev); err != nil {
			log.WithError(err).Warn("match notification failed")
			result.Warnings = appendWarning(result.Warnings, entity.WarningNotifyFailed)
		}
	}
}

// deferReconcile hands a failed reconciliation to the task queue.
func (s *admissionService) deferReconcile(ctx context.Context, visit *entity.Visit) bool {
	if s.tasks == nil {
		return false
	}
	task := &Task{
		ID:   fmt.Sprintf("reconcile_visit_%d", visit.ID),
		Type: TaskTypeReconcileVisit,
		Data: map[string]interface{}{
			"visit_id": visit.ID,
		},
	}
	if err := s.tasks.Publish(ctx, task); err != nil {
		logrus.WithError(err).WithField("visit_id", visit.ID).Warn("failed to defer reconciliation")
		return false
	}
	return true
}

// Cancel flips a confirmed RSVP to cancelled. Visits and crossed paths are kept.
func (s *admissionService) Cancel(ctx context.Context, eventID, userID int64) (*entity.CancelResult, error) {
	now := s.clock.Now()
	result := &entity.CancelResult{EventID: eventID, UserID: userID}

	event, err := s.repo.Events.GetByID(ctx, eventID)
	if errors.Is(err, entity.ErrEventNotFound) {
		result.Outcome = entity.OutcomeNotFound
		return result, nil
	}
	if err != nil {
		return nil, storeError(err)
	}

	rsvp, err := s.repo.RSVPs.Cancel(ctx, eventID, userID, now)
	if errors.Is(err, entity.ErrNotConfirmed) {
		result.Outcome = entity.OutcomeNotConfirmed
		return result, nil
	}
	if err != nil {
		return nil, storeError(err)
	}

	result.Outcome = entity.OutcomeCancelled
	result.RSVP = rsvp

	log := logrus.WithFields(logrus.Fields{
		"event_id": eventID,
		"user_id":  userID,
	})
	log.Info("rsvp cancelled")

	bgCtx, cancel := s.detach(ctx)
	defer cancel()
	if event.IsPaid() && !rsvp.Free {
		flagged, err := s.payments.MarkRefundPending(bgCtx, eventID, userID)
		if err != nil {
			log.WithError(err).Warn("failed to flag refund")
			result.Warnings = appendWarning(result.Warnings, entity.WarningRefundNotFlagged)
		}
		result.RefundPending = flagged
	}

	if err := s.notifier.NotifyCancellation(bgCtx, result); err != nil {
		log.WithError(err).Warn("cancellation notification failed")
		result.Warnings = appendWarning(result.Warnings, entity.WarningNotifyFailed)
	}

	return result, nil
}

func (s *admissionService) QuotaUsage(ctx context.Context, userID int64) (*entity.QuotaUsage, error) {
	now := s.clock.Now()

	if _, err := s.repo.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.Subscription(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}

	from, to := s.quotaWindow(now)
	used, err := s.repo.RSVPs.CountFreeConfirmed(ctx, userID, from, to)
	if err != nil {
		return nil, storeError(err)
	}

	tier := sub.EffectiveTier(now)
	return &entity.QuotaUsage{
		UserID:      userID,
		Tier:        tier,
		Used:        used,
		Cap:         s.policy.FreeMonthlyCap,
		Unlimited:   tier == entity.TierPremium || s.policy.FreeMonthlyCap <= 0,
		WindowStart: from,
		WindowEnd:   to,
	}, nil
}

// detach keeps request values but swaps the request deadline for the cascade one.
func (s *admissionService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.policy.CascadeTimeout)
}

// quotaWindow returns the calendar month containing now, [from, to).
func (s *admissionService) quotaWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(s.policy.QuotaLocation)
	from := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.policy.QuotaLocation)
	return from, from.AddDate(0, 1, 0)
}

// refuse turns a sentinel into a typed outcome. Anything else is a store failure.
func (s *admissionService) refuse(result *entity.AdmissionResult, err error) (*entity.AdmissionResult, error) {
	outcome, ok := outcomeFor(err)
	if !ok {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_id": result.EventID,
			"user_id":  result.UserID,
		}).Error("admission failed")
		return nil, storeError(err)
	}

	result.Outcome = outcome
	result.Reason = err.Error()
	logrus.WithFields(logrus.Fields{
		"event_id": result.EventID,
		"user_id":  result.UserID,
		"outcome":  outcome,
	}).Info("admission refused")
	return result, nil
}

func outcomeFor(err error) (entity.Outcome, bool) {
	switch {
	case errors.Is(err, entity.ErrEventNotFound), errors.Is(err, entity.ErrUserNotFound):
		return entity.OutcomeNotFound, true
	case errors.Is(err, entity.ErrEventClosed):
		return entity.OutcomeEventClosed, true
	case errors.Is(err, entity.ErrDeadlinePassed):
		return entity.OutcomeDeadlinePassed, true
	case errors.Is(err, entity.ErrEventFull):
		return entity.OutcomeEventFull, true
	case errors.Is(err, entity.ErrAlreadyConfirmed):
		return entity.OutcomeAlreadyConfirmed, true
	case errors.Is(err, entity.ErrQuotaExceeded):
		return entity.OutcomeQuotaExceeded, true
	case errors.Is(err, entity.ErrNotConfirmed):
		return entity.OutcomeNotConfirmed, true
	}
	return "", false
}

func storeError(err error) error {
	if errors.Is(err, entity.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
}

func appendWarning(warnings []string, w string) []string {
	for _, existing := range warnings {
		if existing == w {
			return warnings
		}
	}
	return append(warnings, w)
}
