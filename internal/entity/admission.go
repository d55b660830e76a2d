package entity

import "time"

// Outcome is the typed result of an admission or cancellation attempt.
type Outcome string

const (
	OutcomeConfirmed            Outcome = "confirmed"
	OutcomeCancelled            Outcome = "cancelled"
	OutcomeNotFound             Outcome = "not_found"
	OutcomeEventClosed          Outcome = "event_closed"
	OutcomeDeadlinePassed       Outcome = "deadline_passed"
	OutcomeEventFull            Outcome = "event_full"
	OutcomePaymentRequired      Outcome = "payment_required"
	OutcomeSubscriptionRequired Outcome = "subscription_required"
	OutcomeQuotaExceeded        Outcome = "quota_exceeded"
	OutcomeAlreadyConfirmed     Outcome = "already_confirmed"
	OutcomeNotConfirmed         Outcome = "not_confirmed"
)

// Soft warnings attached to a successful result.
const (
	WarningVenueUnresolvable = "venue_unresolvable"
	WarningVisitNotRecorded  = "visit_not_recorded"
	WarningMatchingFailed    = "matching_failed"
	WarningMatchingDeferred  = "matching_deferred"
	WarningNotifyFailed      = "notify_failed"
	WarningRefundNotFlagged  = "refund_not_flagged"
)

type AdmissionResult struct {
	Outcome  Outcome       `json:"outcome"`
	EventID  int64         `json:"event_id"`
	UserID   int64         `json:"user_id"`
	Reason   string        `json:"reason,omitempty"`
	RSVP     *RSVP         `json:"rsvp,omitempty"`
	Visit    *Visit        `json:"visit,omitempty"`
	Matches  []*MatchEvent `json:"matches,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

func (r *AdmissionResult) Admitted() bool {
	return r.Outcome == OutcomeConfirmed
}

type CancelResult struct {
	Outcome       Outcome  `json:"outcome"`
	EventID       int64    `json:"event_id"`
	UserID        int64    `json:"user_id"`
	RSVP          *RSVP    `json:"rsvp,omitempty"`
	RefundPending bool     `json:"refund_pending"`
	Warnings      []string `json:"warnings,omitempty"`
}

// QuotaUsage describes a user's free admissions in the current window.
type QuotaUsage struct {
	UserID      int64     `json:"user_id"`
	Tier        Tier      `json:"tier"`
	Used        int       `json:"used"`
	Cap         int       `json:"cap"`
	Unlimited   bool      `json:"unlimited"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}
