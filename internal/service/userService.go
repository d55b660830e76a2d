package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	repository "github.com/ds124wfegd/crossedpaths/internal/database/postgres"
	"github.com/ds124wfegd/crossedpaths/internal/entity"

	"github.com/sirupsen/logrus"
)

type RegisterUserRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=255"`
	Email string `json:"email" binding:"required,email"`
}

// SubscriptionRequest is what the billing side reports for a user.
type SubscriptionRequest struct {
	Tier        entity.Tier `json:"tier" binding:"required"`
	ActiveUntil *time.Time  `json:"active_until,omitempty"`
}

// PaymentRequest is a charge state reported by the payment gateway.
type PaymentRequest struct {
	Reference   string               `json:"reference" binding:"required"`
	AmountCents int64                `json:"amount_cents"`
	Status      entity.PaymentStatus `json:"status" binding:"required"`
}

type userService struct {
	repo  *repository.Repository
	clock Clock
}

func NewUserService(repo *repository.Repository, clock Clock) UserService {
	return &userService{repo: repo, clock: clock}
}

func (s *userService) RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", entity.ErrInvalidInput)
	}

	_, err := s.repo.Users.GetByEmail(ctx, email)
	if err == nil {
		return nil, entity.ErrUserExists
	}
	if !errors.Is(err, entity.ErrUserNotFound) {
		return nil, err
	}

	user := &entity.User{
		Name:  strings.TrimSpace(req.Name),
		Email: email,
	}
	if err := s.repo.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	logrus.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	return s.repo.Users.GetByID(ctx, id)
}

func (s *userService) GetAllUsers(ctx context.Context) ([]*entity.User, error) {
	return s.repo.Users.GetAll(ctx)
}

func (s *userService) SetSubscription(ctx context.Context, userID int64, req *SubscriptionRequest) (*entity.Subscription, error) {
	switch req.Tier {
	case entity.TierFree, entity.TierPremium:
	default:
		return nil, fmt.Errorf("%w: unknown tier %q", entity.ErrInvalidInput, req.Tier)
	}
	if _, err := s.repo.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	sub := &entity.Subscription{
		UserID:      userID,
		Tier:        req.Tier,
		ActiveUntil: req.ActiveUntil,
		UpdatedAt:   s.clock.Now(),
	}
	if err := s.repo.Subscriptions.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"tier":    sub.Tier,
	}).Info("subscription updated")
	return sub, nil
}

func (s *userService) RecordPayment(ctx context.Context, eventID, userID int64, req *PaymentRequest) (*entity.Payment, error) {
	switch req.Status {
	case entity.PaymentStatusPending, entity.PaymentStatusCompleted, entity.PaymentStatusWaived,
		entity.PaymentStatusRefundPending, entity.PaymentStatusRefunded:
	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", entity.ErrInvalidInput, req.Status)
	}
	if req.AmountCents < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", entity.ErrInvalidInput)
	}
	if _, err := s.repo.Events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	if _, err := s.repo.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	payment := &entity.Payment{
		EventID:     eventID,
		UserID:      userID,
		Reference:   req.Reference,
		AmountCents: req.AmountCents,
		Status:      req.Status,
		UpdatedAt:   s.clock.Now(),
	}
	if err := s.repo.Payments.Upsert(ctx, payment); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"event_id": eventID,
		"user_id":  userID,
		"status":   payment.Status,
	}).Info("payment recorded")
	return payment, nil
}
