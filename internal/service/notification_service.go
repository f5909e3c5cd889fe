package service

import (
	"context"
	"log"

	"hireloop/internal/models"
	"hireloop/internal/repository"
)

// NotificationRequest is a user-facing alert about a contract.
type NotificationRequest struct {
	RecipientUserID uint
	Type            string
	Title           string
	Message         string
	ContractID      uint
}

// Notifier delivers alerts. Escrow treats it as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n NotificationRequest) error
}

// Broadcaster pushes a payload to a user's open realtime connections.
type Broadcaster interface {
	BroadcastToUser(userID uint, payload interface{})
}

// NotificationService stores the notification, then pushes it over the
// websocket hub and FCM. Only the store can fail the call.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
	hub      Broadcaster
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, hub Broadcaster) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm, hub: hub}
}

func (s *NotificationService) Notify(ctx context.Context, n NotificationRequest) error {
	row := &models.Notification{
		UserID: n.RecipientUserID,
		Type:   n.Type,
		Title:  n.Title,
		Body:   n.Message,
	}
	if n.ContractID != 0 {
		id := n.ContractID
		row.ContractID = &id
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastToUser(n.RecipientUserID, map[string]interface{}{
			"type":         "notification",
			"notification": row,
		})
	}
	s.sendPush(ctx, n)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, n NotificationRequest) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(n.RecipientUserID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	if err := s.fcm.SendNotification(ctx, u.FCMToken, n); err != nil {
		log.Printf("[Notify] push to user=%d failed: %v", n.RecipientUserID, err)
	}
}

func (s *NotificationService) List(userID uint, limit, offset int) ([]models.Notification, int64, error) {
	list, err := s.repo.ListByUserID(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(userID)
	return list, unread, err
}

func (s *NotificationService) MarkRead(id, userID uint) error {
	return s.repo.MarkRead(id, userID)
}

func (s *NotificationService) RegisterDevice(userID uint, token string) error {
	return s.userRepo.UpdateFCMToken(userID, token)
}
