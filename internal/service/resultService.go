package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/rosehq/screening-backend/internal/database/postgres"
	"github.com/rosehq/screening-backend/internal/entity"
	"github.com/rosehq/screening-backend/pkg/otp"
	"github.com/rosehq/screening-backend/pkg/queue"
	"github.com/rosehq/screening-backend/pkg/storage"
)

// UploadResultRequest carries a result upload. File bytes come from the
// multipart form, not the JSON body.
type UploadResultRequest struct {
	BookingID      string `json:"booking_id" binding:"required,uuid"`
	ResultCategory string `json:"result_category" binding:"required,max=100"`
	ResultNotes    string `json:"result_notes" binding:"max=2000"`
	FileData       []byte `json:"-"`
	FileName       string `json:"-"`
	UploadedBy     string `json:"-"`
}

// ResultView is what a participant sees after passing the OTP gate.
type ResultView struct {
	Result    *entity.TestResult `json:"result"`
	FileURL   string             `json:"file_url,omitempty"`
	ExpiresIn int64              `json:"expires_in,omitempty"`
}

// signedURLTTL bounds how long a result artifact link stays valid.
const signedURLTTL = time.Hour

type resultService struct {
	resultRepo      repository.ResultRepository
	bookingRepo     repository.BookingRepository
	eventRepo       repository.EventRepository
	participantRepo repository.ParticipantRepository
	otpStore        otp.Store
	artifacts       storage.ArtifactStore
	queue           TaskPublisher
}

func NewResultService(
	resultRepo repository.ResultRepository,
	bookingRepo repository.BookingRepository,
	eventRepo repository.EventRepository,
	participantRepo repository.ParticipantRepository,
	otpStore otp.Store,
	artifacts storage.ArtifactStore,
	queue TaskPublisher,
) ResultService {
	return &resultService{
		resultRepo:      resultRepo,
		bookingRepo:     bookingRepo,
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		otpStore:        otpStore,
		artifacts:       artifacts,
		queue:           queue,
	}
}

// UploadResult records a test result against a checked-in booking. One
// result per booking; the unique constraint backs the service check.
func (s *resultService) UploadResult(ctx context.Context, req *UploadResultRequest) (*entity.TestResult, error) {
	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking.Status != entity.BookingStatusCheckedIn {
		return nil, entity.ErrNotCheckedIn
	}

	result := &entity.TestResult{
		ID:             uuid.NewString(),
		BookingID:      req.BookingID,
		ResultCategory: req.ResultCategory,
		ResultNotes:    req.ResultNotes,
		UploadedBy:     req.UploadedBy,
		UploadedAt:     time.Now(),
	}

	if len(req.FileData) > 0 {
		ext := filepath.Ext(req.FileName)
		if ext == "" {
			ext = ".pdf"
		}
		key := fmt.Sprintf("results/%s%s", result.ID, ext)

		url, err := s.artifacts.Upload(req.FileData, key)
		if err != nil {
			return nil, fmt.Errorf("failed to store result artifact: %w", err)
		}
		result.ResultFileKey = key
		result.ResultFileURL = url
	}

	if err := s.resultRepo.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"result_id":  result.ID,
		"booking_id": result.BookingID,
	}).Info("Result uploaded")

	return result, nil
}

// SendResultSMS notifies the participant that their result is ready.
// Each result gets at most one notification.
func (s *resultService) SendResultSMS(ctx context.Context, resultID string) error {
	result, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return fmt.Errorf("failed to load result: %w", err)
	}
	if result.SMSSent {
		return entity.ErrSMSAlreadySent
	}

	booking, err := s.bookingRepo.GetByID(ctx, result.BookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	participant, err := s.participantRepo.GetByID(ctx, booking.ParticipantID)
	if err != nil {
		return fmt.Errorf("failed to load participant: %w", err)
	}
	event, err := s.eventRepo.GetByID(ctx, booking.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	task := &Task{
		ID:   fmt.Sprintf("%s_%s", queue.TaskTypeResultNotification, result.ID),
		Type: string(queue.TaskTypeResultNotification),
		Data: map[string]interface{}{
			"phone":      participant.PhoneNumber,
			"name":       participant.Name,
			"event_name": event.Name,
			"result_id":  result.ID,
		},
		MaxRetries: 3,
	}
	if err := s.queue.Publish(ctx, task); err != nil {
		return fmt.Errorf("failed to queue result notification: %w", err)
	}

	if err := s.resultRepo.MarkSMSSent(ctx, result.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark sms sent: %w", err)
	}

	return nil
}

func (s *resultService) GetResult(ctx context.Context, resultID string) (*entity.TestResult, error) {
	result, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return result, nil
}

func (s *resultService) GetAllResults(ctx context.Context) ([]*entity.TestResult, error) {
	results, err := s.resultRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	return results, nil
}

// GetParticipantResults merges uploaded results with still-pending
// checked-in bookings into one participant-facing list.
func (s *resultService) GetParticipantResults(ctx context.Context, participantID string) ([]*entity.ParticipantResult, error) {
	bookings, err := s.bookingRepo.GetByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant bookings: %w", err)
	}

	rows := make([]*entity.ParticipantResult, 0, len(bookings))
	for _, booking := range bookings {
		if booking.Status != entity.BookingStatusCheckedIn {
			continue
		}

		event, err := s.eventRepo.GetByID(ctx, booking.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load event: %w", err)
		}

		row := &entity.ParticipantResult{
			EventName: event.Name,
			EventDate: event.EventDate.Format(eventDateLayout),
		}

		result, err := s.resultRepo.GetByBookingID(ctx, booking.ID)
		switch {
		case err == nil:
			row.ID = result.ID
			row.ResultCategory = result.ResultCategory
			row.ResultAvailable = true
			row.UploadedAt = result.UploadedAt
		case !errors.Is(err, entity.ErrResultNotFound):
			return nil, fmt.Errorf("failed to load result: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// RequestOTP issues a fresh access code for a result and queues its SMS.
// Any outstanding code for the participant is invalidated first.
func (s *resultService) RequestOTP(ctx context.Context, resultID, participantID string) error {
	_, participant, err := s.authorizeResultAccess(ctx, resultID, participantID)
	if err != nil {
		return err
	}

	if err := s.otpStore.Invalidate(ctx, participant.PhoneNumber, otp.PurposeResultAccess); err != nil {
		return fmt.Errorf("failed to invalidate previous otp: %w", err)
	}

	code, err := s.otpStore.Create(ctx, participant.PhoneNumber, otp.PurposeResultAccess)
	if err != nil {
		return fmt.Errorf("failed to issue otp: %w", err)
	}

	task := &Task{
		ID:   fmt.Sprintf("%s_%s", queue.TaskTypeOTP, uuid.NewString()),
		Type: string(queue.TaskTypeOTP),
		Data: map[string]interface{}{
			"phone": participant.PhoneNumber,
			"code":  code,
		},
		MaxRetries: 3,
	}
	if err := s.queue.Publish(ctx, task); err != nil {
		return fmt.Errorf("failed to queue otp sms: %w", err)
	}

	return nil
}

// ViewResult verifies the submitted code and returns the result with a
// time-limited signed artifact URL. The code is consumed on success.
func (s *resultService) ViewResult(ctx context.Context, resultID, participantID, code string) (*ResultView, error) {
	result, participant, err := s.authorizeResultAccess(ctx, resultID, participantID)
	if err != nil {
		return nil, err
	}

	ok, err := s.otpStore.Verify(ctx, participant.PhoneNumber, code, otp.PurposeResultAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to verify otp: %w", err)
	}
	if !ok {
		return nil, entity.ErrInvalidOTP
	}

	view := &ResultView{Result: result}
	if result.ResultFileKey != "" {
		url, err := s.artifacts.SignedURL(result.ResultFileKey, signedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign artifact url: %w", err)
		}
		view.FileURL = url
		view.ExpiresIn = int64(signedURLTTL.Seconds())
	}

	return view, nil
}

// authorizeResultAccess loads the result and checks the requesting
// participant owns the underlying booking.
func (s *resultService) authorizeResultAccess(ctx context.Context, resultID, participantID string) (*entity.TestResult, *entity.Participant, error) {
	result, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load result: %w", err)
	}

	booking, err := s.bookingRepo.GetByID(ctx, result.BookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking.ParticipantID != participantID {
		return nil, nil, entity.ErrForbidden
	}

	participant, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load participant: %w", err)
	}

	return result, participant, nil
}
