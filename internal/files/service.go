package files

import (
	"context"
	"fmt"
	"strings"
	"time"

	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/queue"
	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/metrics"
	"filetrack-backend/internal/shared/telemetry"
	"filetrack-backend/internal/users"
)

const receiveRemark = "File received for digitization"

// UserLookup resolves the people named in receipts and transitions.
type UserLookup interface {
	GetActive(ctx context.Context, id int64) (users.User, error)
}

// Service is the lifecycle engine: it validates input, checks the actors and
// hands guarded units of work to the store.
type Service struct {
	Repo     Repo
	Users    UserLookup
	Notifier queue.Client
	Now      func() time.Time
	Location *time.Location
}

func NewService(repo Repo, lookup UserLookup) *Service {
	return &Service{Repo: repo, Users: lookup}
}

type ReceiveInput struct {
	CNRNumber    string     `json:"cnrNumber"`
	CaseType     string     `json:"caseType"`
	CaseYear     int        `json:"caseYear"`
	CaseNumber   string     `json:"caseNumber"`
	PageCount    int        `json:"pageCount"`
	PartyNames   string     `json:"partyNames"`
	Priority     string     `json:"priority"`
	ReceivedByID int64      `json:"receivedById"`
	ReceivedAt   *time.Time `json:"receivedAt"`
	Remarks      string     `json:"remarks"`
}

type HandoverInput struct {
	FileID     int64      `json:"fileId"`
	FromUserID int64      `json:"handoverById"`
	ToUserID   int64      `json:"handoverToId"`
	Mode       string     `json:"handoverMode"`
	Remarks    string     `json:"remarks"`
	At         *time.Time `json:"handoverAt"`
	RequestID  string     `json:"-"`
}

type TransitionInput struct {
	FileID         int64      `json:"fileId"`
	Status         string     `json:"status"`
	UserID         int64      `json:"userId"`
	Remarks        string     `json:"remarks"`
	ExpectedStatus string     `json:"expectedStatus"`
	At             *time.Time `json:"timestamp"`
	Override       bool       `json:"override"`
	RequestID      string     `json:"-"`
}

// HandoverResult is everything a handover wrote.
type HandoverResult struct {
	Handover FileHandover   `json:"handover"`
	Event    LifecycleEvent `json:"event"`
	File     FileReceipt    `json:"file"`
}

type TransitionResult struct {
	Event LifecycleEvent `json:"event"`
	File  FileReceipt    `json:"file"`
}

type ReceiveResult struct {
	File  FileReceipt    `json:"file"`
	Event LifecycleEvent `json:"event"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func (s *Service) Receive(ctx context.Context, in ReceiveInput) (ReceiveResult, error) {
	receipt, err := s.normalizeReceipt(in)
	if err != nil {
		return ReceiveResult{}, err
	}
	if _, err := s.Users.GetActive(ctx, receipt.ReceivedByID); err != nil {
		return ReceiveResult{}, err
	}

	created, event, err := s.Repo.CreateReceipt(ctx, receipt, receiveRemark)
	if err != nil {
		return ReceiveResult{}, err
	}
	metrics.IncFilesReceived()
	telemetry.Info("file.received", map[string]any{
		"file_id":        created.ID,
		"transaction_id": created.TransactionID,
		"user_id":        created.ReceivedByID,
	})
	s.notify(ctx, created, event, "")
	return ReceiveResult{File: created, Event: event}, nil
}

func (s *Service) normalizeReceipt(in ReceiveInput) (FileReceipt, error) {
	var verr apperr.ValidationError

	cnr := strings.TrimSpace(in.CNRNumber)
	if cnr == "" {
		verr.Add("cnrNumber", "is required")
	} else if len(cnr) > 50 {
		verr.Add("cnrNumber", "must be at most 50 characters")
	}
	caseType := CaseType(strings.ToLower(strings.TrimSpace(in.CaseType)))
	if !caseType.Valid() {
		verr.Add("caseType", "must be one of civil, criminal, writ, appeal, revision, other")
	}
	if maxYear := s.now().In(s.location()).Year() + 1; in.CaseYear < 1900 || in.CaseYear > maxYear {
		verr.Add("caseYear", fmt.Sprintf("must be between 1900 and %d", maxYear))
	}
	caseNumber := strings.TrimSpace(in.CaseNumber)
	if caseNumber == "" {
		verr.Add("caseNumber", "is required")
	}
	if in.PageCount <= 0 {
		verr.Add("pageCount", "must be positive")
	}
	priority := Priority(strings.ToLower(strings.TrimSpace(in.Priority)))
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		verr.Add("priority", "must be one of normal, high, urgent")
	}
	if in.ReceivedByID <= 0 {
		verr.Add("receivedById", "is required")
	}
	at := s.now()
	if in.ReceivedAt != nil && !in.ReceivedAt.IsZero() {
		if in.ReceivedAt.After(at) {
			verr.Add("receivedAt", "must not be in the future")
		}
		at = *in.ReceivedAt
	}
	if err := verr.OrNil(); err != nil {
		return FileReceipt{}, err
	}

	return FileReceipt{
		CNRNumber:    cnr,
		CaseType:     caseType,
		CaseYear:     in.CaseYear,
		CaseNumber:   caseNumber,
		PageCount:    in.PageCount,
		PartyNames:   strings.TrimSpace(in.PartyNames),
		Priority:     priority,
		ReceivedByID: in.ReceivedByID,
		ReceivedAt:   at.In(s.location()),
		Remarks:      strings.TrimSpace(in.Remarks),
	}, nil
}

func (s *Service) Handover(ctx context.Context, in HandoverInput) (HandoverResult, error) {
	var verr apperr.ValidationError
	if in.FileID <= 0 {
		verr.Add("fileId", "is required")
	}
	if in.FromUserID <= 0 {
		verr.Add("handoverById", "is required")
	}
	if in.ToUserID <= 0 {
		verr.Add("handoverToId", "is required")
	}
	if in.FromUserID > 0 && in.FromUserID == in.ToUserID {
		verr.Add("handoverToId", "must differ from handoverById")
	}
	mode := HandoverMode(strings.ToLower(strings.TrimSpace(in.Mode)))
	if mode == "" {
		mode = ModeManual
	}
	if !mode.Valid() {
		verr.Add("handoverMode", "must be one of manual, barcode, electronic")
	}
	if err := verr.OrNil(); err != nil {
		return HandoverResult{}, err
	}

	if _, err := s.Repo.GetReceipt(ctx, in.FileID); err != nil {
		return HandoverResult{}, err
	}
	if _, err := s.Users.GetActive(ctx, in.FromUserID); err != nil {
		return HandoverResult{}, err
	}
	to, err := s.Users.GetActive(ctx, in.ToUserID)
	if err != nil {
		return HandoverResult{}, err
	}

	at := s.eventTime(in.At)
	remarks := strings.TrimSpace(in.Remarks)
	if remarks == "" {
		remarks = fmt.Sprintf("File handed over to %s for scanning", to.FullName)
	}

	handover, event, receipt, err := s.Repo.CreateHandover(ctx,
		FileHandover{
			FileID:       in.FileID,
			HandoverByID: in.FromUserID,
			HandoverToID: in.ToUserID,
			Mode:         mode,
			HandoverAt:   at,
			Remarks:      strings.TrimSpace(in.Remarks),
		},
		LifecycleEvent{
			FileID:     in.FileID,
			Status:     lifecycle.HandedOver,
			UserID:     in.FromUserID,
			OccurredAt: at,
			Remarks:    remarks,
		},
		func(current FileReceipt) error {
			if err := lifecycle.CheckHandover(current.Status); err != nil {
				return err
			}
			return checkChronology(current, at)
		},
	)
	if err != nil {
		return HandoverResult{}, err
	}

	metrics.IncTransition(string(event.Status), string(lifecycle.PathHandover))
	telemetry.Info("file.handed_over", map[string]any{
		"file_id":        receipt.ID,
		"transaction_id": receipt.TransactionID,
		"from_user_id":   in.FromUserID,
		"to_user_id":     in.ToUserID,
		"mode":           string(mode),
	})
	s.notify(ctx, receipt, event, in.RequestID)
	return HandoverResult{Handover: handover, Event: event, File: receipt}, nil
}

// RecordTransition routes to Override when requested and Advance otherwise.
func (s *Service) RecordTransition(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	if in.Override {
		return s.Override(ctx, in)
	}
	return s.Advance(ctx, in)
}

// Advance moves a file to the immediate next stage.
func (s *Service) Advance(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	target, expected, err := parseTransition(in)
	if err != nil {
		return TransitionResult{}, err
	}
	if _, err := s.Users.GetActive(ctx, in.UserID); err != nil {
		return TransitionResult{}, err
	}
	at := s.eventTime(in.At)
	remarks := strings.TrimSpace(in.Remarks)
	if remarks == "" {
		remarks = lifecycle.DefaultRemark(target)
	}
	return s.apply(ctx, in, lifecycle.PathForward, LifecycleEvent{
		FileID:     in.FileID,
		Status:     target,
		UserID:     in.UserID,
		OccurredAt: at,
		Remarks:    remarks,
	}, func(current FileReceipt) error {
		if err := lifecycle.CheckExpected(current.Status, expected); err != nil {
			return err
		}
		if err := lifecycle.CheckForward(current.Status, target); err != nil {
			return err
		}
		return checkChronology(current, at)
	})
}

// Override sets any stage. Only admins and supervisors may use it.
func (s *Service) Override(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	target, expected, err := parseTransition(in)
	if err != nil {
		return TransitionResult{}, err
	}
	if err := lifecycle.CheckOverride(target); err != nil {
		return TransitionResult{}, err
	}
	actor, err := s.Users.GetActive(ctx, in.UserID)
	if err != nil {
		return TransitionResult{}, err
	}
	if !actor.CanOverride() {
		return TransitionResult{}, apperr.Forbidden("role %s cannot override file status", actor.Role)
	}
	at := s.eventTime(in.At)
	remarks := strings.TrimSpace(in.Remarks)
	if remarks == "" {
		remarks = lifecycle.OverrideRemark(target)
	}
	return s.apply(ctx, in, lifecycle.PathOverride, LifecycleEvent{
		FileID:     in.FileID,
		Status:     target,
		UserID:     in.UserID,
		OccurredAt: at,
		Remarks:    remarks,
	}, func(current FileReceipt) error {
		if err := lifecycle.CheckExpected(current.Status, expected); err != nil {
			return err
		}
		return checkChronology(current, at)
	})
}

func (s *Service) apply(ctx context.Context, in TransitionInput, path lifecycle.Path, event LifecycleEvent, guard Guard) (TransitionResult, error) {
	saved, receipt, err := s.Repo.ApplyTransition(ctx, event, guard)
	if err != nil {
		return TransitionResult{}, err
	}
	metrics.IncTransition(string(saved.Status), string(path))
	telemetry.Info("file.transition", map[string]any{
		"file_id":        receipt.ID,
		"transaction_id": receipt.TransactionID,
		"status":         string(saved.Status),
		"path":           string(path),
		"user_id":        saved.UserID,
	})
	s.notify(ctx, receipt, saved, in.RequestID)
	return TransitionResult{Event: saved, File: receipt}, nil
}

func parseTransition(in TransitionInput) (lifecycle.Status, lifecycle.Status, error) {
	var verr apperr.ValidationError
	if in.FileID <= 0 {
		verr.Add("fileId", "is required")
	}
	if in.UserID <= 0 {
		verr.Add("userId", "is required")
	}
	target, err := lifecycle.Parse(in.Status)
	if err != nil {
		for _, f := range apperr.Fields(err) {
			verr.Add(f.Field, f.Message)
		}
	}
	var expected lifecycle.Status
	if strings.TrimSpace(in.ExpectedStatus) != "" {
		parsed, err := lifecycle.Parse(in.ExpectedStatus)
		if err != nil {
			verr.Add("expectedStatus", "unknown status "+in.ExpectedStatus)
		}
		expected = parsed
	}
	if err := verr.OrNil(); err != nil {
		return "", "", err
	}
	return target, expected, nil
}

func checkChronology(current FileReceipt, at time.Time) error {
	if at.Before(current.LastUpdatedAt) {
		return apperr.Invalid("timestamp", "must not precede the latest event at "+current.LastUpdatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func (s *Service) eventTime(at *time.Time) time.Time {
	if at != nil && !at.IsZero() {
		return *at
	}
	return s.now()
}

func (s *Service) notify(ctx context.Context, receipt FileReceipt, event LifecycleEvent, requestID string) {
	if s.Notifier == nil {
		return
	}
	err := s.Notifier.Send(ctx, queue.Message{
		Type:          queue.TypeStatusChanged,
		FileID:        receipt.ID,
		TransactionID: receipt.TransactionID,
		Status:        string(event.Status),
		UserID:        event.UserID,
		OccurredAt:    event.OccurredAt.UTC(),
		RequestID:     requestID,
		Version:       queue.MessageVersion,
	})
	if err != nil {
		telemetry.Error("queue.send_failed", map[string]any{
			"file_id":    receipt.ID,
			"status":     string(event.Status),
			"request_id": requestID,
			"error":      err,
		})
	}
}

func (s *Service) Get(ctx context.Context, id int64) (FileReceipt, error) {
	return s.Repo.GetReceipt(ctx, id)
}

func (s *Service) GetByTransactionID(ctx context.Context, transactionID string) (FileReceipt, error) {
	return s.Repo.GetReceiptByTransactionID(ctx, transactionID)
}

func (s *Service) GetByCNR(ctx context.Context, cnr string) (FileReceipt, error) {
	cnr = strings.TrimSpace(cnr)
	if cnr == "" {
		return FileReceipt{}, apperr.Invalid("cnrNumber", "is required")
	}
	return s.Repo.GetReceiptByCNR(ctx, cnr)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (s *Service) List(ctx context.Context, filter ReceiptFilter) ([]FileReceipt, int, ReceiptFilter, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, filter, apperr.Invalid("status", "unknown status "+string(filter.Status))
	}
	if filter.CaseType != "" && !filter.CaseType.Valid() {
		return nil, 0, filter, apperr.Invalid("caseType", "unknown case type "+string(filter.CaseType))
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, 0, filter, apperr.Invalid("priority", "unknown priority "+string(filter.Priority))
	}
	items, total, err := s.Repo.ListReceipts(ctx, filter)
	if err != nil {
		return nil, 0, filter, err
	}
	return items, total, filter, nil
}

func (s *Service) UpdateDetails(ctx context.Context, id int64, patch DetailsPatch) (FileReceipt, error) {
	var verr apperr.ValidationError
	if patch.CNRNumber != nil {
		v := strings.TrimSpace(*patch.CNRNumber)
		if v == "" {
			verr.Add("cnrNumber", "must not be empty")
		} else if len(v) > 50 {
			verr.Add("cnrNumber", "must be at most 50 characters")
		}
		patch.CNRNumber = &v
	}
	if patch.CaseType != nil {
		v := CaseType(strings.ToLower(string(*patch.CaseType)))
		if !v.Valid() {
			verr.Add("caseType", "must be one of civil, criminal, writ, appeal, revision, other")
		}
		patch.CaseType = &v
	}
	if patch.CaseYear != nil {
		if maxYear := s.now().In(s.location()).Year() + 1; *patch.CaseYear < 1900 || *patch.CaseYear > maxYear {
			verr.Add("caseYear", fmt.Sprintf("must be between 1900 and %d", maxYear))
		}
	}
	if patch.CaseNumber != nil {
		v := strings.TrimSpace(*patch.CaseNumber)
		if v == "" {
			verr.Add("caseNumber", "must not be empty")
		}
		patch.CaseNumber = &v
	}
	if patch.PageCount != nil && *patch.PageCount <= 0 {
		verr.Add("pageCount", "must be positive")
	}
	if patch.Priority != nil {
		v := Priority(strings.ToLower(string(*patch.Priority)))
		if !v.Valid() {
			verr.Add("priority", "must be one of normal, high, urgent")
		}
		patch.Priority = &v
	}
	if err := verr.OrNil(); err != nil {
		return FileReceipt{}, err
	}
	return s.Repo.UpdateReceiptDetails(ctx, id, patch)
}

func (s *Service) History(ctx context.Context, fileID int64) ([]LifecycleEvent, error) {
	if _, err := s.Repo.GetReceipt(ctx, fileID); err != nil {
		return nil, err
	}
	return s.Repo.ListLifecycleEvents(ctx, fileID)
}

func (s *Service) Handovers(ctx context.Context, fileID int64) ([]FileHandover, error) {
	if _, err := s.Repo.GetReceipt(ctx, fileID); err != nil {
		return nil, err
	}
	return s.Repo.ListHandovers(ctx, fileID)
}

func (s *Service) RecentActivity(ctx context.Context, limit int) ([]LifecycleEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.Repo.ListRecentLifecycleEvents(ctx, limit)
}
