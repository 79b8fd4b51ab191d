package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/artifacts"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/auth"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/events"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/imageprocessor"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/inference"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/repository"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/retry"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/verdict"
)

// Stage is a step of a single classification request.
type Stage string

const (
	StageReceived     Stage = "RECEIVED"
	StageValidated    Stage = "VALIDATED"
	StagePreprocessed Stage = "PREPROCESSED"
	StageScored       Stage = "SCORED"
	StageVerdicted    Stage = "VERDICTED"
	StagePersisted    Stage = "PERSISTED"
	StageDone         Stage = "DONE"
	StageErrored      Stage = "ERRORED"
)

// ClassificationStore defines the persistence operations needed by the orchestrator.
type ClassificationStore interface {
	Create(ctx context.Context, userID uint, originalImage string, processedImage *string, confidence float64, label string) (uint, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]repository.ClassificationResult, error)
}

// UserLookup resolves the owner of a session.
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*repository.User, error)
}

// Preprocessor converts raw uploads into classifier input.
type Preprocessor interface {
	Preprocess(raw []byte, filename string) (*imageprocessor.Result, error)
}

// ClassificationDeps are the collaborators of ClassificationUseCase.
// Publisher and Cache are optional.
type ClassificationDeps struct {
	Records      ClassificationStore
	Users        UserLookup
	Preprocessor Preprocessor
	Engine       inference.Engine
	Uploads      artifacts.Store
	Processed    artifacts.Store
	Publisher    events.Publisher
	Cache        Cache
}

// ClassificationOptions tune the orchestrator.
type ClassificationOptions struct {
	InferenceTimeout time.Duration
	// HistoryLimit caps returned history; zero means unbounded.
	HistoryLimit int
	HistoryTTL   time.Duration
}

// ResultView is the presentation of a single classification attempt.
type ResultView struct {
	RequestID         string        `json:"request_id"`
	Label             verdict.Label `json:"label"`
	ConfidencePercent float64       `json:"confidence_percent"`
	Display           string        `json:"display"`
	OriginalURL       string        `json:"original_url"`
	ProcessedURL      string        `json:"processed_url,omitempty"`
	RecordID          uint          `json:"record_id,omitempty"`
	Persisted         bool          `json:"persisted"`
	Stage             Stage         `json:"stage"`
	Error             string        `json:"error,omitempty"`
}

// HistoryEntry is a persisted record with resolved artifact URLs.
type HistoryEntry struct {
	repository.ClassificationResult
	OriginalURL  string `json:"original_url"`
	ProcessedURL string `json:"processed_url,omitempty"`
}

// ClassificationOutcome is returned by Classify.
type ClassificationOutcome struct {
	Result   ResultView     `json:"result"`
	History  []HistoryEntry `json:"history"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ClassificationUseCase runs uploads through preprocessing, inference and persistence.
type ClassificationUseCase struct {
	records      ClassificationStore
	users        UserLookup
	preprocessor Preprocessor
	engine       inference.Engine
	uploads      artifacts.Store
	processed    artifacts.Store
	publisher    events.Publisher
	history      *historyCache
	opts         ClassificationOptions
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
}

// NewClassificationUseCase constructs a new orchestrator.
func NewClassificationUseCase(deps ClassificationDeps, opts ClassificationOptions, logger *zap.Logger) *ClassificationUseCase {
	logger = logger.Named("classification_usecase")
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ClassificationUseCase{
		records:      deps.Records,
		users:        deps.Users,
		preprocessor: deps.Preprocessor,
		engine:       deps.Engine,
		uploads:      deps.Uploads,
		processed:    deps.Processed,
		publisher:    publisher,
		history: &historyCache{
			cache:  deps.Cache,
			ttl:    opts.HistoryTTL,
			policy: retry.DefaultPolicy,
			logger: logger,
		},
		opts:   opts,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Classify validates, scores and records one uploaded logo for the session's user.
// Preprocessing and inference failures produce an ERROR result rather than an error.
func (uc *ClassificationUseCase) Classify(ctx context.Context, session auth.SessionContext, filename string, data []byte) (*ClassificationOutcome, error) {
	requestID := uc.newID()
	opLogger := logging.WithOperation(uc.logger, "usecase.classify", requestID).With(zap.Uint("user_id", session.UserID))

	advance(opLogger, StageReceived)
	if strings.TrimSpace(filename) == "" || len(data) == 0 {
		opLogger.Info("upload rejected", zap.String("reason", ErrNoFile.Error()))
		return nil, &ValidationError{Kind: ErrNoFile}
	}
	if !imageprocessor.Allowed(filename) {
		opLogger.Info("upload rejected", zap.String("reason", ErrUnsupportedFileType.Error()), zap.String("filename", filename))
		return nil, &ValidationError{Kind: ErrUnsupportedFileType, Message: fmt.Sprintf("unsupported file type %q", imageprocessor.Extension(filename))}
	}

	advance(opLogger, StageValidated)
	if _, err := uc.users.FindByID(ctx, session.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			opLogger.Warn("session user no longer exists")
			return nil, logging.NewOperationError("usecase.classify", requestID, err)
		}
		opLogger.Error("failed to load session user", zap.Error(err))
		return nil, &StorageError{Operation: "load user", Err: err}
	}

	name := storedFilename(filename)
	namespace := fmt.Sprintf("u%d", session.UserID)
	originalKey, err := artifacts.Key(namespace, requestID, name)
	if err != nil {
		return nil, &StorageError{Operation: "name upload", Err: err}
	}
	processedKey, err := artifacts.Key(namespace, requestID, "processed_"+name)
	if err != nil {
		return nil, &StorageError{Operation: "name processed artifact", Err: err}
	}

	if err := uc.uploads.Save(ctx, originalKey, data, contentTypeFor(name)); err != nil {
		opLogger.Error("failed to store upload", zap.Error(err))
		return nil, &StorageError{Operation: "save upload", Err: err}
	}

	outcome := &ClassificationOutcome{}
	view := ResultView{
		RequestID:   requestID,
		OriginalURL: uc.resolveURL(ctx, uc.uploads, originalKey, opLogger),
	}

	res, err := uc.preprocessor.Preprocess(data, name)
	if err == nil {
		err = uc.processed.Save(ctx, processedKey, res.Artifact, res.ContentType)
	}
	if err != nil {
		opLogger.Error("preprocessing failed", zap.Error(err), zap.String("stage", string(StageValidated)))
		outcome.Result = errored(view, "preprocessing failed")
		return uc.finish(ctx, session, requestID, outcome, false), nil
	}

	advance(opLogger, StagePreprocessed)
	view.ProcessedURL = uc.resolveURL(ctx, uc.processed, processedKey, opLogger)

	score, err := uc.predict(ctx, res.Tensor)
	if err != nil {
		opLogger.Error("inference failed", zap.Error(err), zap.String("stage", string(StagePreprocessed)))
		outcome.Result = errored(view, "inference failed")
		return uc.finish(ctx, session, requestID, outcome, false), nil
	}

	advance(opLogger, StageScored)
	v := verdict.Derive(score)
	view.Label = v.Label
	view.ConfidencePercent = v.ConfidencePercent
	view.Display = v.Display

	advance(opLogger, StageVerdicted)
	if !v.Label.Persistable() {
		opLogger.Error("verdict is not persistable", zap.String("label", string(v.Label)))
		outcome.Result = errored(view, "inference failed")
		return uc.finish(ctx, session, requestID, outcome, false), nil
	}
	recordID, err := uc.records.Create(ctx, session.UserID, originalKey, &processedKey, v.ConfidencePercent, string(v.Label))
	if err != nil {
		storageErr := &StorageError{Operation: "create classification", Err: err}
		opLogger.Error("failed to persist classification", zap.Error(storageErr), zap.String("stage", string(StageVerdicted)))
		outcome.Warnings = append(outcome.Warnings, "result could not be saved")
	} else {
		view.RecordID = recordID
		view.Persisted = true
		advance(opLogger, StagePersisted)
		uc.history.invalidate(ctx, requestID, session.UserID)
		uc.publish(ctx, events.ClassificationEvent{
			RequestID:         requestID,
			RecordID:          recordID,
			UserID:            session.UserID,
			Label:             string(v.Label),
			ConfidencePercent: v.ConfidencePercent,
			OriginalImage:     originalKey,
			ProcessedImage:    processedKey,
			OccurredAt:        uc.now().UTC(),
		}, opLogger)
	}

	opLogger.Info("classification completed",
		zap.String("label", string(v.Label)),
		zap.Float64("confidence_percent", v.ConfidencePercent),
		zap.Bool("persisted", view.Persisted),
	)

	view.Stage = StageDone
	advance(opLogger, StageDone)
	outcome.Result = view
	return uc.finish(ctx, session, requestID, outcome, view.Persisted), nil
}

// History returns the session user's records, newest first.
func (uc *ClassificationUseCase) History(ctx context.Context, session auth.SessionContext) ([]HistoryEntry, error) {
	requestID := uc.newID()
	records, err := uc.loadHistory(ctx, requestID, session.UserID, false)
	if err != nil {
		return nil, err
	}
	return uc.present(ctx, requestID, records), nil
}

// finish attaches history to outcome. A history failure is reported as a warning
// so the classification result is not lost.
func (uc *ClassificationUseCase) finish(ctx context.Context, session auth.SessionContext, requestID string, outcome *ClassificationOutcome, bypassCache bool) *ClassificationOutcome {
	records, err := uc.loadHistory(ctx, requestID, session.UserID, bypassCache)
	if err != nil {
		outcome.Warnings = append(outcome.Warnings, "history unavailable")
		outcome.History = []HistoryEntry{}
		return outcome
	}
	outcome.History = uc.present(ctx, requestID, records)
	return outcome
}

func (uc *ClassificationUseCase) loadHistory(ctx context.Context, requestID string, userID uint, bypassCache bool) ([]repository.ClassificationResult, error) {
	gen, cacheable := uc.history.generation(ctx, requestID, userID)
	if cacheable && !bypassCache {
		if cached, ok := uc.history.get(ctx, requestID, userID, gen); ok {
			return cached, nil
		}
	}

	records, err := uc.records.ListByUser(ctx, userID, uc.opts.HistoryLimit)
	if err != nil {
		wrapped := &StorageError{Operation: "list history", Err: err}
		logging.WithOperation(uc.logger, "usecase.history", requestID).Error("failed to load history", zap.Error(wrapped))
		return nil, wrapped
	}
	if records == nil {
		records = []repository.ClassificationResult{}
	}

	if cacheable {
		uc.history.put(ctx, requestID, userID, gen, records)
	}
	return records, nil
}

func (uc *ClassificationUseCase) present(ctx context.Context, requestID string, records []repository.ClassificationResult) []HistoryEntry {
	opLogger := logging.WithOperation(uc.logger, "usecase.history", requestID)
	entries := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		entry := HistoryEntry{
			ClassificationResult: r,
			OriginalURL:          uc.resolveURL(ctx, uc.uploads, r.OriginalImage, opLogger),
		}
		if r.ProcessedImage != nil {
			entry.ProcessedURL = uc.resolveURL(ctx, uc.processed, *r.ProcessedImage, opLogger)
		}
		entries = append(entries, entry)
	}
	return entries
}

type prediction struct {
	score float64
	err   error
}

// predict bounds the engine call by the inference timeout even when the engine
// ignores its context. An abandoned call finishes into a buffered channel.
func (uc *ClassificationUseCase) predict(ctx context.Context, tensor imageprocessor.Tensor) (float64, error) {
	if uc.opts.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.InferenceTimeout)
		defer cancel()
	}

	done := make(chan prediction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- prediction{err: fmt.Errorf("inference engine panicked: %v", r)}
			}
		}()
		score, err := uc.engine.Predict(ctx, tensor)
		done <- prediction{score: score, err: err}
	}()

	select {
	case p := <-done:
		if p.err != nil {
			return 0, p.err
		}
		if err := inference.ValidateScore(p.score); err != nil {
			return 0, err
		}
		return p.score, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("inference: %w", ctx.Err())
	}
}

func (uc *ClassificationUseCase) publish(ctx context.Context, event events.ClassificationEvent, opLogger *zap.Logger) {
	if err := uc.publisher.PublishClassification(ctx, event); err != nil {
		opLogger.Warn("failed to publish classification event", zap.Error(err))
	}
}

func (uc *ClassificationUseCase) resolveURL(ctx context.Context, store artifacts.Store, key string, opLogger *zap.Logger) string {
	url, err := store.URL(ctx, key)
	if err != nil {
		opLogger.Warn("failed to resolve artifact url", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

func advance(logger *zap.Logger, stage Stage) {
	logger.Debug("stage reached", zap.String("stage", string(stage)))
}

func errored(view ResultView, reason string) ResultView {
	v := verdict.Errored()
	view.Label = v.Label
	view.ConfidencePercent = v.ConfidencePercent
	view.Display = v.Display
	view.ProcessedURL = ""
	view.Stage = StageErrored
	view.Error = reason
	return view
}

// storedFilename sanitises filename, keeping its validated extension.
func storedFilename(filename string) string {
	ext := imageprocessor.Extension(filename)
	name := artifacts.SanitizeFilename(filename)
	if imageprocessor.Extension(name) != ext {
		return "upload." + ext
	}
	return name
}

func contentTypeFor(name string) string {
	switch imageprocessor.Extension(name) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
