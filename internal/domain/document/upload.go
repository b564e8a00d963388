package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jan-server/services/docchat-api/internal/domain/dispatch"
	"jan-server/services/docchat-api/internal/domain/worker"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

const uploadConcurrency = 4

// Storage persists uploaded bytes and returns the location handed to the worker.
type Storage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// ConversationAttacher is the slice of the conversation aggregate the upload path needs.
type ConversationAttacher interface {
	ConversationReader
	AttachDocuments(ctx context.Context, conversationID string, documentIDs []string) error
}

// IngestDispatcher sends the fire-and-forget ingestion call.
type IngestDispatcher interface {
	Ingest(ctx context.Context, req worker.IngestRequest) *dispatch.Task
}

// UploadFile is one file of an upload batch.
type UploadFile struct {
	FileName string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// UploadLimits bounds an upload batch.
type UploadLimits struct {
	MaxFiles         int
	MaxBytes         int64
	AllowedMIMETypes []string
}

// UploadService stores files, creates their documents and dispatches ingestion.
type UploadService struct {
	machine       *StateMachine
	conversations ConversationAttacher
	storage       Storage
	dispatcher    IngestDispatcher
	limits        UploadLimits
	log           zerolog.Logger
}

// NewUploadService creates the upload intake.
func NewUploadService(
	machine *StateMachine,
	conversations ConversationAttacher,
	storage Storage,
	dispatcher IngestDispatcher,
	limits UploadLimits,
	log zerolog.Logger,
) *UploadService {
	return &UploadService{
		machine:       machine,
		conversations: conversations,
		storage:       storage,
		dispatcher:    dispatcher,
		limits:        limits,
		log:           log.With().Str("component", "upload").Logger(),
	}
}

// Upload handles one batch. Files succeed or fail independently: the created documents
// are returned, and an error is returned only when no file could be accepted.
func (u *UploadService) Upload(ctx context.Context, conversationID string, files []UploadFile) ([]*Document, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"conversationId is required", nil, "0a4c6e8f-1b3d-4f57-9b2e-4d6f8a0c2e71")
	}
	if len(files) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"at least one file is required", nil, "3c5e7a9b-2d4f-4068-8a1c-5e7b9d1f3a82")
	}
	if u.limits.MaxFiles > 0 && len(files) > u.limits.MaxFiles {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("too many files: %d (max %d)", len(files), u.limits.MaxFiles), nil,
			"5e7a9c1d-4f6b-4289-b3d5-7a9c1e3f5b93")
	}

	exists, err := u.conversations.Exists(ctx, conversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve conversation")
	}
	if !exists {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("conversation not found: %s", conversationID), nil, "7a9c1e3f-5b7d-44a0-8c6e-9b1d3f5a7c04")
	}

	created := make([]*Document, len(files))
	failures := make([]error, len(files))

	var eg errgroup.Group
	eg.SetLimit(uploadConcurrency)
	for i := range files {
		i := i
		eg.Go(func() error {
			doc, err := u.accept(ctx, conversationID, files[i])
			if err != nil {
				failures[i] = err
				u.log.Warn().Err(err).
					Str("conversation_id", conversationID).
					Str("file_name", files[i].FileName).
					Msg("upload rejected")
				return nil
			}
			created[i] = doc
			return nil
		})
	}
	_ = eg.Wait()

	docs := make([]*Document, 0, len(files))
	ids := make([]string, 0, len(files))
	var firstErr error
	for i := range files {
		if created[i] != nil {
			docs = append(docs, created[i])
			ids = append(ids, created[i].PublicID)
		} else if firstErr == nil {
			firstErr = failures[i]
		}
	}
	if len(docs) == 0 {
		return nil, firstErr
	}

	if err := u.conversations.AttachDocuments(ctx, conversationID, ids); err != nil {
		u.log.Error().Err(err).Str("conversation_id", conversationID).Strs("document_ids", ids).Msg("attach documents failed")
	}

	for _, doc := range docs {
		u.dispatcher.Ingest(ctx, doc.IngestRequest())
	}
	return docs, nil
}

func (u *UploadService) accept(ctx context.Context, conversationID string, file UploadFile) (*Document, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(file.FileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"file name is required", nil, "9c1e3f5b-7d9f-46c2-a8e0-1d3f5b7c9e15")
	}
	if u.limits.MaxBytes > 0 && file.Size > u.limits.MaxBytes {
		return nil, tooLarge(ctx, name, u.limits.MaxBytes)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("cannot read %s", name), err, "1e3f5b7d-9f1b-48e4-b0a2-3f5b7d9f1b26")
	}
	defer rc.Close()

	reader := io.Reader(rc)
	if u.limits.MaxBytes > 0 {
		reader = io.LimitReader(rc, u.limits.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("cannot read %s", name), err, "3f5b7d9f-1b3d-4a06-92c4-5b7d9f1b3d37")
	}
	if u.limits.MaxBytes > 0 && int64(len(data)) > u.limits.MaxBytes {
		return nil, tooLarge(ctx, name, u.limits.MaxBytes)
	}
	if len(data) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("%s is empty", name), nil, "5b7d9f1b-3d5f-4c28-a4e6-7d9f1b3d5f48")
	}

	detected := mimetype.Detect(data)
	if !u.allowed(detected) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported file type %s for %s", detected.String(), name), nil,
			"7d9f1b3d-5f7b-4e4a-86a8-9f1b3d5f7b59")
	}

	key := StorageKey(conversationID, name)
	location, err := u.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), detected.String())
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			fmt.Sprintf("failed to store %s", name), err, "9f1b3d5f-7b9d-406c-98ca-1b3d5f7b9d6a")
	}

	return u.machine.Create(ctx, CreateParams{
		ConversationID: conversationID,
		FileName:       name,
		Location:       location,
		MimeType:       detected.String(),
		Size:           int64(len(data)),
	})
}

func (u *UploadService) allowed(detected *mimetype.MIME) bool {
	if len(u.limits.AllowedMIMETypes) == 0 {
		return true
	}
	for m := detected; m != nil; m = m.Parent() {
		for _, allowed := range u.limits.AllowedMIMETypes {
			if m.Is(strings.TrimSpace(allowed)) {
				return true
			}
		}
	}
	return false
}

// StorageKey builds a unique object key for an uploaded file inside its conversation.
func StorageKey(conversationID, fileName string) string {
	return fmt.Sprintf("%s/%s-%s", conversationID, strings.ToLower(ulid.Make().String()), sanitizeFileName(fileName))
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}

func tooLarge(ctx context.Context, name string, max int64) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		fmt.Sprintf("%s exceeds the %d byte limit", name, max), nil, "b3d5f7b9-d1f3-4a8e-ba0c-3d5f7b9d1f7b")
}
