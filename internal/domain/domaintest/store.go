// Package domaintest provides in-memory implementations of the domain repositories and
// collaborators for tests.
package domaintest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"jan-server/services/docchat-api/internal/domain/conversation"
	"jan-server/services/docchat-api/internal/domain/document"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

// Store keeps conversations, documents and messages in memory. Transaction snapshots
// the whole store and restores it when the callback fails.
type Store struct {
	mu            sync.Mutex
	conversations []*conversation.Conversation
	documents     []*document.Document
	messages      []*message.Message
	nextID        uint
	failures      map[string]error
	now           func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{failures: map[string]error{}, now: time.Now}
}

// FailOn makes every later call of op return err. op is "<repo>.<Method>", for example
// "documents.DeleteByConversationID".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Conversations returns the conversation repository view.
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s: s} }

// Documents returns the document repository view.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

// Messages returns the message repository view.
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s: s} }

// Transaction runs fn and rolls every change back if it returns an error.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	convs, docs, msgs := cloneConversations(s.conversations), cloneDocuments(s.documents), cloneMessages(s.messages)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.conversations, s.documents, s.messages = convs, docs, msgs
		s.mu.Unlock()
		return err
	}
	return nil
}

// Counts reports how many rows each collection holds.
func (s *Store) Counts() (conversations, documents, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations), len(s.documents), len(s.messages)
}

// SetDocumentUpdatedAt rewinds a document's update time.
func (s *Store) SetDocumentUpdatedAt(publicID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.documents {
		if d.PublicID == publicID {
			d.UpdatedAt = at
		}
	}
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func notFound(kind, id string) error {
	return platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		fmt.Sprintf("%s not found: %s", kind, id), nil, "")
}

// ConversationRepo implements conversation.Repository.
type ConversationRepo struct{ s *Store }

func (r *ConversationRepo) Create(_ context.Context, conv *conversation.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("conversations.Create"); err != nil {
		return err
	}
	now := r.s.now()
	conv.ID = r.s.id()
	conv.CreatedAt, conv.UpdatedAt = now, now
	if conv.DocumentIDs == nil {
		conv.DocumentIDs = []string{}
	}
	c := *conv
	c.DocumentIDs = append([]string{}, conv.DocumentIDs...)
	r.s.conversations = append(r.s.conversations, &c)
	return nil
}

func (r *ConversationRepo) find(publicID string) *conversation.Conversation {
	for _, c := range r.s.conversations {
		if c.PublicID == publicID {
			return c
		}
	}
	return nil
}

func (r *ConversationRepo) FindByPublicID(_ context.Context, publicID string) (*conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("conversations.FindByPublicID"); err != nil {
		return nil, err
	}
	c := r.find(publicID)
	if c == nil {
		return nil, notFound("conversation", publicID)
	}
	out := *c
	out.DocumentIDs = append([]string{}, c.DocumentIDs...)
	return &out, nil
}

func (r *ConversationRepo) Exists(_ context.Context, publicID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(publicID) != nil, nil
}

func (r *ConversationRepo) List(_ context.Context) ([]*conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := cloneConversations(r.s.conversations)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *ConversationRepo) Update(_ context.Context, conv *conversation.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.find(conv.PublicID)
	if c == nil {
		return notFound("conversation", conv.PublicID)
	}
	c.Title = conv.Title
	c.FeatureMode = conv.FeatureMode
	c.UpdatedAt = r.s.now()
	conv.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *ConversationRepo) AppendDocuments(_ context.Context, publicID string, documentIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("conversations.AppendDocuments"); err != nil {
		return err
	}
	c := r.find(publicID)
	if c == nil {
		return notFound("conversation", publicID)
	}
	c.DocumentIDs = append(c.DocumentIDs, documentIDs...)
	c.UpdatedAt = r.s.now()
	return nil
}

func (r *ConversationRepo) RemoveDocument(_ context.Context, publicID string, documentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("conversations.RemoveDocument"); err != nil {
		return err
	}
	c := r.find(publicID)
	if c == nil {
		return notFound("conversation", publicID)
	}
	kept := c.DocumentIDs[:0]
	for _, id := range c.DocumentIDs {
		if id != documentID {
			kept = append(kept, id)
		}
	}
	c.DocumentIDs = kept
	c.UpdatedAt = r.s.now()
	return nil
}

func (r *ConversationRepo) Delete(_ context.Context, publicID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("conversations.Delete"); err != nil {
		return err
	}
	for i, c := range r.s.conversations {
		if c.PublicID == publicID {
			r.s.conversations = append(r.s.conversations[:i:i], r.s.conversations[i+1:]...)
			return nil
		}
	}
	return notFound("conversation", publicID)
}

func (r *ConversationRepo) Touch(_ context.Context, publicID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.find(publicID); c != nil {
		c.UpdatedAt = r.s.now()
	}
	return nil
}

// DocumentRepo implements document.Repository.
type DocumentRepo struct{ s *Store }

func (r *DocumentRepo) Create(ctx context.Context, doc *document.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("documents.Create"); err != nil {
		return err
	}
	for _, d := range r.s.documents {
		if d.VectorNamespace == doc.VectorNamespace {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"vector namespace already exists", nil, "")
		}
	}
	now := r.s.now()
	doc.ID = r.s.id()
	doc.CreatedAt, doc.UpdatedAt = now, now
	d := *doc
	r.s.documents = append(r.s.documents, &d)
	return nil
}

func (r *DocumentRepo) find(publicID string) *document.Document {
	for _, d := range r.s.documents {
		if d.PublicID == publicID {
			return d
		}
	}
	return nil
}

func (r *DocumentRepo) FindByPublicID(_ context.Context, publicID string) (*document.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.find(publicID)
	if d == nil {
		return nil, notFound("document", publicID)
	}
	out := *d
	return &out, nil
}

func (r *DocumentRepo) FindByConversationID(_ context.Context, conversationID string) ([]*document.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("documents.FindByConversationID"); err != nil {
		return nil, err
	}
	var out []*document.Document
	for _, d := range r.s.documents {
		if d.ConversationID == conversationID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *DocumentRepo) CompareAndSetStatus(_ context.Context, publicID string, from, to document.Status, errorMessage *string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("documents.CompareAndSetStatus"); err != nil {
		return false, err
	}
	d := r.find(publicID)
	if d == nil || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.ErrorMessage = errorMessage
	d.UpdatedAt = r.s.now()
	return true, nil
}

// SetStatus overwrites a document's status without any checks.
func (r *DocumentRepo) SetStatus(publicID string, status document.Status) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d := r.find(publicID); d != nil {
		d.Status = status
	}
}

func (r *DocumentRepo) Delete(_ context.Context, publicID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("documents.Delete"); err != nil {
		return err
	}
	for i, d := range r.s.documents {
		if d.PublicID == publicID {
			r.s.documents = append(r.s.documents[:i:i], r.s.documents[i+1:]...)
			return nil
		}
	}
	return notFound("document", publicID)
}

func (r *DocumentRepo) DeleteByConversationID(_ context.Context, conversationID string) ([]*document.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("documents.DeleteByConversationID"); err != nil {
		return nil, err
	}
	var removed []*document.Document
	kept := make([]*document.Document, 0, len(r.s.documents))
	for _, d := range r.s.documents {
		if d.ConversationID == conversationID {
			removed = append(removed, d)
			continue
		}
		kept = append(kept, d)
	}
	r.s.documents = kept
	return removed, nil
}

func (r *DocumentRepo) FindStale(_ context.Context, status document.Status, updatedBefore time.Time, limit int) ([]*document.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*document.Document
	for _, d := range r.s.documents {
		if d.Status == status && d.UpdatedAt.Before(updatedBefore) {
			c := *d
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DocumentRepo) Touch(_ context.Context, publicID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.find(publicID)
	if d == nil {
		return notFound("document", publicID)
	}
	d.UpdatedAt = r.s.now()
	return nil
}

// MessageRepo implements message.Repository.
type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(_ context.Context, msg *message.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("messages.Create"); err != nil {
		return err
	}
	at := r.s.now()
	for _, m := range r.s.messages {
		if m.ConversationID == msg.ConversationID && m.CreatedAt.After(at) {
			at = m.CreatedAt
		}
	}
	msg.ID = r.s.id()
	msg.CreatedAt = at
	m := *msg
	m.Sources = append([]string(nil), msg.Sources...)
	r.s.messages = append(r.s.messages, &m)
	return nil
}

func (r *MessageRepo) ListByConversation(_ context.Context, conversationID string) ([]*message.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(conversationID), nil
}

func (r *MessageRepo) ListRecent(_ context.Context, conversationID string, limit int) ([]*message.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("messages.ListRecent"); err != nil {
		return nil, err
	}
	all := r.list(conversationID)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *MessageRepo) list(conversationID string) []*message.Message {
	var out []*message.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *MessageRepo) DeleteByConversationID(_ context.Context, conversationID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("messages.DeleteByConversationID"); err != nil {
		return 0, err
	}
	var n int64
	kept := make([]*message.Message, 0, len(r.s.messages))
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.s.messages = kept
	return n, nil
}

func cloneConversations(in []*conversation.Conversation) []*conversation.Conversation {
	out := make([]*conversation.Conversation, 0, len(in))
	for _, c := range in {
		cp := *c
		cp.DocumentIDs = append([]string{}, c.DocumentIDs...)
		out = append(out, &cp)
	}
	return out
}

func cloneDocuments(in []*document.Document) []*document.Document {
	out := make([]*document.Document, 0, len(in))
	for _, d := range in {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

func cloneMessages(in []*message.Message) []*message.Message {
	out := make([]*message.Message, 0, len(in))
	for _, m := range in {
		cp := *m
		out = append(out, &cp)
	}
	return out
}
