package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/internal/messages/templates"
	observemetrics "github.com/hartfield/leadflow/internal/observability/metrics"
	"github.com/hartfield/leadflow/internal/remote"
	"github.com/hartfield/leadflow/pkg/logging"
)

// RemoteWriter is the slice of the upstream API the pipeline writes through.
type RemoteWriter interface {
	CreateInternalNote(ctx context.Context, payload remote.SendPayload) (messages.Message, error)
	CreateClientMessage(ctx context.Context, payload remote.SendPayload) (messages.Message, error)
	Reply(ctx context.Context, messageID string, payload remote.ReplyPayload) (messages.Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

// SendError carries the rolled-back input so the composer can restore it for
// a retry.
type SendError struct {
	Restore string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("outbox: send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// SendRequest describes a new message or reply to send.
type SendRequest struct {
	LeadID   string
	Type     messages.Type
	Subject  string
	Content  string
	Priority messages.Priority
	Author   messages.Author
	ReplyTo  messages.ID
	// TemplateID, when set, sources content from the template library with
	// TemplateFields resolved against the lead.
	TemplateID     string
	TemplateFields templates.Fields
}

// Pipeline implements the optimistic send protocol: the temporary record is
// inserted synchronously before the remote write, so any concurrent reader
// sees the pending message during the in-flight window; after a rollback no
// reader ever sees it again.
type Pipeline struct {
	store     *messages.Store
	remote    RemoteWriter
	templates *templates.Library
	logger    *logging.Logger
	metrics   *observemetrics.EngineMetrics
	clock     func() time.Time
}

// Config holds pipeline dependencies.
type Config struct {
	Store     *messages.Store
	Remote    RemoteWriter
	Templates *templates.Library
	Logger    *logging.Logger
	Metrics   *observemetrics.EngineMetrics
}

// NewPipeline creates an optimistic send pipeline.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Pipeline{
		store:     cfg.Store,
		remote:    cfg.Remote,
		templates: cfg.Templates,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the pipeline clock. Test hook.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Send sends a new message for a lead. The same protocol covers replies via
// Reply. Validation failures return before any store mutation or network
// call; remote failures roll the store back to exactly its prior state and
// return the original input inside a SendError.
func (p *Pipeline) Send(ctx context.Context, req SendRequest) (messages.Message, error) {
	content := req.Content
	subject := req.Subject
	limit := messages.MaxReplyLength
	if req.TemplateID != "" {
		if p.templates == nil {
			return messages.Message{}, &messages.ValidationError{Field: "template_id", Reason: "templates not configured"}
		}
		var err error
		subject, content, err = p.templates.RenderTemplate(req.TemplateID, req.TemplateFields)
		if err != nil {
			return messages.Message{}, err
		}
		if subject == "" {
			subject = req.Subject
		}
		limit = messages.MaxTemplateLength
	}

	if err := messages.ValidateContent(content, limit); err != nil {
		return messages.Message{}, err
	}

	temp := p.synthesize(req, subject, content)
	if err := temp.Validate(); err != nil {
		return messages.Message{}, err
	}

	return p.dispatch(ctx, temp, req.Content, func(ctx context.Context) (messages.Message, error) {
		payload := remote.SendPayload{
			LeadID:   temp.LeadID,
			Subject:  temp.Subject,
			Content:  temp.Content,
			Priority: temp.Priority,
		}
		if temp.Type == messages.TypeInternalNote {
			return p.remote.CreateInternalNote(ctx, payload)
		}
		return p.remote.CreateClientMessage(ctx, payload)
	})
}

// Reply sends a reply quoting an existing message.
func (p *Pipeline) Reply(ctx context.Context, req SendRequest) (messages.Message, error) {
	if req.ReplyTo.IsZero() {
		return messages.Message{}, &messages.ValidationError{Field: "reply_to", Reason: "is required"}
	}
	if req.ReplyTo.IsPending() {
		return messages.Message{}, &messages.ValidationError{Field: "reply_to", Reason: "cannot reply to an unconfirmed message"}
	}
	if err := messages.ValidateContent(req.Content, messages.MaxReplyLength); err != nil {
		return messages.Message{}, err
	}

	temp := p.synthesize(req, req.Subject, req.Content)
	replyTo := req.ReplyTo
	temp.RepliedTo = &replyTo
	if err := temp.Validate(); err != nil {
		return messages.Message{}, err
	}

	return p.dispatch(ctx, temp, req.Content, func(ctx context.Context) (messages.Message, error) {
		return p.remote.Reply(ctx, req.ReplyTo.String(), remote.ReplyPayload{Content: temp.Content})
	})
}

// MarkRead flags a message read upstream and mirrors the flag locally.
func (p *Pipeline) MarkRead(ctx context.Context, id messages.ID) error {
	if id.IsPending() {
		return &messages.ValidationError{Field: "id", Reason: "cannot mark an unconfirmed message read"}
	}
	if err := p.remote.MarkRead(ctx, id.String()); err != nil {
		return err
	}
	now := p.clock()
	err := p.store.Update(id, func(m *messages.Message) {
		m.Read = true
		m.ReadAt = &now
		m.UpdatedAt = now
	})
	if err != nil && err != messages.ErrMessageNotFound {
		return err
	}
	// Not in the local store yet is fine; the next refresh brings it in read.
	return nil
}

func (p *Pipeline) synthesize(req SendRequest, subject, content string) messages.Message {
	now := p.clock()
	priority := req.Priority
	if priority == "" {
		priority = messages.PriorityNormal
	}
	return messages.Message{
		ID:        messages.NewPendingID(),
		LeadID:    req.LeadID,
		Type:      req.Type,
		Author:    req.Author,
		Subject:   subject,
		Content:   content,
		Priority:  priority,
		Status:    messages.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// dispatch runs steps 2-5 of the protocol around the given remote write.
func (p *Pipeline) dispatch(ctx context.Context, temp messages.Message, original string, write func(context.Context) (messages.Message, error)) (messages.Message, error) {
	if err := p.store.Insert(temp); err != nil {
		return messages.Message{}, fmt.Errorf("outbox: insert temporary record: %w", err)
	}

	confirmed, err := write(ctx)
	if err != nil {
		p.store.Remove(temp.ID)
		p.metrics.ObserveSend(string(temp.Type), "failed")
		p.metrics.ObserveRollback()
		p.logger.Warn("send rolled back", "lead_id", temp.LeadID, "type", temp.Type, "error", err)
		return messages.Message{}, &SendError{Restore: original, Err: err}
	}

	confirmed.Status = messages.StatusSent
	if confirmed.LeadID == "" {
		confirmed.LeadID = temp.LeadID
	}
	if err := p.store.Replace(temp.ID, confirmed); err != nil {
		// The temporary record vanished mid-flight (scope teardown); the
		// confirmed record still belongs in the store.
		_ = p.store.Insert(confirmed)
	}
	p.metrics.ObserveSend(string(temp.Type), "sent")
	p.logger.Info("message sent", "lead_id", confirmed.LeadID, "message_id", confirmed.ID.String(), "type", confirmed.Type)
	return confirmed, nil
}
