package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartfield/leadflow/internal/api/router"
	"github.com/hartfield/leadflow/internal/http/handlers"
	"github.com/hartfield/leadflow/internal/http/middleware"
	"github.com/hartfield/leadflow/internal/leads"
	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/internal/messages/templates"
	"github.com/hartfield/leadflow/internal/outbox"
	"github.com/hartfield/leadflow/internal/remote"
	"github.com/hartfield/leadflow/internal/syncer"
)

const testSecret = "test-secret"

// stubRemote confirms every write locally, or fails each one with err.
type stubRemote struct {
	err   error
	calls atomic.Int32
}

func (s *stubRemote) confirm(leadID, content string) (messages.Message, error) {
	s.calls.Add(1)
	if s.err != nil {
		return messages.Message{}, s.err
	}
	return messages.Message{
		ID:        messages.ConfirmedID(uuid.NewString()),
		LeadID:    leadID,
		Type:      messages.TypeClientMessage,
		Content:   content,
		Status:    messages.StatusSent,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *stubRemote) CreateInternalNote(ctx context.Context, p remote.SendPayload) (messages.Message, error) {
	m, err := s.confirm(p.LeadID, p.Content)
	m.Type = messages.TypeInternalNote
	return m, err
}

func (s *stubRemote) CreateClientMessage(ctx context.Context, p remote.SendPayload) (messages.Message, error) {
	return s.confirm(p.LeadID, p.Content)
}

func (s *stubRemote) Reply(ctx context.Context, messageID string, p remote.ReplyPayload) (messages.Message, error) {
	m, err := s.confirm("L1", p.Content)
	m.Type = messages.TypeClientReply
	return m, err
}

func (s *stubRemote) MarkRead(ctx context.Context, messageID string) error {
	s.calls.Add(1)
	return s.err
}

type testEnv struct {
	store   *messages.Store
	remote  *stubRemote
	repo    *leads.InMemoryRepository
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := messages.NewStore()
	stub := &stubRemote{}
	library := templates.NewLibrary()
	pipeline := outbox.NewPipeline(outbox.Config{
		Store:     store,
		Remote:    stub,
		Templates: library,
	})
	repo := leads.NewInMemoryRepository()
	service := leads.NewService(repo, leads.NewMachine(), nil)

	handler := router.New(&router.Config{
		Messages:   handlers.NewMessagesHandler(store, pipeline, nil),
		Leads:      handlers.NewLeadsHandler(service, nil, nil),
		Templates:  handlers.NewTemplatesHandler(library, nil),
		AuthSecret: testSecret,
	})
	return &testEnv{store: store, remote: stub, repo: repo, handler: handler}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	claims := middleware.RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, "expected success envelope, got %q", env.Message)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func seedMsg(t *testing.T, e *testEnv, id, leadID string, typ messages.Type, at time.Time) {
	t.Helper()
	require.NoError(t, e.store.Insert(messages.Message{
		ID:        messages.ConfirmedID(id),
		LeadID:    leadID,
		Type:      typ,
		Content:   "content-" + id,
		Status:    messages.StatusSent,
		CreatedAt: at,
	}))
}

func TestThreadHidesInternalNotesFromClients(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now().UTC()
	seedMsg(t, e, "m1", "L1", messages.TypeClientMessage, now)
	seedMsg(t, e, "m2", "L1", messages.TypeInternalNote, now.Add(time.Minute))
	seedMsg(t, e, "m3", "L1", messages.TypeClientReply, now.Add(2*time.Minute))

	rec := e.do(t, http.MethodGet, "/api/v1/leads/L1/messages", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var thread handlers.ThreadResponse
	decodeData(t, rec, &thread)

	count := 0
	for _, day := range thread.Days {
		for _, m := range day.Messages {
			count++
			assert.NotEqual(t, messages.TypeInternalNote, m.Type)
		}
	}
	assert.Equal(t, 2, count, "client must see exactly the two public messages")
}

func TestThreadShowsEverythingToAdmins(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now().UTC()
	seedMsg(t, e, "m1", "L1", messages.TypeClientMessage, now)
	seedMsg(t, e, "m2", "L1", messages.TypeInternalNote, now.Add(time.Minute))
	seedMsg(t, e, "m3", "L1", messages.TypeClientReply, now.Add(2*time.Minute))

	rec := e.do(t, http.MethodGet, "/api/v1/leads/L1/messages", token(t, "admin-1", "admin"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var thread handlers.ThreadResponse
	decodeData(t, rec, &thread)

	count := 0
	for _, day := range thread.Days {
		count += len(day.Messages)
	}
	assert.Equal(t, 3, count)
}

func TestInboxOneRowPerLead(t *testing.T) {
	e := newTestEnv(t)
	now := time.Now().UTC()
	seedMsg(t, e, "m1", "L1", messages.TypeClientMessage, now)
	seedMsg(t, e, "m2", "L1", messages.TypeClientMessage, now.Add(time.Minute))
	seedMsg(t, e, "m3", "L2", messages.TypeClientMessage, now.Add(2*time.Minute))

	rec := e.do(t, http.MethodGet, "/api/v1/inbox", token(t, "admin-1", "admin"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []handlers.InboxItem
	decodeData(t, rec, &items)

	require.Len(t, items, 2)
	assert.Equal(t, "L2", items[0].LeadID, "most recent conversation first")
	assert.Equal(t, "m2", items[1].Latest.ID.String(), "latest message represents the lead")
}

func TestSendMessageConfirmed(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/leads/L1/messages",
		token(t, "admin-1", "admin"),
		`{"type":"client_message","content":"hello there"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var msg messages.Message
	decodeData(t, rec, &msg)
	assert.False(t, msg.ID.IsPending())
	assert.Equal(t, 1, e.store.Len())
}

func TestSendFailureRollsBackAndRestores(t *testing.T) {
	e := newTestEnv(t)
	e.remote.err = &remote.APIError{StatusCode: 503, Message: "upstream down"}

	rec := e.do(t, http.MethodPost, "/api/v1/leads/L1/messages",
		token(t, "admin-1", "admin"),
		`{"content":"draft to restore"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var env struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "draft to restore", env.Data["restore_content"])
	assert.Equal(t, 0, e.store.Len(), "temp record must be rolled back")
}

func TestSendValidationErrorSkipsNetwork(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/leads/L1/messages",
		token(t, "admin-1", "admin"),
		`{"content":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(0), e.remote.calls.Load())
	assert.Equal(t, 0, e.store.Len())
}

func TestInternalNoteRequiresElevatedRole(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/leads/L1/messages", "",
		`{"type":"internal_note","content":"secret"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, e.store.Len())
}

func TestReplyFlow(t *testing.T) {
	e := newTestEnv(t)
	seedMsg(t, e, "m1", "L1", messages.TypeClientMessage, time.Now().UTC())

	rec := e.do(t, http.MethodPost, "/api/v1/messages/m1/reply",
		token(t, "admin-1", "admin"),
		`{"content":"replying"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, e.store.Len())
}

func TestReplyToUnknownMessageIs404(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/messages/nope/reply",
		token(t, "admin-1", "admin"),
		`{"content":"replying"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func seedLead(t *testing.T, e *testEnv, id string, status leads.Status) {
	t.Helper()
	_, err := e.repo.Create(context.Background(), &leads.Lead{
		ID:     id,
		OrgID:  "default",
		Name:   "Lead " + id,
		Status: status,
	})
	require.NoError(t, err)
}

func TestUpdateLeadStatus(t *testing.T) {
	e := newTestEnv(t)
	seedLead(t, e, "L1", leads.StatusQuoting)

	rec := e.do(t, http.MethodPatch, "/api/v1/leads/L1/status",
		token(t, "admin-1", "admin"),
		`{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view handlers.LeadView
	decodeData(t, rec, &view)
	assert.Equal(t, leads.StatusApproved, view.Status)
	assert.Equal(t, "Approved", view.StatusDisplay)
	require.Len(t, view.Activities, 1)
	assert.Equal(t, "admin-1", view.Activities[0].Actor)
}

func TestUpdateLeadStatusAcceptsLegacyVocabulary(t *testing.T) {
	e := newTestEnv(t)
	seedLead(t, e, "L1", leads.StatusQuoting)

	// "won" maps onto completed, which quoting cannot reach directly.
	rec := e.do(t, http.MethodPatch, "/api/v1/leads/L1/status",
		token(t, "admin-1", "admin"),
		`{"status":"negotiation"}`)
	require.Equal(t, http.StatusConflict, rec.Code, "quoting -> quoting is not a legal hop")

	seedLead(t, e, "L2", leads.StatusNew)
	rec = e.do(t, http.MethodPatch, "/api/v1/leads/L2/status",
		token(t, "admin-1", "admin"),
		`{"status":"qualified"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view handlers.LeadView
	decodeData(t, rec, &view)
	assert.Equal(t, leads.StatusInReview, view.Status)
}

func TestUpdateLeadStatusInvalidTransitionIs409(t *testing.T) {
	e := newTestEnv(t)
	seedLead(t, e, "L1", leads.StatusNew)

	rec := e.do(t, http.MethodPatch, "/api/v1/leads/L1/status",
		token(t, "admin-1", "admin"),
		`{"status":"completed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateLeadStatusUnknownIs400(t *testing.T) {
	e := newTestEnv(t)
	seedLead(t, e, "L1", leads.StatusNew)

	rec := e.do(t, http.MethodPatch, "/api/v1/leads/L1/status",
		token(t, "admin-1", "admin"),
		`{"status":"galactic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateLeadStatusRequiresElevatedRole(t *testing.T) {
	e := newTestEnv(t)
	seedLead(t, e, "L1", leads.StatusNew)

	rec := e.do(t, http.MethodPatch, "/api/v1/leads/L1/status", "",
		`{"status":"in_review"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTemplateLifecycle(t *testing.T) {
	e := newTestEnv(t)
	adminTok := token(t, "admin-1", "admin")

	rec := e.do(t, http.MethodPost, "/api/v1/templates", adminTok,
		`{"name":"welcome","subject":"Hi {name}","body":"Hello {name}, thanks for reaching out."}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created templates.Template
	decodeData(t, rec, &created)
	require.NotEmpty(t, created.ID)

	rec = e.do(t, http.MethodPost, "/api/v1/templates/"+created.ID+"/preview", "",
		`{"fields":{"name":"Sam"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview map[string]string
	decodeData(t, rec, &preview)
	assert.Equal(t, "Hello Sam, thanks for reaching out.", preview["body"])

	// Missing fields are an error, not silently left as braces.
	rec = e.do(t, http.MethodPost, "/api/v1/templates/"+created.ID+"/preview", "", `{"fields":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// fixedSource serves a static authoritative snapshot to the synchronizer.
type fixedSource struct {
	leads []leads.Lead
	msgs  []messages.Message
}

func (f *fixedSource) ListLeads(context.Context) ([]leads.Lead, error) {
	return f.leads, nil
}

func (f *fixedSource) ListMessages(context.Context, messages.Scope, int) ([]messages.Message, error) {
	return f.msgs, nil
}

func TestDashboardCountersFilteredByRole(t *testing.T) {
	now := time.Now().UTC()
	store := messages.NewStore()
	src := &fixedSource{
		leads: []leads.Lead{{ID: "L1", Status: leads.StatusContacting}},
		msgs: []messages.Message{
			{ID: messages.ConfirmedID("m1"), LeadID: "L1", Type: messages.TypeClientMessage, Content: "hi", CreatedAt: now},
			{ID: messages.ConfirmedID("n1"), LeadID: "L1", Type: messages.TypeInternalNote, Content: "margin is thin", CreatedAt: now},
		},
	}
	sync := syncer.New(syncer.Config{Source: src, Store: store})
	sync.Refresh(context.Background())

	service := leads.NewService(leads.NewInMemoryRepository(), leads.NewMachine(), nil)
	handler := router.New(&router.Config{
		Messages:   handlers.NewMessagesHandler(store, nil, nil),
		Leads:      handlers.NewLeadsHandler(service, nil, nil),
		Dashboard:  handlers.NewDashboardHandler(sync, nil),
		AuthSecret: testSecret,
	})
	e := &testEnv{store: store, handler: handler}

	var got syncer.Counters

	rec := e.do(t, http.MethodGet, "/api/v1/dashboard/counters", token(t, "admin-1", "admin"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &got)
	assert.Equal(t, 2, got.TotalMessages)
	assert.Equal(t, 2, got.UnreadMessages)

	// Anonymous callers never see internal traffic in the counts.
	rec = e.do(t, http.MethodGet, "/api/v1/dashboard/counters", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &got)
	assert.Equal(t, 1, got.TotalMessages)
	assert.Equal(t, 1, got.UnreadMessages)
	assert.Equal(t, 1, got.ActiveLeads)
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
