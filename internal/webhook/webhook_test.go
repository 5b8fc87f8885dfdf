package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"measurehub_backend/internal/assignment"
	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/orchestrator"
	"measurehub_backend/internal/notification"
	"measurehub_backend/platform/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEventHandler struct {
	mu      sync.Mutex
	events  []domain.InboundEvent
	outcome orchestrator.Outcome
	err     error
}

func (s *stubEventHandler) Handle(_ context.Context, event domain.InboundEvent) (orchestrator.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.err != nil {
		return orchestrator.Outcome{}, s.err
	}
	out := s.outcome
	out.ExternalLeadID = event.ExternalLeadID
	return out, nil
}

type stubTasks struct {
	mu          sync.Mutex
	retries     []domain.InboundEvent
	escalations []int64
	err         error
}

func (s *stubTasks) EnqueueNotificationRetry(_ context.Context, event domain.InboundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = append(s.retries, event)
	return s.err
}

func (s *stubTasks) EnqueueEscalation(_ context.Context, leadID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations = append(s.escalations, leadID)
	return s.err
}

type stubWebhookConfig struct {
	secret string
	kinds  map[int64]string
}

func (c stubWebhookConfig) GetWebhookSecret() string                { return c.secret }
func (c stubWebhookConfig) GetWebhookStatusKinds() map[int64]string { return c.kinds }

func defaultKinds() map[int64]string {
	return map[int64]string{
		142: "created",
		143: "confirmed",
		144: "completed",
		145: "cancelled",
		146: "reassigned",
	}
}

func newWebhookRouter(events EventHandler, tasks TaskEnqueuer, cfg stubWebhookConfig) *gin.Engine {
	log := logger.New("development")
	service := NewService(events, tasks, cfg, log)
	handler := NewHandler(service, log)

	r := gin.New()
	r.POST("/webhooks/crm", SignatureMiddleware(cfg.secret), handler.HandleCRM)
	return r
}

func postWebhook(t *testing.T, r *gin.Engine, contentType string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/crm", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) Result {
	t.Helper()
	var result Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return result
}

func jsonStatusBody(t *testing.T, leads ...map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"leads": map[string]any{"status": leads}})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

func TestParseJSONPayloadExtractsCustomFields(t *testing.T) {
	body := []byte(`{
		"leads": {"status": [{
			"id": 9001,
			"status_id": 142,
			"name": "Kitchen remodel",
			"responsible_user_id": 5,
			"company_name": "Acme Windows",
			"custom_fields_values": [
				{"field_code": "PHONE", "values": [{"value": "+7 912 345 67 89"}]},
				{"field_code": "ADRES", "values": [{"value": "Main St 1"}]},
				{"field_code": "ZONE", "values": [{"value": "north"}]},
				{"field_code": "ORDER_CODE", "values": [{"value": 12345}]}
			]
		}]}
	}`)

	p, err := parseJSONPayload(body)
	if err != nil {
		t.Fatalf("parseJSONPayload returned error: %v", err)
	}
	if len(p.StatusChanges) != 1 {
		t.Fatalf("got %d status changes, want 1", len(p.StatusChanges))
	}

	lead := p.StatusChanges[0]
	if lead.ID != 9001 || lead.StatusID != 142 {
		t.Fatalf("lead ids = %d/%d, want 9001/142", lead.ID, lead.StatusID)
	}
	if lead.phone() != "+7 912 345 67 89" {
		t.Fatalf("phone = %q", lead.phone())
	}
	if lead.address() != "Main St 1" {
		t.Fatalf("address = %q (ADRES alias not honored)", lead.address())
	}
	if lead.zoneHint() != "north" {
		t.Fatalf("zone = %q", lead.zoneHint())
	}
	if lead.orderCode() != "12345" {
		t.Fatalf("order code = %q, want numeric value as text", lead.orderCode())
	}
	if lead.dealerName() != "Acme Windows" {
		t.Fatalf("dealer = %q", lead.dealerName())
	}
	if lead.ResponsibleUserID == nil || *lead.ResponsibleUserID != 5 {
		t.Fatalf("responsible user = %v, want 5", lead.ResponsibleUserID)
	}
}

func TestParseFormPayloadBracketedKeys(t *testing.T) {
	form := url.Values{}
	form.Set("leads[status][0][id]", "9001")
	form.Set("leads[status][0][status_id]", "143")
	form.Set("leads[status][0][name]", "Kitchen remodel")
	form.Set("leads[status][0][responsible_user_id]", "5")
	form.Set("leads[add][0][id]", "9002")
	form.Set("leads[add][0][name]", "Bathroom")
	form.Set("account[id]", "77")

	p, err := parseFormPayload([]byte(form.Encode()))
	if err != nil {
		t.Fatalf("parseFormPayload returned error: %v", err)
	}

	if len(p.StatusChanges) != 1 || len(p.Added) != 1 {
		t.Fatalf("parsed %d status + %d add entries, want 1 + 1", len(p.StatusChanges), len(p.Added))
	}
	status := p.StatusChanges[0]
	if status.ID != 9001 || status.StatusID != 143 || status.Name != "Kitchen remodel" {
		t.Fatalf("status lead = %+v", status)
	}
	if status.ResponsibleUserID == nil || *status.ResponsibleUserID != 5 {
		t.Fatalf("responsible user = %v, want 5", status.ResponsibleUserID)
	}
	if p.Added[0].ID != 9002 {
		t.Fatalf("added lead = %+v", p.Added[0])
	}
}

func TestSignatureMiddlewareVerifiesDigest(t *testing.T) {
	events := &stubEventHandler{}
	cfg := stubWebhookConfig{secret: "topsecret", kinds: defaultKinds()}
	r := newWebhookRouter(events, nil, cfg)
	body := jsonStatusBody(t, map[string]any{"id": 9001, "status_id": 142})

	signed := postWebhook(t, r, "application/json", body, Sign("topsecret", body))
	if signed.Code != http.StatusOK {
		t.Fatalf("signed request status = %d, want 200", signed.Code)
	}

	unsigned := postWebhook(t, r, "application/json", body, "")
	if unsigned.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned request status = %d, want 401", unsigned.Code)
	}

	forged := postWebhook(t, r, "application/json", body, Sign("wrong-secret", body))
	if forged.Code != http.StatusUnauthorized {
		t.Fatalf("forged request status = %d, want 401", forged.Code)
	}

	if len(events.events) != 1 {
		t.Fatalf("handler processed %d events, want only the signed delivery", len(events.events))
	}
}

func TestSignatureDisabledWithoutSecret(t *testing.T) {
	events := &stubEventHandler{}
	r := newWebhookRouter(events, nil, stubWebhookConfig{kinds: defaultKinds()})
	body := jsonStatusBody(t, map[string]any{"id": 9001, "status_id": 142})

	w := postWebhook(t, r, "application/json", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with signature check disabled", w.Code)
	}
	if len(events.events) != 1 {
		t.Fatalf("handler processed %d events, want 1", len(events.events))
	}
}

func TestEmptyBodyIsHealthProbe(t *testing.T) {
	r := newWebhookRouter(&stubEventHandler{}, nil, stubWebhookConfig{kinds: defaultKinds()})

	w := postWebhook(t, r, "application/json", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if result := decodeResult(t, w); result.Status != "ok" {
		t.Fatalf("result = %+v, want ok", result)
	}
}

func TestParseErrorAnswers200(t *testing.T) {
	events := &stubEventHandler{}
	r := newWebhookRouter(events, nil, stubWebhookConfig{kinds: defaultKinds()})

	w := postWebhook(t, r, "application/json", []byte("{not json"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 so the CRM does not retry-storm", w.Code)
	}
	if result := decodeResult(t, w); result.Status != "error" {
		t.Fatalf("result = %+v, want error outcome in body", result)
	}
	if len(events.events) != 0 {
		t.Fatal("unparseable delivery reached the event handler")
	}
}

func TestStatusMappingAndSanitization(t *testing.T) {
	events := &stubEventHandler{}
	r := newWebhookRouter(events, nil, stubWebhookConfig{kinds: defaultKinds()})

	body := jsonStatusBody(t, map[string]any{
		"id":        9001,
		"status_id": 142,
		"name":      "  <b>Kitchen</b> remodel  ",
		"custom_fields_values": []map[string]any{
			{"field_code": "PHONE", "values": []map[string]any{{"value": "+7 912 345 67 89"}}},
		},
	})

	w := postWebhook(t, r, "application/json", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if result := decodeResult(t, w); result.Processed != 1 {
		t.Fatalf("result = %+v, want 1 processed", result)
	}

	if len(events.events) != 1 {
		t.Fatalf("handler received %d events, want 1", len(events.events))
	}
	event := events.events[0]
	if event.Kind != domain.EventCreated {
		t.Fatalf("kind = %q, want created (status 142)", event.Kind)
	}
	if event.Name != "Kitchen remodel" {
		t.Fatalf("name = %q, want tags stripped and trimmed", event.Name)
	}
	if event.ContactPhone != "+79123456789" {
		t.Fatalf("phone = %q, want E.164", event.ContactPhone)
	}
}

func TestUnmappedStatusIgnored(t *testing.T) {
	events := &stubEventHandler{}
	r := newWebhookRouter(events, nil, stubWebhookConfig{kinds: defaultKinds()})

	body := jsonStatusBody(t, map[string]any{"id": 9001, "status_id": 999})
	w := postWebhook(t, r, "application/json", body, "")

	if result := decodeResult(t, w); result.Status != "ignored" || result.Ignored != 1 {
		t.Fatalf("result = %+v, want ignored", result)
	}
	if len(events.events) != 0 {
		t.Fatal("unmapped status reached the event handler")
	}
}

func TestAddedLeadsBecomeCreatedEvents(t *testing.T) {
	events := &stubEventHandler{}
	r := newWebhookRouter(events, nil, stubWebhookConfig{kinds: defaultKinds()})

	body := []byte(`{"leads": {"add": [{"id": 9002, "name": "Bathroom"}]}}`)
	w := postWebhook(t, r, "application/json", body, "")

	if result := decodeResult(t, w); result.Processed != 1 {
		t.Fatalf("result = %+v, want 1 processed", result)
	}
	if len(events.events) != 1 || events.events[0].Kind != domain.EventCreated {
		t.Fatalf("events = %+v, want one created event", events.events)
	}
}

func TestHandlerErrorCountedButAnswers200(t *testing.T) {
	events := &stubEventHandler{err: errors.New("database down")}
	r := newWebhookRouter(events, nil, stubWebhookConfig{kinds: defaultKinds()})

	body := jsonStatusBody(t, map[string]any{"id": 9001, "status_id": 142})
	w := postWebhook(t, r, "application/json", body, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if result := decodeResult(t, w); result.Status != "error" || result.Failed != 1 {
		t.Fatalf("result = %+v, want error with 1 failed", result)
	}
}

func TestSendFailuresEnqueueRetry(t *testing.T) {
	events := &stubEventHandler{outcome: orchestrator.Outcome{
		MeasurerID: func() *int64 { v := int64(7); return &v }(),
		Notifications: []notification.Result{
			{Type: notification.TypeAssigned, RecipientID: 1, Status: notification.StatusSendFailed},
		},
	}}
	tasks := &stubTasks{}
	r := newWebhookRouter(events, tasks, stubWebhookConfig{kinds: defaultKinds()})

	body := jsonStatusBody(t, map[string]any{"id": 9001, "status_id": 142})
	postWebhook(t, r, "application/json", body, "")

	if len(tasks.retries) != 1 || tasks.retries[0].ExternalLeadID != 9001 {
		t.Fatalf("retries = %+v, want one retry carrying the event", tasks.retries)
	}
	if len(tasks.escalations) != 0 {
		t.Fatal("assigned lead was escalated")
	}
}

func TestUnassignedCreationEnqueuesEscalation(t *testing.T) {
	events := &stubEventHandler{outcome: orchestrator.Outcome{
		Status:           domain.StatusAssigned,
		AssignmentReason: assignment.ReasonNone,
	}}
	tasks := &stubTasks{}
	r := newWebhookRouter(events, tasks, stubWebhookConfig{kinds: defaultKinds()})

	body := jsonStatusBody(t, map[string]any{"id": 9001, "status_id": 142})
	postWebhook(t, r, "application/json", body, "")

	if len(tasks.escalations) != 1 || tasks.escalations[0] != 9001 {
		t.Fatalf("escalations = %v, want [9001]", tasks.escalations)
	}
}

func TestFormEncodedDeliveryEndToEnd(t *testing.T) {
	events := &stubEventHandler{}
	cfg := stubWebhookConfig{secret: "topsecret", kinds: defaultKinds()}
	r := newWebhookRouter(events, nil, cfg)

	form := url.Values{}
	form.Set("leads[status][0][id]", "9001")
	form.Set("leads[status][0][status_id]", "143")
	body := []byte(form.Encode())

	w := postWebhook(t, r, "application/x-www-form-urlencoded", body, Sign("topsecret", body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(events.events) != 1 || events.events[0].Kind != domain.EventConfirmed {
		t.Fatalf("events = %+v, want one confirmed event for lead 9001", events.events)
	}
}

func TestResultBodyIsJSON(t *testing.T) {
	r := newWebhookRouter(&stubEventHandler{}, nil, stubWebhookConfig{kinds: defaultKinds()})

	body := jsonStatusBody(t, map[string]any{"id": 9001, "status_id": 999})
	w := postWebhook(t, r, "application/json", body, "")

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content type = %q, want JSON", ct)
	}
}
