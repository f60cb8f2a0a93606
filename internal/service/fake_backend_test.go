package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/internal/repository"
	"hospital-console-go/pkg/backend"
)

// fakeBackend 是内存中的医院后端，行为与真实接口的约定一致。
type fakeBackend struct {
	mu sync.Mutex

	pingErr error

	chatFn    func(req backend.ChatRequest) (*backend.ChatResponse, error)
	chatGate  chan struct{}
	chatCalls []backend.ChatRequest

	appointments  []*model.Appointment
	apptQueries   []string
	actionErr     error
	statsErr      error
	notifications []model.Notification
	markReadIDs   []string

	history        []model.ChatHistoryRecord
	historyQueries []string

	docs         []model.Document
	status       model.SystemStatus
	docsErr      error
	uploadErr    error
	uploadGate   chan struct{}
	uploaded     []string
	uploadBodies [][]byte
	reloadErr    error
	reloads      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		docs:   []model.Document{{Name: "visiting-policy.pdf", SizeBytes: 1024, Status: "stored"}},
		status: model.SystemStatus{ServicesInitialized: true, DocumentsLoadedCount: 1, IndexReady: true},
	}
}

func requestError(status int, detail string) error {
	return &backend.RequestError{StatusCode: status, Detail: detail}
}

func (f *fakeBackend) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeBackend) Chat(_ context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, req)
	gate := f.chatGate
	fn := f.chatFn
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fn != nil {
		resp, err := fn(req)
		if err == nil && resp.IsAppointmentRequest && resp.AppointmentID != "" {
			f.addAppointment(resp.AppointmentID, req)
		}
		return resp, err
	}
	return &backend.ChatResponse{Response: "echo: " + req.Message}, nil
}

func (f *fakeBackend) addAppointment(id string, req backend.ChatRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointments = append(f.appointments, &model.Appointment{
		ID:              id,
		RequesterName:   req.UserName,
		PhoneNumber:     req.PhoneNumber,
		PreferredDate:   "To be confirmed",
		PreferredTime:   "To be confirmed",
		Reason:          "General consultation",
		OriginalMessage: req.Message,
		UserRole:        req.UserRole,
		Status:          model.AppointmentPending,
		CreatedAt:       model.LocalTime(time.Now()),
	})
	f.notifications = append(f.notifications, model.Notification{
		ID:      fmt.Sprintf("n-%d", len(f.notifications)+1),
		Title:   "New Appointment Request",
		Message: "New appointment request from " + req.UserName,
		Type:    "appointment_request",
	})
}

func (f *fakeBackend) ChatHistory(_ context.Context, role string) ([]model.ChatHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyQueries = append(f.historyQueries, role)
	var out []model.ChatHistoryRecord
	for _, r := range f.history {
		if role == "" || r.UserRole == role {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBackend) Appointments(_ context.Context, status string) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apptQueries = append(f.apptQueries, status)
	var out []model.Appointment
	for _, a := range f.appointments {
		if status == "" || string(a.Status) == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeBackend) AppointmentAction(_ context.Context, req backend.AppointmentActionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return "", f.actionErr
	}
	next, ok := model.AppointmentAction(req.Action).Result()
	if !ok {
		return "", requestError(http.StatusBadRequest, "Invalid action. Use 'accept' or 'reject'")
	}
	for _, a := range f.appointments {
		if a.ID != req.AppointmentID {
			continue
		}
		if a.Status != model.AppointmentPending {
			return "", requestError(http.StatusBadRequest, "Appointment already processed")
		}
		a.Status = next
		a.AdminNotes = req.AdminNotes
		f.notifications = append(f.notifications, model.Notification{
			ID:      fmt.Sprintf("n-%d", len(f.notifications)+1),
			Title:   "Appointment " + string(next),
			Message: "Appointment " + a.ID + " was " + string(next),
		})
		return "Appointment " + string(next) + " successfully", nil
	}
	return "", requestError(http.StatusNotFound, "Appointment not found")
}

func (f *fakeBackend) Statistics(context.Context) (*model.Statistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	st := &model.Statistics{TotalConversations: len(f.chatCalls), ConversationsByRole: map[string]int{}}
	for _, c := range f.chatCalls {
		st.ConversationsByRole[c.UserRole]++
	}
	for _, a := range f.appointments {
		switch a.Status {
		case model.AppointmentPending:
			st.PendingAppointments++
		case model.AppointmentAccepted:
			st.AcceptedAppointments++
		case model.AppointmentRejected:
			st.RejectedAppointments++
		}
	}
	return st, nil
}

func (f *fakeBackend) Notifications(context.Context) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.notifications...), nil
}

func (f *fakeBackend) MarkNotificationRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadIDs = append(f.markReadIDs, id)
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].Read = true
			return nil
		}
	}
	return requestError(http.StatusNotFound, "Notification not found")
}

func (f *fakeBackend) UploadDocument(_ context.Context, fileName string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	gate := f.uploadGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadBodies = append(f.uploadBodies, data)
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded = append(f.uploaded, fileName)
	f.docs = append(f.docs, model.Document{Name: fileName, SizeBytes: int64(len(data)), Status: "stored"})
	f.status.DocumentsLoadedCount = len(f.docs)
	return "Document uploaded and processed successfully", nil
}

func (f *fakeBackend) Documents(context.Context) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	return append([]model.Document(nil), f.docs...), nil
}

func (f *fakeBackend) ReloadDocuments(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reloadErr != nil {
		return "", f.reloadErr
	}
	f.reloads++
	return fmt.Sprintf("Reloaded %d documents", len(f.docs)), nil
}

func (f *fakeBackend) SystemStatus(context.Context) (*model.SystemStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.status
	return &st, nil
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// harness 按 serve 命令的方式把所有服务装配在一起。
type harness struct {
	backend       *fakeBackend
	bus           *event.Bus
	monitor       ConnectivityService
	sessions      SessionService
	chat          ChatService
	documents     DocumentService
	appointments  AppointmentService
	notifications NotificationService
	history       HistoryService
	auditRepo     repository.AuditRepository
}

func testWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		QuickActionThreshold:   3,
		UploadProgressInterval: 2 * time.Millisecond,
		UploadProgressStep:     10,
		UploadProgressCap:      90,
		UploadSettleDelay:      10 * time.Millisecond,
	}
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// :memory: 库按连接隔离，后台上传与测试协程必须共用同一个连接。
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.AuditEntry{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newHarness(t *testing.T, auth Authenticator) *harness {
	t.Helper()
	h := &harness{backend: newFakeBackend(), bus: event.NewBus()}
	t.Cleanup(h.bus.Close)

	h.auditRepo = repository.NewAuditRepository(openServiceTestDB(t))
	audit := NewAuditService(h.auditRepo)
	cfg := testWorkflowConfig()

	h.monitor = NewConnectivityService(h.backend, h.bus)
	h.sessions = NewSessionService(h.monitor, auth, h.bus)
	h.notifications = NewNotificationService(h.backend, h.sessions, h.monitor, audit, h.bus)
	h.appointments = NewAppointmentService(h.backend, h.sessions, h.monitor, h.notifications, audit, h.bus)
	h.documents = NewDocumentService(h.backend, h.sessions, h.monitor, audit, h.bus, cfg)
	h.history = NewHistoryService(h.backend, h.sessions, h.monitor)
	h.chat = NewChatService(h.backend, h.sessions, h.monitor, h.appointments, nil, h.bus, cfg)

	if snap := h.monitor.Probe(context.Background()); snap.State != model.ConnectivityConnected {
		t.Fatalf("probe state = %s, want connected", snap.State)
	}
	return h
}

func (h *harness) activatePatient(t *testing.T, name, phone string) model.Session {
	t.Helper()
	if _, err := h.sessions.SelectRole(context.Background(), model.RolePatient, ""); err != nil {
		t.Fatalf("SelectRole(patient): %v", err)
	}
	sess, err := h.sessions.SubmitProfile(name, phone)
	if err != nil {
		t.Fatalf("SubmitProfile: %v", err)
	}
	return sess
}

func (h *harness) activate(t *testing.T, role model.Role) model.Session {
	t.Helper()
	if role.RequiresProfile() {
		return h.activatePatient(t, "Test User", "555-0000")
	}
	sess, err := h.sessions.SelectRole(context.Background(), role, "")
	if err != nil {
		t.Fatalf("SelectRole(%s): %v", role, err)
	}
	return sess
}

func (h *harness) switchTo(t *testing.T, role model.Role) model.Session {
	t.Helper()
	h.sessions.SwitchRole()
	return h.activate(t, role)
}

func pdfFile(name string, content string) model.FileHandle {
	return model.FileHandle{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: model.PDFContentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func (f *fakeBackend) chats() []backend.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.ChatRequest(nil), f.chatCalls...)
}

func (f *fakeBackend) appointmentQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.apptQueries...)
}

func (f *fakeBackend) documentNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.docs))
	for _, d := range f.docs {
		names = append(names, d.Name)
	}
	return names
}
