package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/event"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/backend"
	"hospital-console-go/pkg/log"
)

// DocumentSnapshot 是知识库工作流的只读视图。
type DocumentSnapshot struct {
	Documents   []model.Document     `json:"documents"`
	Status      *model.SystemStatus  `json:"status,omitempty"`
	Upload      model.UploadProgress `json:"upload"`
	RefreshedAt time.Time            `json:"refreshed_at"`
}

// DocumentService 管理文件选择、带模拟进度的上传以及知识库重载。
type DocumentService interface {
	SelectFile(fh model.FileHandle) (model.UploadProgress, error)
	ClearFile() (model.UploadProgress, error)
	// StartUpload 同步校验并进入 Uploading，剩余部分在后台完成。
	StartUpload(ctx context.Context) (model.UploadProgress, error)
	Reload(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (DocumentSnapshot, error)
	Status(ctx context.Context) (*model.SystemStatus, error)
	Progress() model.UploadProgress
	Snapshot() DocumentSnapshot
}

type uploadJob struct {
	gen  uint64
	sess model.Session
	file model.FileHandle
}

type documentService struct {
	client   backend.Client
	sessions SessionService
	monitor  ConnectivityService
	audit    AuditService
	events   event.Publisher

	interval time.Duration
	step     int
	cap      int
	settle   time.Duration

	mu          sync.Mutex
	epoch       uint64
	progress    model.UploadProgress
	file        *model.FileHandle
	uploadGen   uint64
	stopTicker  func()
	docs        []model.Document
	status      *model.SystemStatus
	refreshedAt time.Time
}

// NewDocumentService 创建文档入库工作流。
func NewDocumentService(
	client backend.Client,
	sessions SessionService,
	monitor ConnectivityService,
	audit AuditService,
	events event.Publisher,
	cfg config.WorkflowConfig,
) DocumentService {
	if audit == nil {
		audit = NewAuditService(nil)
	}
	defaults := config.Default().Workflow
	if cfg.UploadProgressInterval <= 0 {
		cfg.UploadProgressInterval = defaults.UploadProgressInterval
	}
	if cfg.UploadProgressStep <= 0 {
		cfg.UploadProgressStep = defaults.UploadProgressStep
	}
	if cfg.UploadProgressCap <= 0 || cfg.UploadProgressCap >= 100 {
		cfg.UploadProgressCap = defaults.UploadProgressCap
	}
	s := &documentService{
		client:   client,
		sessions: sessions,
		monitor:  monitor,
		audit:    audit,
		events:   events,
		interval: cfg.UploadProgressInterval,
		step:     cfg.UploadProgressStep,
		cap:      cfg.UploadProgressCap,
		settle:   cfg.UploadSettleDelay,
		progress: model.UploadProgress{State: model.UploadIdle},
	}
	sessions.OnActivate(func(sess model.Session) { s.reset(sess.Epoch) })
	sessions.OnTeardown(func(model.Session) { s.reset(0) })
	return s
}

// reset 丢弃工作流状态并停止进度计时器。
func (s *documentService) reset(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopProgressTicker()
	s.epoch = epoch
	s.uploadGen++
	s.file = nil
	s.progress = model.UploadProgress{State: model.UploadIdle}
	s.docs = nil
	s.status = nil
	s.refreshedAt = time.Time{}
}

// SelectFile 只接受声明类型为 PDF 的文件；拒绝时丢弃已有选择。
func (s *documentService) SelectFile(fh model.FileHandle) (model.UploadProgress, error) {
	sess, err := s.sessions.RequireAdmin()
	if err != nil {
		return s.Progress(), err
	}

	s.mu.Lock()
	if s.epoch != sess.Epoch {
		s.mu.Unlock()
		return s.Progress(), ErrNoSession
	}
	if s.progress.State == model.UploadUploading {
		p := s.progress
		s.mu.Unlock()
		return p, ErrBusy
	}
	if fh.Name == "" || fh.Open == nil || !model.IsPDF(fh.Name, fh.ContentType) {
		s.file = nil
		s.progress = model.UploadProgress{State: model.UploadIdle}
		p := s.progress
		s.mu.Unlock()
		return p, validationError("file", "Please select a PDF file.")
	}
	s.stopProgressTicker()
	s.file = &fh
	s.progress = model.UploadProgress{State: model.UploadFileSelected, FileName: fh.Name, FileSize: fh.Size}
	p := s.progress
	publish(s.events, event.UploadProgress, sess.SessionID, p)
	s.mu.Unlock()
	return p, nil
}

// ClearFile 回到 Idle。上传途中清除文件会让在途响应被当作过期丢弃。
func (s *documentService) ClearFile() (model.UploadProgress, error) {
	sess, err := s.sessions.RequireAdmin()
	if err != nil {
		return s.Progress(), err
	}

	s.mu.Lock()
	if s.epoch != sess.Epoch {
		s.mu.Unlock()
		return s.Progress(), ErrNoSession
	}
	if s.progress.State == model.UploadUploading || s.progress.State == model.UploadSucceeded {
		s.uploadGen++
	}
	s.stopProgressTicker()
	s.file = nil
	s.progress = model.UploadProgress{State: model.UploadIdle}
	p := s.progress
	publish(s.events, event.UploadProgress, sess.SessionID, p)
	s.mu.Unlock()
	return p, nil
}

func (s *documentService) beginUpload() (uploadJob, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return uploadJob{}, err
	}

	s.mu.Lock()
	if s.epoch != sess.Epoch {
		s.mu.Unlock()
		return uploadJob{}, ErrNoSession
	}
	switch s.progress.State {
	case model.UploadUploading:
		s.mu.Unlock()
		return uploadJob{}, ErrBusy
	case model.UploadFileSelected:
	default:
		s.mu.Unlock()
		return uploadJob{}, fmt.Errorf("%w: select a PDF file before uploading", ErrInvalidState)
	}
	s.uploadGen++
	job := uploadJob{gen: s.uploadGen, sess: sess, file: *s.file}
	s.progress = model.UploadProgress{State: model.UploadUploading, FileName: job.file.Name, FileSize: job.file.Size}
	s.stopTicker = s.startProgressTicker(job)
	publish(s.events, event.UploadProgress, sess.SessionID, s.progress)
	s.mu.Unlock()

	log.Infof("开始上传文档: %s (%d bytes)", job.file.Name, job.file.Size)
	return job, nil
}

func (s *documentService) StartUpload(ctx context.Context) (model.UploadProgress, error) {
	job, err := s.beginUpload()
	if err != nil {
		return s.Progress(), err
	}
	progress := s.Progress()
	go func() {
		if _, err := s.runUpload(context.WithoutCancel(ctx), job); err != nil {
			log.Warnf("后台上传结束: %v", err)
		}
	}()
	return progress, nil
}

func (s *documentService) runUpload(ctx context.Context, job uploadJob) (string, error) {
	rc, err := job.file.Open()
	var msg string
	if err == nil {
		msg, err = s.client.UploadDocument(ctx, job.file.Name, rc)
		_ = rc.Close()
	}
	if err != nil {
		return "", s.failUpload(job, err)
	}

	s.mu.Lock()
	if !s.ownsUpload(job) {
		s.mu.Unlock()
		log.Debugf("丢弃过期的上传响应: %s", job.file.Name)
		return "", ErrStaleResponse
	}
	s.stopProgressTicker()
	s.file = nil
	s.progress = model.UploadProgress{
		State:    model.UploadSucceeded,
		FileName: job.file.Name,
		FileSize: job.file.Size,
		Percent:  100,
		Message:  msg,
	}
	publish(s.events, event.UploadProgress, job.sess.SessionID, s.progress)
	s.mu.Unlock()

	log.Infof("文档上传成功: %s", job.file.Name)
	s.audit.Record(job.sess, AuditDocumentUpload, job.file.Name, nil)

	if _, err := s.refresh(ctx, job.sess.Epoch); err != nil {
		log.Warnf("上传后刷新文档列表失败: %v", err)
	}

	timer := time.NewTimer(s.settle)
	<-timer.C

	s.mu.Lock()
	settled := s.ownsUpload(job) && s.progress.State == model.UploadSucceeded
	if settled {
		s.progress = model.UploadProgress{State: model.UploadIdle, Message: msg}
		publish(s.events, event.UploadProgress, job.sess.SessionID, s.progress)
	}
	s.mu.Unlock()
	return msg, nil
}

func (s *documentService) failUpload(job uploadJob, cause error) error {
	s.mu.Lock()
	if !s.ownsUpload(job) {
		s.mu.Unlock()
		log.Debugf("丢弃过期的上传失败: %s, err=%v", job.file.Name, cause)
		return ErrStaleResponse
	}
	s.stopProgressTicker()
	s.file = nil
	failed := model.UploadProgress{State: model.UploadFailed, FileName: job.file.Name, Error: UserMessage(cause)}
	s.progress = model.UploadProgress{State: model.UploadIdle, FileName: job.file.Name, Error: failed.Error}
	publish(s.events, event.UploadProgress, job.sess.SessionID, failed)
	publish(s.events, event.UploadProgress, job.sess.SessionID, s.progress)
	s.mu.Unlock()

	log.Warnf("文档上传失败: %s, err=%v", job.file.Name, cause)
	s.audit.Record(job.sess, AuditDocumentUpload, job.file.Name, cause)
	return fmt.Errorf("upload %s failed: %w", job.file.Name, cause)
}

// ownsUpload 调用方必须持有 s.mu。
func (s *documentService) ownsUpload(job uploadJob) bool {
	return s.epoch == job.sess.Epoch && s.uploadGen == job.gen && s.sessions.IsCurrent(job.sess.Epoch)
}

// startProgressTicker 启动模拟进度。返回的停止函数可以重复调用。调用方必须持有 s.mu。
func (s *documentService) startProgressTicker(job uploadJob) func() {
	s.stopProgressTicker()
	ticker := time.NewTicker(s.interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.advanceProgress(job)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// stopProgressTicker 调用方必须持有 s.mu。
func (s *documentService) stopProgressTicker() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
}

// advanceProgress 在锁内发布，进度事件与完成事件的顺序和状态变更一致。
func (s *documentService) advanceProgress(job uploadJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadGen != job.gen || s.progress.State != model.UploadUploading {
		return
	}
	next := s.progress.Percent + s.step
	if next > s.cap {
		next = s.cap
	}
	if next == s.progress.Percent {
		return
	}
	s.progress.Percent = next
	publish(s.events, event.UploadProgress, job.sess.SessionID, s.progress)
}

// Reload 请求后端整体重载知识库，再整体刷新文档列表与系统状态。任一步失败都不会部分应用。
func (s *documentService) Reload(ctx context.Context) (string, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return "", err
	}
	msg, err := s.client.ReloadDocuments(ctx)
	if err != nil {
		s.audit.Record(sess, AuditDocumentReload, "", err)
		return "", fmt.Errorf("reload documents: %w", err)
	}
	if _, err := s.refresh(ctx, sess.Epoch); err != nil {
		s.audit.Record(sess, AuditDocumentReload, "", err)
		return msg, err
	}
	s.audit.Record(sess, AuditDocumentReload, "", nil)
	log.Infof("知识库已重载: %s", msg)
	return msg, nil
}

func (s *documentService) Refresh(ctx context.Context) (DocumentSnapshot, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return s.Snapshot(), err
	}
	return s.refresh(ctx, sess.Epoch)
}

// refresh 并发获取文档列表与系统状态，两者都成功才整体替换。
func (s *documentService) refresh(ctx context.Context, epoch uint64) (DocumentSnapshot, error) {
	var (
		docs   []model.Document
		status *model.SystemStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.client.Documents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		status, err = s.client.SystemStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.Snapshot(), fmt.Errorf("refresh documents: %w", err)
	}
	if docs == nil {
		docs = []model.Document{}
	}

	s.mu.Lock()
	if s.epoch != epoch || !s.sessions.IsCurrent(epoch) {
		s.mu.Unlock()
		return s.Snapshot(), ErrStaleResponse
	}
	s.docs = docs
	s.status = status
	s.refreshedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	publish(s.events, event.DocumentsRefreshed, s.sessions.Current().SessionID, snap)
	return snap, nil
}

// Status 只刷新系统状态。
func (s *documentService) Status(ctx context.Context) (*model.SystemStatus, error) {
	sess, err := requireAdminOnline(s.sessions, s.monitor)
	if err != nil {
		return nil, err
	}
	status, err := s.client.SystemStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch system status: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != sess.Epoch || !s.sessions.IsCurrent(sess.Epoch) {
		return nil, ErrStaleResponse
	}
	s.status = status
	copied := *status
	return &copied, nil
}

func (s *documentService) Progress() model.UploadProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *documentService) Snapshot() DocumentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *documentService) snapshotLocked() DocumentSnapshot {
	snap := DocumentSnapshot{
		Documents:   append([]model.Document{}, s.docs...),
		Upload:      s.progress,
		RefreshedAt: s.refreshedAt,
	}
	if s.status != nil {
		st := *s.status
		snap.Status = &st
	}
	return snap
}
