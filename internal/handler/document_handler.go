package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"hospital-console-go/internal/model"
	"hospital-console-go/internal/service"
	"hospital-console-go/pkg/log"
	"hospital-console-go/pkg/storage"
)

// StagingSource 是暂存桶的只读视图，由 storage.MinIOSource 实现。
type StagingSource interface {
	ListPDFs(ctx context.Context) ([]storage.StagedObject, error)
	Handle(ctx context.Context, objectName string) (model.FileHandle, error)
}

// DocumentHandler 负责知识库文档的选择、上传与重载。
type DocumentHandler struct {
	documents service.DocumentService
	staging   StagingSource
	tempDir   string

	mu       sync.Mutex
	tempFile string
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。staging 为 nil 时暂存桶接口返回 409。
func NewDocumentHandler(documents service.DocumentService, staging StagingSource, tempDir string) *DocumentHandler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &DocumentHandler{documents: documents, staging: staging, tempDir: tempDir}
}

// Status 刷新并返回后端系统状态。
func (h *DocumentHandler) Status(c *gin.Context) {
	status, err := h.documents.Status(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, status)
}

// List 同时刷新文档列表与系统状态。
func (h *DocumentHandler) List(c *gin.Context) {
	snap, err := h.documents.Refresh(c.Request.Context())
	if err != nil {
		fail(c, err, snap)
		return
	}
	ok(c, snap)
}

// Staging 列出暂存桶中的 PDF。
func (h *DocumentHandler) Staging(c *gin.Context) {
	if h.staging == nil {
		fail(c, fmt.Errorf("%w: staging bucket is disabled", service.ErrInvalidState), nil)
		return
	}
	objects, err := h.staging.ListPDFs(c.Request.Context())
	if err != nil {
		log.Error("Staging: 列出暂存文件失败", err)
		fail(c, err, nil)
		return
	}
	ok(c, objects)
}

// SelectionRequest 指定暂存桶对象或本地路径，二选一。
type SelectionRequest struct {
	Object string `json:"object"`
	Path   string `json:"path"`
}

// Select 选择待上传文件。multipart 请求取 file 字段；JSON 请求从暂存桶或本地路径取文件。
func (h *DocumentHandler) Select(c *gin.Context) {
	var (
		fh      model.FileHandle
		spooled string
		err     error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, spooled, err = h.fromMultipart(c)
	} else {
		fh, err = h.fromRequest(c)
	}
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	progress, err := h.documents.SelectFile(fh)
	if err != nil {
		// 被拒绝的新文件直接删除；上一个临时文件可能仍在被在途上传读取。
		if spooled != "" {
			_ = os.Remove(spooled)
		}
		fail(c, err, progress)
		return
	}
	if spooled != "" {
		h.replaceTempFile(spooled)
	}
	ok(c, progress)
}

func (h *DocumentHandler) fromRequest(c *gin.Context) (model.FileHandle, error) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return model.FileHandle{}, fmt.Errorf("invalid selection payload")
	}
	switch {
	case req.Object != "":
		if h.staging == nil {
			return model.FileHandle{}, fmt.Errorf("staging bucket is disabled")
		}
		return h.staging.Handle(c.Request.Context(), req.Object)
	case req.Path != "":
		return storage.LocalFile(req.Path)
	}
	return model.FileHandle{}, fmt.Errorf("object or path is required")
}

// fromMultipart 把上传内容落到一个新的临时文件：上传在请求结束后才在后台进行，
// 而 multipart 临时文件会随请求一起被清理。返回的路径由调用方负责保留或删除。
func (h *DocumentHandler) fromMultipart(c *gin.Context) (model.FileHandle, string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return model.FileHandle{}, "", fmt.Errorf("file is required")
	}
	tmp, err := os.CreateTemp(h.tempDir, "kb-*"+filepath.Ext(header.Filename))
	if err != nil {
		return model.FileHandle{}, "", fmt.Errorf("无法创建临时文件: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	if err := c.SaveUploadedFile(header, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return model.FileHandle{}, "", fmt.Errorf("无法保存上传文件: %w", err)
	}

	fh, err := storage.LocalFile(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return model.FileHandle{}, "", err
	}
	fh.Name = filepath.Base(header.Filename)
	fh.ContentType = declaredType(header.Header.Get("Content-Type"))
	fh.Source = "multipart"
	return fh, tmpPath, nil
}

// declaredType 把 application/octet-stream 视为未声明，交给扩展名判断。
func declaredType(contentType string) string {
	if strings.HasPrefix(strings.ToLower(contentType), "application/octet-stream") {
		return ""
	}
	return contentType
}

// replaceTempFile 只保留最近一次 multipart 选择的临时文件。
func (h *DocumentHandler) replaceTempFile(p string) {
	h.mu.Lock()
	prev := h.tempFile
	h.tempFile = p
	h.mu.Unlock()
	if prev != "" {
		_ = os.Remove(prev)
	}
}

// Clear 清除已选择的文件。
func (h *DocumentHandler) Clear(c *gin.Context) {
	progress, err := h.documents.ClearFile()
	if err != nil {
		fail(c, err, progress)
		return
	}
	ok(c, progress)
}

// Upload 开始后台上传并立即返回 202，进度通过 GET 或事件流获取。
func (h *DocumentHandler) Upload(c *gin.Context) {
	progress, err := h.documents.StartUpload(c.Request.Context())
	if err != nil {
		fail(c, err, progress)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "upload started", "data": progress})
}

// Progress 返回上传进度。
func (h *DocumentHandler) Progress(c *gin.Context) {
	ok(c, h.documents.Progress())
}

// Reload 请求后端重载知识库。
func (h *DocumentHandler) Reload(c *gin.Context) {
	msg, err := h.documents.Reload(c.Request.Context())
	if err != nil {
		fail(c, err, gin.H{"message": msg})
		return
	}
	ok(c, gin.H{"message": msg, "snapshot": h.documents.Snapshot()})
}

// Cleanup 删除仍留在磁盘上的 multipart 临时文件。
func (h *DocumentHandler) Cleanup() {
	h.replaceTempFile("")
}
