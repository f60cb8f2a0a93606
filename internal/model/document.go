package model

import (
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// Document 是知识库中已入库的文件。
type Document struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size"`
	Status    string    `json:"status,omitempty"`
	Created   LocalTime `json:"created"`
	Updated   LocalTime `json:"updated"`
}

// SystemStatus 是后端就绪状态的只读快照。
type SystemStatus struct {
	ServicesInitialized  bool      `json:"services_initialized"`
	FirebaseInitialized  bool      `json:"firebase_initialized"`
	FirestoreEnabled     bool      `json:"firestore_enabled"`
	DocumentsLoadedCount int       `json:"documents_loaded"`
	IndexReady           bool      `json:"vectorstore_ready"`
	ChainReady           bool      `json:"conversation_chain_ready"`
	LLMConfigured        bool      `json:"groq_api_configured"`
	Timestamp            LocalTime `json:"timestamp"`
}

// UploadState 是文档上传状态机的位置。
type UploadState string

const (
	UploadIdle         UploadState = "idle"
	UploadFileSelected UploadState = "file_selected"
	UploadUploading    UploadState = "uploading"
	UploadSucceeded    UploadState = "succeeded"
	UploadFailed       UploadState = "failed"
)

// UploadProgress 是上传工作流对外可见的快照。
type UploadProgress struct {
	State    UploadState `json:"state"`
	FileName string      `json:"file_name,omitempty"`
	FileSize int64       `json:"file_size,omitempty"`
	Percent  int         `json:"percent"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// FileHandle 是待上传的文件；ContentType 为调用方声明的类型。
type FileHandle struct {
	Name        string
	Size        int64
	ContentType string
	Source      string
	Open        func() (io.ReadCloser, error)
}

// PDFContentType 是唯一允许进入知识库的声明类型。
const PDFContentType = "application/pdf"

// IsPDF 以声明的 Content-Type 为准；未声明时按扩展名推断。
func IsPDF(name, contentType string) bool {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return false
		}
		return strings.EqualFold(mediaType, PDFContentType)
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
