// Package storage 提供待入库 PDF 的文件来源：MinIO 暂存桶与本地路径。
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/log"
)

// SourceMinIO 标记来自暂存桶的文件。
const SourceMinIO = "minio"

// StagedObject 是暂存桶中的一个候选文件。
type StagedObject struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// MinIOSource 从暂存桶读取管理员预先放好的知识库文件。
type MinIOSource struct {
	client *minio.Client
	bucket string
}

// NewMinIOSource 初始化 MinIO 客户端并确保暂存桶存在。
func NewMinIOSource(ctx context.Context, cfg config.MinIOConfig) (*MinIOSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 暂存桶 '%s' 就绪", cfg.BucketName)
	return &MinIOSource{client: client, bucket: cfg.BucketName}, nil
}

// ListPDFs 列出暂存桶中的 PDF 文件。
func (s *MinIOSource) ListPDFs(ctx context.Context) ([]StagedObject, error) {
	var out []StagedObject
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出暂存文件失败: %w", obj.Err)
		}
		if !model.IsPDF(obj.Key, obj.ContentType) {
			continue
		}
		out = append(out, StagedObject{
			Name:         obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// Handle 返回对象的文件句柄。声明类型取对象的 Content-Type，内容在 Open 时才读取。
func (s *MinIOSource) Handle(ctx context.Context, objectName string) (model.FileHandle, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return model.FileHandle{}, fmt.Errorf("读取暂存文件 %s 失败: %w", objectName, err)
	}
	return model.FileHandle{
		Name:        path.Base(info.Key),
		Size:        info.Size,
		ContentType: info.ContentType,
		Source:      SourceMinIO,
		Open: func() (io.ReadCloser, error) {
			return s.client.GetObject(context.Background(), s.bucket, objectName, minio.GetObjectOptions{})
		},
	}, nil
}
