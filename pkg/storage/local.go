package storage

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"hospital-console-go/internal/model"
)

// SourceLocal 标记来自本地文件系统的文件。
const SourceLocal = "local"

// LocalFile 为本地路径构造文件句柄，声明类型由扩展名推断。
func LocalFile(p string) (model.FileHandle, error) {
	info, err := os.Stat(p)
	if err != nil {
		return model.FileHandle{}, fmt.Errorf("无法读取文件 %s: %w", p, err)
	}
	if info.IsDir() {
		return model.FileHandle{}, fmt.Errorf("%s 是目录", p)
	}
	return model.FileHandle{
		Name:        filepath.Base(p),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
		Source:      SourceLocal,
		Open: func() (io.ReadCloser, error) {
			return os.Open(p)
		},
	}, nil
}
