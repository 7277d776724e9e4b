// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vectorflow-go/internal/config"
	"vectorflow-go/pkg/log"
)

// ErrObjectNotFound 表示请求的对象在存储桶中不存在。
var ErrObjectNotFound = errors.New("对象不存在")

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	// 1. 初始化 MinIO 客户端
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	// 2. 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucketName)
	}
}

// MinioStore 以对象存储能力的形式包装全局 MinIO 客户端。
type MinioStore struct{}

// NewMinioStore 创建一个新的 MinioStore，要求 InitMinIO 已被调用。
func NewMinioStore() *MinioStore {
	return &MinioStore{}
}

// Upload 将字节内容写入指定桶与路径。
func (s *MinioStore) Upload(ctx context.Context, data []byte, path, bucket, contentType string) error {
	_, err := MinioClient.PutObject(ctx, bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("写入对象失败: %w", err)
	}
	return nil
}

// Download 读取指定对象的全部内容。对象不存在时返回 ErrObjectNotFound。
func (s *MinioStore) Download(ctx context.Context, path, bucket string) ([]byte, error) {
	obj, err := MinioClient.GetObject(ctx, bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象失败: %w", err)
	}
	defer obj.Close()

	// GetObject 是惰性的，错误要到读取时才会暴露
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, path)
		}
		return nil, fmt.Errorf("读取对象失败: %w", err)
	}
	return data, nil
}

// Exists 检查指定对象是否存在。
func (s *MinioStore) Exists(ctx context.Context, path, bucket string) (bool, error) {
	_, err := MinioClient.StatObject(ctx, bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("检查对象失败: %w", err)
	}
	return true, nil
}

// Delete 删除指定对象。对象不存在按成功处理。
func (s *MinioStore) Delete(ctx context.Context, path, bucket string) error {
	err := MinioClient.RemoveObject(ctx, bucket, path, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	return nil
}

// isNoSuchKey 判断错误是否表示对象不存在。
func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
	}
	return false
}

// PresignURL 为指定对象生成限时的预签名下载地址。
func (s *MinioStore) PresignURL(ctx context.Context, path, bucket string, expiry time.Duration) (string, error) {
	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucket, path, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名地址失败: %w", err)
	}
	return presignedURL.String(), nil
}
