package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// objectPutter s3.Client 中歸檔需要的部分
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 物件儲存歸檔（相容 R2 / MinIO），上傳成功後刪除本機檔案
type S3 struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3 以靜態憑證建立 S3 客戶端；設定 endpoint 時使用 path-style 位址
func NewS3(ctx context.Context, cfg *config.S3Config) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3(client objectPutter, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3) MoveProcessed(ctx context.Context, file string) error {
	key := a.key("processed", filepath.Base(file))
	if err := a.uploadFile(ctx, file, key); err != nil {
		return err
	}
	common.LogInfo("File archived to object storage", zap.String("source", file), zap.String("key", key))
	return os.Remove(file)
}

func (a *S3) MoveFailed(ctx context.Context, file string, diagnostics []common.AssemblyError) error {
	key := a.key("error", filepath.Base(file))
	if err := a.uploadFile(ctx, file, key); err != nil {
		return err
	}

	data, err := diagnosticsJSON(diagnostics)
	if err != nil {
		return err
	}
	if err := a.put(ctx, key+diagnosticsSuffix, data, "application/json"); err != nil {
		return err
	}

	common.LogWarn("File archived to object storage error prefix",
		zap.String("source", file),
		zap.String("key", key),
		zap.Int("diagnostics", len(diagnostics)),
	)
	return os.Remove(file)
}

func (a *S3) key(kind, name string) string {
	return path.Join(a.prefix, kind, name)
}

func (a *S3) uploadFile(ctx context.Context, file, key string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return a.put(ctx, key, data, contentType)
}

func (a *S3) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
