package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// ObjectPutter は s3.Client のうちアップロードに使うメソッドです。
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object はアップロードする 1 ファイルです。
type Object struct {
	Name        string
	Body        []byte
	ContentType string
}

// B2Config は B2Uploader の接続設定です。
type B2Config struct {
	KeyID    string
	Key      string
	Endpoint string
	Region   string
	Bucket   string
}

// B2Uploader は Backblaze B2 の S3 互換 API にファイルをアップロードします。
type B2Uploader struct {
	client   ObjectPutter
	bucket   string
	endpoint string
}

// NewB2Uploader は S3 クライアントを B2 向けに設定して B2Uploader を生成します。
func NewB2Uploader(cfg B2Config) *B2Uploader {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String("https://" + endpoint),
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: cfg.KeyID, SecretAccessKey: cfg.Key, Source: "B2Config"}, nil
		})),
		// B2 は新しいチェックサムヘッダーに対応していない
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return newB2Uploader(client, cfg.Bucket, endpoint)
}

func newB2Uploader(client ObjectPutter, bucket, endpoint string) *B2Uploader {
	return &B2Uploader{client: client, bucket: bucket, endpoint: endpoint}
}

// Upload はフォルダー配下にすべてのファイルを並列でアップロードし、フォルダーの公開 URL を返します。
// 1 件でも失敗した場合はエラーを返します。
func (u *B2Uploader) Upload(ctx context.Context, folder string, objects []Object) (string, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, obj := range objects {
		key := folder + "/" + obj.Name
		g.Go(func() error {
			_, err := u.client.PutObject(gctx, &s3.PutObjectInput{
				Bucket:        aws.String(u.bucket),
				Key:           aws.String(key),
				Body:          bytes.NewReader(obj.Body),
				ContentType:   aws.String(obj.ContentType),
				ContentLength: aws.Int64(int64(len(obj.Body))),
			})
			if err != nil {
				return fmt.Errorf("%s のアップロードに失敗しました: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "B2 に保存しました", "folder", folder, "files", len(objects))
	return fmt.Sprintf("https://%s.%s/%s/", u.bucket, u.endpoint, folder), nil
}
