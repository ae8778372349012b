package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Checkpointer uploads checkpoints to object storage under keys like:
//
//	s3://<bucket>/<prefix>/checkpoints/<domain>/YYYY/MM/DD/<checkpointID>.json
//
// The returned token is the full object key.
type S3Checkpointer struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Checkpointer creates an S3Checkpointer. Region and credentials come
// from the environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET
// etc.). The prefix may be empty.
func NewS3Checkpointer(ctx context.Context, bucket, prefix string) (*S3Checkpointer, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Checkpointer{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *S3Checkpointer) Store(ctx context.Context, cp *Checkpoint) (string, error) {
	if cp == nil {
		return "", fmt.Errorf("nil checkpoint")
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	year, month, day := cp.CreatedAt.Date()
	objectKey := path.Join(s.prefix, "checkpoints", cp.Domain,
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%s.json", cp.ID),
	)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objectKey),
		Body:                 bytes.NewReader(b),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return objectKey, nil
}
