package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/S-Sergio-A/messsages-microservice/internal/models"
)

// Uploader resolves a raw attachment payload to a durable URL.
type Uploader interface {
	Upload(ctx context.Context, roomID string, att models.Attachment) (string, error)
}

type S3Uploader struct {
	uploader  *manager.Uploader
	bucket    string
	region    string
	keyPrefix string
	cb        *gobreaker.CircuitBreaker
	log       *zap.SugaredLogger
}

func NewS3Uploader(ctx context.Context, region, bucket, keyPrefix string, log *zap.SugaredLogger) (*S3Uploader, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)

	st := gobreaker.Settings{
		Name:    "attachment-upload",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &S3Uploader{
		uploader:  manager.NewUploader(client),
		bucket:    bucket,
		region:    region,
		keyPrefix: keyPrefix,
		cb:        gobreaker.NewCircuitBreaker(st),
		log:       log,
	}, nil
}

func (s *S3Uploader) Upload(ctx context.Context, roomID string, att models.Attachment) (string, error) {
	key := fmt.Sprintf("%s/%s/messages/%s", s.keyPrefix, roomID, uuid.NewString())
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(att.Data),
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, url.PathEscape(key)), nil
}
