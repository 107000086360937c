package verifystore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
)

// blobStore keeps one JSON object per member under user-<id>.json. Works with
// AWS S3 and S3-compatible providers like Backblaze B2 via a custom endpoint.
type blobStore struct {
	client *s3.Client
	bucket string
	prefix string
}

func newBlobStore(cfg *config.Config) (*blobStore, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3 backend selected but S3_BUCKET_NAME is empty")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.S3EndpointURL)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	log.Infof("[VerifyStore] S3 backend initialized for bucket: %s", cfg.S3Bucket)
	return &blobStore{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: "user-",
	}, nil
}

func (s *blobStore) Name() string { return "s3" }

func (s *blobStore) key(discordID string) string {
	return s.prefix + discordID + ".json"
}

func (s *blobStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(user.DiscordID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", s.key(user.DiscordID), err)
	}
	return nil
}

func (s *blobStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(discordID)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", s.key(discordID), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var user models.VerifiedUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *blobStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	var users []models.VerifiedUser

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), ".json")
			user, err := s.Get(ctx, id)
			if err != nil {
				log.Warnf("[VerifyStore] Skipping unreadable object %s: %v", key, err)
				continue
			}
			users = append(users, *user)
		}
	}
	return users, nil
}
