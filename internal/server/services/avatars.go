package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	sc "github.com/dmitrijs2005/gophauth/internal/server/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MsgNoAvatar is returned when the account has no avatar reference.
const MsgNoAvatar = "No avatar has been uploaded."

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// AvatarUpload is a presigned PUT target. After uploading, the client
// stores Key as its avatar through a profile update.
type AvatarUpload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// AvatarService hands out presigned S3 URLs for account avatars.
type AvatarService struct {
	accounts *AccountService
	config   *sc.Config

	mu        sync.Mutex
	presigner *s3.PresignClient
}

func NewAvatarService(accounts *AccountService, config *sc.Config) *AvatarService {
	return &AvatarService{accounts: accounts, config: config}
}

// avatarKeyBytes is the amount of randomness in an avatar object name.
const avatarKeyBytes = 16

// avatarKeyPrefix returns the object prefix owned by accountID.
func avatarKeyPrefix(accountID string) string {
	return "avatars/" + accountID + "/"
}

func (s *AvatarService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.presigner != nil {
		return s.presigner, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	s.presigner = newS3PresignClient(client)
	return s.presigner, nil
}

func (s *AvatarService) expiry() time.Duration {
	if s.config.AvatarURLExpiry > 0 {
		return s.config.AvatarURLExpiry
	}
	return 15 * time.Minute
}

// UploadURL returns a fresh object key under the account's prefix and a
// presigned PUT URL for it.
func (s *AvatarService) UploadURL(ctx context.Context, accountID string) (*AvatarUpload, error) {
	if _, err := s.accounts.find(ctx, accountID); err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 client: %v", common.ErrorUnavailable, err)
	}

	name, err := common.MakeRandHexString(avatarKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: avatar key: %v", common.ErrorInternal, err)
	}

	bucket := s.config.S3Bucket
	key := avatarKeyPrefix(accountID) + name

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.expiry()))
	if err != nil {
		return nil, fmt.Errorf("%w: presign put: %v", common.ErrorUnavailable, err)
	}

	return &AvatarUpload{Key: key, URL: req.URL}, nil
}

// DownloadURL resolves the stored avatar. Keys under the account's own
// prefix are presigned; any other reference (an external URL saved through
// a profile update) is returned unchanged.
func (s *AvatarService) DownloadURL(ctx context.Context, accountID string) (string, error) {
	account, err := s.accounts.find(ctx, accountID)
	if err != nil {
		return "", err
	}

	key := account.Avatar
	if key == "" {
		return "", common.NewUserError(common.ErrorNotFound, MsgNoAvatar)
	}
	if !strings.HasPrefix(key, avatarKeyPrefix(accountID)) {
		return key, nil
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: s3 client: %v", common.ErrorUnavailable, err)
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.expiry()))
	if err != nil {
		return "", fmt.Errorf("%w: presign get: %v", common.ErrorUnavailable, err)
	}

	return req.URL, nil
}
