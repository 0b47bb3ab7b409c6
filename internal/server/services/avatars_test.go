package services

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophauth/internal/common"
	sc "github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAvatarFixture(t *testing.T) (*fixture, *AvatarService) {
	t.Helper()
	f := newFixture(t)
	cfg := &sc.Config{
		S3Region:        "us-east-1",
		S3RootUser:      "minioadmin",
		S3RootPassword:  "minioadmin",
		S3BaseEndpoint:  "http://127.0.0.1:9000",
		S3Bucket:        "avatars",
		AvatarURLExpiry: 5 * time.Minute,
	}
	return f, NewAvatarService(f.svc, cfg)
}

// stubS3 replaces the AWS seams with fakes that record their inputs.
type s3Calls struct {
	loads      int
	putKey     string
	getKey     string
	bucket     string
	expires    time.Duration
	putErr     error
	getErr     error
	baseEndpoint string
}

func stubS3(t *testing.T) *s3Calls {
	t.Helper()
	calls := &s3Calls{}

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		calls.loads++
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint != nil {
			calls.baseEndpoint = *opts.BaseEndpoint
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if calls.putErr != nil {
			return nil, calls.putErr
		}
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		calls.putKey, calls.bucket, calls.expires = *in.Key, *in.Bucket, po.Expires
		return &v4.PresignedHTTPRequest{URL: "http://s3/put/" + *in.Key, Method: "PUT"}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if calls.getErr != nil {
			return nil, calls.getErr
		}
		calls.getKey, calls.bucket = *in.Key, *in.Bucket
		return &v4.PresignedHTTPRequest{URL: "http://s3/get/" + *in.Key, Method: "GET"}, nil
	}

	return calls
}

func TestAvatarService_UploadThenDownload(t *testing.T) {
	calls := stubS3(t)
	f, avatars := newAvatarFixture(t)
	a := f.register(t, "a@x.com", "secret1")

	up, err := avatars.UploadURL(context.Background(), a.ID)
	require.NoError(t, err)

	name, ok := strings.CutPrefix(up.Key, "avatars/"+a.ID+"/")
	require.True(t, ok, up.Key)
	assert.Len(t, name, 2*avatarKeyBytes)
	_, err = hex.DecodeString(name)
	assert.NoError(t, err)
	assert.Equal(t, "http://s3/put/"+up.Key, up.URL)

	again, err := avatars.UploadURL(context.Background(), a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, up.Key, again.Key)
	assert.Equal(t, "avatars", calls.bucket)
	assert.Equal(t, 5*time.Minute, calls.expires)
	assert.Equal(t, "http://127.0.0.1:9000", calls.baseEndpoint)

	_, err = f.svc.UpdateProfile(context.Background(), a.ID, "", models.ProfileUpdate{Avatar: &up.Key})
	require.NoError(t, err)

	url, err := avatars.DownloadURL(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://s3/get/"+up.Key, url)
	assert.Equal(t, up.Key, calls.getKey)

	assert.Equal(t, 1, calls.loads, "presign client is built once")
}

func TestAvatarService_DownloadWithoutAvatar(t *testing.T) {
	stubS3(t)
	f, avatars := newAvatarFixture(t)
	a := f.register(t, "a@x.com", "secret1")

	_, err := avatars.DownloadURL(context.Background(), a.ID)
	requireUserError(t, err, common.ErrorNotFound, MsgNoAvatar)
}

func TestAvatarService_ExternalReferenceReturnedAsIs(t *testing.T) {
	calls := stubS3(t)
	f, avatars := newAvatarFixture(t)
	a := f.register(t, "a@x.com", "secret1")

	// a key from someone else's prefix is never presigned
	for _, ref := range []string{"https://cdn/x.png", "avatars/other-id/abc"} {
		_, err := f.svc.UpdateProfile(context.Background(), a.ID, "", models.ProfileUpdate{Avatar: strPtr(ref)})
		require.NoError(t, err)

		url, err := avatars.DownloadURL(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, ref, url)
	}
	assert.Empty(t, calls.getKey)
}

func TestAvatarService_UnknownAccount(t *testing.T) {
	stubS3(t)
	_, avatars := newAvatarFixture(t)

	_, err := avatars.UploadURL(context.Background(), "ghost")
	requireUserError(t, err, common.ErrorNotFound, MsgAccountNotFound)
}

func TestAvatarService_PresignErrors(t *testing.T) {
	calls := stubS3(t)
	f, avatars := newAvatarFixture(t)
	a := f.register(t, "a@x.com", "secret1")

	calls.putErr = errors.New("sign-fail")
	_, err := avatars.UploadURL(context.Background(), a.ID)
	assert.ErrorIs(t, err, common.ErrorUnavailable)

	key := avatarKeyPrefix(a.ID) + "k"
	_, err = f.svc.UpdateProfile(context.Background(), a.ID, "", models.ProfileUpdate{Avatar: &key})
	require.NoError(t, err)

	calls.getErr = errors.New("sign-fail")
	_, err = avatars.DownloadURL(context.Background(), a.ID)
	assert.ErrorIs(t, err, common.ErrorUnavailable)
}

func TestAvatarService_ConfigLoadError(t *testing.T) {
	stubS3(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	f, avatars := newAvatarFixture(t)
	a := f.register(t, "a@x.com", "secret1")

	_, err := avatars.UploadURL(context.Background(), a.ID)
	require.ErrorIs(t, err, common.ErrorUnavailable)
	assert.Contains(t, err.Error(), "load-fail")
}
