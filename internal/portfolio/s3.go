package portfolio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configure access to S3 compatible storage (AWS, R2, MinIO).
// Empty values fall back to the default AWS configuration chain.
type S3Options struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access-key-id" json:"-"`
	SecretAccessKey string `mapstructure:"secret-access-key" json:"-"`
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source downloads a CSV or YAML catalog object.
type S3Source struct {
	Bucket  string
	Key     string
	Options S3Options

	client objectGetter
}

func (s *S3Source) Location() string { return "s3://" + s.Bucket + "/" + s.Key }

func (s *S3Source) Read(ctx context.Context) ([]Entry, error) {
	format, err := formatOf(s.Key)
	if err != nil {
		return nil, err
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return parse(format, data)
}

func (s *S3Source) getClient(ctx context.Context) (objectGetter, error) {
	if s.client != nil {
		return s.client, nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if region := strings.TrimSpace(s.Options.Region); region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if key := strings.TrimSpace(s.Options.AccessKeyID); key != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, strings.TrimSpace(s.Options.SecretAccessKey), ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(s.Options.Endpoint)
	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return s.client, nil
}
