package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/medtour-booking/internal/config"
	"github.com/wolfman30/medtour-booking/internal/events"
	"github.com/wolfman30/medtour-booking/internal/intake"
	"github.com/wolfman30/medtour-booking/internal/notify"
)

// LoadAWSConfig centralizes AWS SDK initialization so every binary shares the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, s3.ServiceID, sesv2.ServiceID:
					return aws.Endpoint{
						URL:               endpoint,
						PartitionID:       "aws",
						SigningRegion:     cfg.AWSRegion,
						HostnameImmutable: true,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// AWSClients holds the optional AWS integrations. A field is nil when the
// setting that needs it is unset.
type AWSClients struct {
	S3  intake.S3API
	SES notify.SESAPI
	SQS events.SQSAPI
}

// Enabled reports whether any AWS-backed feature is configured.
func Enabled(cfg *appconfig.Config) bool {
	return cfg.PassportBucket != "" || cfg.BookingEventsQueueURL != "" ||
		strings.EqualFold(cfg.EmailProvider, "ses") || cfg.AWSEndpointOverride != ""
}

// BuildAWSClients creates the S3, SESv2 and SQS clients the config asks for.
func BuildAWSClients(ctx context.Context, cfg *appconfig.Config) (AWSClients, error) {
	var clients AWSClients
	if !Enabled(cfg) {
		return clients, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return clients, err
	}

	if cfg.PassportBucket != "" {
		clients.S3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
	}
	if cfg.BookingEventsQueueURL != "" {
		clients.SQS = sqs.NewFromConfig(awsCfg)
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	if provider == "ses" || provider == "auto" || provider == "" {
		clients.SES = sesv2.NewFromConfig(awsCfg)
	}
	return clients, nil
}
