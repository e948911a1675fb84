package s3

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"

	"legacyimport/internal/config"
)

type Connector struct {
	client s3iface.S3API
}

// NewConnector uses the default AWS credential chain. AWS_S3_ENDPOINT points it at an
// S3-compatible store such as MinIO.
func NewConnector(cfg config.Config) (*Connector, error) {
	awsCfg := aws.Config{
		Region: aws.String(cfg.AWSRegion),
	}
	if cfg.AWSS3Endpoint != "" {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
		awsCfg.Endpoint = aws.String(cfg.AWSS3Endpoint)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create aws session")
	}
	return NewWithClient(awss3.New(sess)), nil
}

func NewWithClient(client s3iface.S3API) *Connector {
	return &Connector{client: client}
}

// FetchObject downloads the whole object; legacy exports are small.
func (c *Connector) FetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.client.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	blob, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read s3://%s/%s", bucket, key)
	}
	return blob, nil
}
