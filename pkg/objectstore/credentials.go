package objectstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// staticCredentials supplies a fixed access key pair, used when pointing
// the client at a MinIO deployment whose keys come from config rather than
// the AWS credential chain.
type staticCredentials struct {
	accessKeyID     string
	secretAccessKey string
}

func (c staticCredentials) Retrieve(_ context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.accessKeyID,
		SecretAccessKey: c.secretAccessKey,
	}, nil
}
