package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// S3API is the subset of the S3 client used for snapshot bodies.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DynamoAPI is the subset of the DynamoDB client used for the manifest.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

const (
	manifestPK = "snapshot#engine"
	manifestSK = "latest"
)

// Manifest is the DynamoDB item pointing at the latest snapshot body.
type Manifest struct {
	PK        string         `dynamodbav:"PK"`
	SK        string         `dynamodbav:"SK"`
	S3Key     string         `dynamodbav:"S3Key"`
	Version   int            `dynamodbav:"Version"`
	Timestamp string         `dynamodbav:"Timestamp"`
	Counts    map[string]int `dynamodbav:"Counts"`
}

// AWSStore writes snapshot bodies to S3 and records the latest one in a
// DynamoDB manifest item, so older bodies stay available for inspection.
type AWSStore struct {
	s3        S3API
	dynamoDB  DynamoAPI
	bucket    string
	prefix    string
	tableName string
	log       *logger.Logger
}

// NewAWSStore loads AWS credentials the usual way: a named profile when
// one is configured, otherwise the default chain.
func NewAWSStore(ctx context.Context, cfg config.SnapshotConfig) (*AWSStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewAWSStoreWithClients(s3.NewFromConfig(awsCfg), dynamodb.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix, cfg.DynamoDBTable), nil
}

// NewAWSStoreWithClients wires explicit clients.
func NewAWSStoreWithClients(s3c S3API, ddb DynamoAPI, bucket, prefix, table string) *AWSStore {
	return &AWSStore{
		s3:        s3c,
		dynamoDB:  ddb,
		bucket:    bucket,
		prefix:    prefix,
		tableName: table,
		log:       logger.With("component", "snapshot", "store", "aws"),
	}
}

func (s *AWSStore) keyFor(t time.Time) string {
	return fmt.Sprintf("%sengine/%s.json", s.prefix, t.UTC().Format("2006/01/02/15-04-05.000"))
}

// Save uploads the body first and only then moves the manifest.
func (s *AWSStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	key := s.keyFor(snap.TakenAt)

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}

	av, err := attributevalue.MarshalMap(Manifest{
		PK:        manifestPK,
		SK:        manifestSK,
		S3Key:     key,
		Version:   snap.Version,
		Timestamp: snap.TakenAt.UTC().Format(time.RFC3339),
		Counts:    snap.Counts(),
	})
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	_, err = s.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting manifest to DynamoDB: %w", err)
	}

	s.log.Info("snapshot saved", "key", key, "bytes", len(data))
	return nil
}

// Manifest returns the latest manifest item, or ErrNoSnapshot.
func (s *AWSStore) Manifest(ctx context.Context) (*Manifest, error) {
	out, err := s.dynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: manifestPK},
			"SK": &types.AttributeValueMemberS{Value: manifestSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting manifest from DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNoSnapshot
	}

	var m Manifest
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling manifest: %w", err)
	}
	return &m, nil
}

func (s *AWSStore) Load(ctx context.Context) (*Snapshot, error) {
	m, err := s.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(m.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	if err := checkVersion(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
