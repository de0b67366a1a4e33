package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/experiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taken = time.Date(2026, 5, 10, 12, 30, 0, 0, time.UTC)

func sampleSnapshot() *Snapshot {
	sent := taken.Add(-time.Hour)
	return &Snapshot{
		Version: FormatVersion,
		TakenAt: taken,
		Experiments: experiment.State{
			Experiments: []domain.Experiment{{
				ID:     "exp-1",
				Name:   "Subject test",
				Status: domain.ExperimentRunning,
				Variants: []domain.Variant{
					{ID: "control", Name: "Control", TrafficWeight: 0.5},
					{ID: "treatment", Name: "Treatment", TrafficWeight: 0.5},
				},
				TrafficAllocation: 1,
				ConfidenceLevel:   0.95,
			}},
			Assignments: []domain.Assignment{{ExperimentID: "exp-1", VariantID: "control", Recipient: "a@example.com"}},
		},
		Analytics: analytics.State{
			Campaigns: []domain.Campaign{{ID: "c-1", Name: "Weekly", SentAt: &sent, TotalRecipients: 10}},
			Engagements: []domain.Engagement{
				{ID: "e-1", CampaignID: "c-1", Recipient: "a@example.com", Kind: domain.EngagementOpened, Timestamp: taken},
			},
		},
		Segments: []domain.Segment{{ID: "general", Name: "General"}},
	}
}

func assertSameState(t *testing.T, want, got *Snapshot) {
	t.Helper()
	assert.Equal(t, want.Counts(), got.Counts())
	assert.True(t, want.TakenAt.Equal(got.TakenAt))
	assert.Equal(t, want.Experiments.Experiments[0].ID, got.Experiments.Experiments[0].ID)
	assert.Equal(t, want.Experiments.Experiments[0].Variants, got.Experiments.Experiments[0].Variants)
	assert.Equal(t, want.Analytics.Campaigns[0].TotalRecipients, got.Analytics.Campaigns[0].TotalRecipients)
	assert.Equal(t, want.Analytics.Engagements[0].Kind, got.Analytics.Engagements[0].Kind)
}

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = st.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	want := sampleSnapshot()
	require.NoError(t, st.Save(ctx, want))
	got, err := st.Load(ctx)
	require.NoError(t, err)
	assertSameState(t, want, got)

	// A second save replaces the first.
	want.Segments = append(want.Segments, domain.Segment{ID: "extra"})
	require.NoError(t, st.Save(ctx, want))
	got, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Segments, 2)
}

func TestLocalStore_RejectsOtherVersions(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(st.Path(), []byte(`{"version": 99}`), 0644))

	_, err = st.Load(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestNew(t *testing.T) {
	st, err := New(context.Background(), config.SnapshotConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, st)

	_, err = New(context.Background(), config.SnapshotConfig{Type: "floppy"})
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[aws.ToString(in.TableName)+"/"+itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[aws.ToString(in.TableName)+"/"+itemKey(in.Key)]}, nil
}

func newFakeAWSStore() (*AWSStore, *fakeS3, *fakeDynamo) {
	s3c := &fakeS3{objects: map[string][]byte{}}
	ddb := &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
	return NewAWSStoreWithClients(s3c, ddb, "newsletter-state", "snapshots/", "newsletter-snapshots"), s3c, ddb
}

func TestAWSStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, s3c, _ := newFakeAWSStore()

	_, err := st.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	want := sampleSnapshot()
	require.NoError(t, st.Save(ctx, want))
	assert.Contains(t, s3c.objects, "newsletter-state/snapshots/engine/2026/05/10/12-30-00.000.json")

	m, err := st.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/engine/2026/05/10/12-30-00.000.json", m.S3Key)
	assert.Equal(t, FormatVersion, m.Version)
	assert.Equal(t, 1, m.Counts["campaigns"])

	got, err := st.Load(ctx)
	require.NoError(t, err)
	assertSameState(t, want, got)
}

func TestAWSStore_ManifestNotMovedOnUploadFailure(t *testing.T) {
	ctx := context.Background()
	st, s3c, _ := newFakeAWSStore()
	s3c.putErr = errors.New("access denied")

	err := st.Save(ctx, sampleSnapshot())
	assert.Error(t, err)

	_, err = st.Manifest(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
