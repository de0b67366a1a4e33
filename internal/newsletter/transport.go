package newsletter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/domain"
)

// Transport delivers one fully rendered message. A delivery the provider
// rejected is reported through SendResult.Success; the error is reserved
// for failures to reach the provider at all.
type Transport interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (domain.SendResult, error)
}

// SESAPI is the subset of the SES v2 client the transport uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends through Amazon SES v2.
type SESTransport struct {
	client           SESAPI
	configurationSet string
	timeout          time.Duration
	now              func() time.Time
}

// NewSESTransport builds a client from cfg. Static keys are used when both
// are set; otherwise the default credential chain applies.
func NewSESTransport(ctx context.Context, cfg config.SESConfig) (*SESTransport, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	t := NewSESTransportWithClient(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet)
	if d := cfg.Timeout(); d > 0 {
		t.timeout = d
	}
	return t, nil
}

// NewSESTransportWithClient wraps an existing client.
func NewSESTransportWithClient(client SESAPI, configurationSet string) *SESTransport {
	return &SESTransport{
		client:           client,
		configurationSet: configurationSet,
		timeout:          30 * time.Second,
		now:              time.Now,
	}
}

// Send submits msg to SES.
func (t *SESTransport) Send(ctx context.Context, msg *domain.EmailMessage) (domain.SendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{},
			},
		},
		EmailTags: messageTags(msg),
	}
	if msg.HTMLContent != "" {
		input.Content.Simple.Body.Html = &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
	}
	if msg.TextContent != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
	}
	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return domain.SendResult{Success: false, SentAt: t.now(), Error: err.Error()}, fmt.Errorf("SES send failed: %w", err)
	}

	return domain.SendResult{
		Success:   true,
		MessageID: aws.ToString(out.MessageId),
		SentAt:    t.now(),
	}, nil
}

// messageTags carries ids that SES event destinations can group by. Tag
// values must not contain addresses, so the recipient is never tagged.
func messageTags(msg *domain.EmailMessage) []types.MessageTag {
	tags := []types.MessageTag{
		{Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID)},
	}
	if msg.ExperimentID != "" && msg.VariantID != "" {
		tags = append(tags,
			types.MessageTag{Name: aws.String("experiment_id"), Value: aws.String(msg.ExperimentID)},
			types.MessageTag{Name: aws.String("variant_id"), Value: aws.String(msg.VariantID)},
		)
	}
	return tags
}

// MemoryTransport keeps messages in memory. Fail, when set, decides per
// message whether delivery is rejected.
type MemoryTransport struct {
	mu       sync.Mutex
	messages []domain.EmailMessage
	Fail     func(msg *domain.EmailMessage) error
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

// Send records msg unless Fail rejects it.
func (m *MemoryTransport) Send(_ context.Context, msg *domain.EmailMessage) (domain.SendResult, error) {
	now := time.Now()
	if m.Fail != nil {
		if err := m.Fail(msg); err != nil {
			return domain.SendResult{Success: false, SentAt: now, Error: err.Error()}, nil
		}
	}

	m.mu.Lock()
	m.messages = append(m.messages, *msg)
	m.mu.Unlock()

	return domain.SendResult{Success: true, MessageID: "mem-" + uuid.NewString(), SentAt: now}, nil
}

// Messages returns a copy of everything sent so far.
func (m *MemoryTransport) Messages() []domain.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EmailMessage, len(m.messages))
	copy(out, m.messages)
	return out
}
