package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// ErrNoAddress means the user has no address on the channel.
var ErrNoAddress = errors.New("no address for channel")

// Channel is an outbound delivery route.
type Channel interface {
	Name() string
	Send(ctx context.Context, d Delivery) (providerID string, err error)
}

// SESAPI is the subset of the SES v2 client used for email.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailChannel sends plain-text mail through SES.
type EmailChannel struct {
	client SESAPI
	from   string
}

func NewEmailChannel(client SESAPI, from string) *EmailChannel {
	return &EmailChannel{client: client, from: from}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, d Delivery) (string, error) {
	if d.Email == "" {
		return "", ErrNoAddress
	}
	out, err := c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{d.Email}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(d.Subject)},
				Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String(d.Message)}},
			},
		},
		EmailTags: []sestypes.MessageTag{
			{Name: aws.String("category"), Value: aws.String(d.Category)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// SNSAPI is the subset of the SNS client used for push.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// PushChannel publishes to a per-user endpoint, or to a shared topic with a
// user_id attribute for subscription filtering.
type PushChannel struct {
	client   SNSAPI
	topicARN string
}

func NewPushChannel(client SNSAPI, topicARN string) *PushChannel {
	return &PushChannel{client: client, topicARN: topicARN}
}

func (c *PushChannel) Name() string { return ChannelPush }

func (c *PushChannel) Send(ctx context.Context, d Delivery) (string, error) {
	input := &sns.PublishInput{
		Message: aws.String(d.Message),
		Subject: aws.String(d.Subject),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"user_id":    {DataType: aws.String("String"), StringValue: aws.String(d.UserID.String())},
			"request_id": {DataType: aws.String("String"), StringValue: aws.String(d.RequestID.String())},
			"category":   {DataType: aws.String("String"), StringValue: aws.String(d.Category)},
		},
	}
	switch {
	case d.PushTarget != "":
		input.TargetArn = aws.String(d.PushTarget)
	case c.topicARN != "":
		input.TopicArn = aws.String(c.topicARN)
	default:
		return "", ErrNoAddress
	}

	out, err := c.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to publish push notification: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
