// internal/notify/notifier.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"mergington-activities/internal/activities"
	"mergington-activities/internal/common/config"
	"mergington-activities/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Event is the JSON body published to SNS for every membership change.
type Event struct {
	EventType    string `json:"eventType"`
	Activity     string `json:"activity"`
	Email        string `json:"email"`
	Participants int    `json:"participants"`
	RequestID    string `json:"requestId,omitempty"`
	OccurredAt   string `json:"occurredAt"`
}

type Options struct {
	FromEmail string // empty disables confirmation emails
	TopicARN  string // empty disables event publishing
}

type Notifier struct {
	ses    SESService
	sns    SNSService
	opts   Options
	logger logger.Logger
}

func NewNotifier(sesClient SESService, snsClient SNSService, opts Options, log logger.Logger) *Notifier {
	return &Notifier{
		ses:    sesClient,
		sns:    snsClient,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// NewFromConfig builds AWS clients for the channels enabled in cfg.
func NewFromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts Options
	var sesClient SESService
	var snsClient SNSService
	if cfg.Email.Enabled {
		opts.FromEmail = cfg.Email.FromEmail
		sesClient = ses.NewFromConfig(awsCfg)
	}
	if cfg.Events.Enabled {
		opts.TopicARN = cfg.Events.TopicARN
		snsClient = sns.NewFromConfig(awsCfg)
	}
	return NewNotifier(sesClient, snsClient, opts, log), nil
}

// MembershipChanged sends the confirmation email (signups only) and
// publishes the change event. Both channels are attempted; errors are joined.
func (n *Notifier) MembershipChanged(ctx context.Context, change activities.Change, requestID string) error {
	var errs []error

	if change.Operation == activities.OpSignup && n.ses != nil && n.opts.FromEmail != "" {
		if err := n.sendConfirmation(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}

	if n.sns != nil && n.opts.TopicARN != "" {
		if err := n.publish(ctx, change, requestID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) sendConfirmation(ctx context.Context, change activities.Change) error {
	if !emailPattern.MatchString(change.Email) {
		n.logger.Debug("participant identifier is not an email address, skipping confirmation", map[string]interface{}{
			"activity": change.Activity,
		})
		return nil
	}

	subject := fmt.Sprintf("You're signed up for %s", change.Activity)
	body := fmt.Sprintf("Hello,\n\n%s.\n\nSee you there!\nMergington High School Activities", change.Message())

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.opts.FromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{change.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}

	n.logger.Info("confirmation email sent", map[string]interface{}{
		"activity": change.Activity,
		"email":    change.Email,
	})
	return nil
}

func (n *Notifier) publish(ctx context.Context, change activities.Change, requestID string) error {
	eventType := "activity_" + string(change.Operation)
	payload, err := json.Marshal(Event{
		EventType:    eventType,
		Activity:     change.Activity,
		Email:        change.Email,
		Participants: change.Participants,
		RequestID:    requestID,
		OccurredAt:   change.At.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.opts.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
