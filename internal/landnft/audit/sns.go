package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client the sink uses
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes outcome events to a topic for downstream consumers
type SNSSink struct {
	api      SNSAPI
	topicARN string
}

func NewSNSSink(api SNSAPI, topicARN string) *SNSSink {
	return &SNSSink{api: api, topicARN: topicARN}
}

func (s *SNSSink) Record(ctx context.Context, e Event) error {
	if e.Phase != PhaseOutcome {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	_, err = s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"operation": {DataType: aws.String("String"), StringValue: aws.String(e.Operation)},
			"outcome":   {DataType: aws.String("String"), StringValue: aws.String(outcomeOrError(e))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

func outcomeOrError(e Event) string {
	if e.Outcome != "" {
		return e.Outcome
	}
	if e.ErrorKind != "" {
		return e.ErrorKind
	}
	return "unknown"
}
