package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	defaultSQSRegion = "us-east-1"
	// All runs share one FIFO group so the queue delivers them in order.
	fifoGroupID = "gazette-monitor-runs"
)

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient publishes run requests to AWS SQS. FIFO queues (".fifo" URLs) get a
// shared group id and the request id as deduplication id.
type SQSClient struct {
	client   sqsSender
	queueURL string
	fifo     bool
}

// NewSQSClient loads the default AWS config for region and targets queueURL.
func NewSQSClient(ctx context.Context, queueURL, region string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultSQSRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSClient(sqs.NewFromConfig(cfg), queueURL), nil
}

func newSQSClient(sender sqsSender, queueURL string) *SQSClient {
	return &SQSClient{
		client:   sender,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Send encodes msg and publishes it with its run flags as message attributes.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"requestId": stringAttr(msg.RequestID),
			"force":     stringAttr(strconv.FormatBool(msg.Force)),
			"dryRun":    stringAttr(strconv.FormatBool(msg.DryRun)),
			"version":   {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(msg.Version))},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(fifoGroupID)
		input.MessageDeduplicationId = aws.String(msg.RequestID)
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("sqs send message request_id=%s: %w", msg.RequestID, err)
	}
	if out != nil && out.MessageId == nil {
		return fmt.Errorf("sqs send message request_id=%s: no message id returned", msg.RequestID)
	}
	return nil
}

func stringAttr(v string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

var _ Client = (*SQSClient)(nil)
