package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockDynamoDB struct {
	mock.Mock
}

func (m *MockDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func outcomeEvent() Event {
	e := NewEvent("transfer", PhaseOutcome)
	e.TokenID = "0.0.1001"
	e.Serials = []int64{1}
	e.From = "0.0.2"
	e.To = "0.0.5005"
	e.Outcome = "Success"
	e.ReceiptStatus = "SUCCESS"
	e.TransactionID = "0.0.2@1700000000.000000001"
	return e
}

func TestRecorderFansOutAndSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var got []string
	rec := NewRecorder(zap.New(core)).
		Add("first", SinkFunc(func(ctx context.Context, e Event) error {
			got = append(got, "first:"+e.Operation)
			return errors.New("index unavailable")
		})).
		Add("second", SinkFunc(func(ctx context.Context, e Event) error {
			got = append(got, "second:"+e.Operation)
			return nil
		}))

	rec.Record(context.Background(), Event{Operation: "mint", Phase: PhaseIntent})

	assert.Equal(t, []string{"first:mint", "second:mint"}, got)
	assert.Equal(t, []string{"first", "second"}, rec.Sinks())
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "first", entry.ContextMap()["sink"])
	assert.NotEmpty(t, entry.ContextMap()["event_id"])
}

func TestRecorderBoundsSlowSinks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	release := make(chan struct{})
	defer close(release)
	reached := false
	rec := NewRecorder(zap.New(core)).WithTimeout(20*time.Millisecond).
		Add("waits-for-ctx", SinkFunc(func(ctx context.Context, e Event) error {
			<-ctx.Done()
			return ctx.Err()
		})).
		Add("ignores-ctx", SinkFunc(func(ctx context.Context, e Event) error {
			<-release
			return nil
		})).
		Add("healthy", SinkFunc(func(ctx context.Context, e Event) error {
			reached = true
			return nil
		}))

	start := time.Now()
	rec.Record(context.WithoutCancel(context.Background()), NewEvent("mint", PhaseOutcome))

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, reached)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "waits-for-ctx", logs.All()[0].ContextMap()["sink"])
	assert.Equal(t, "ignores-ctx", logs.All()[1].ContextMap()["sink"])
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() { rec.Record(context.Background(), NewEvent("pause", PhaseIntent)) })
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Record(context.Background(), outcomeEvent()))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "transfer", fields["operation"])
	assert.Equal(t, "SUCCESS", fields["receipt_status"])
	assert.Equal(t, "0.0.5005", fields["to"])
}

func TestElasticsearchSink(t *testing.T) {
	var path string
	var doc map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &doc)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	e := outcomeEvent()

	err = NewElasticsearchSink(client, "landnft-audit").Record(context.Background(), e)

	require.NoError(t, err)
	assert.Equal(t, "/landnft-audit/_doc/"+e.ID, path)
	assert.Equal(t, "transfer", doc["operation"])
	assert.Equal(t, "0.0.1001", doc["token_id"])
}

func TestElasticsearchSinkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	err = NewElasticsearchSink(client, "landnft-audit").Record(context.Background(), outcomeEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestDynamoDBSink(t *testing.T) {
	api := new(MockDynamoDB)
	e := outcomeEvent()
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		id, ok := in.Item["id"].(*ddbtypes.AttributeValueMemberS)
		op, ok2 := in.Item["operation"].(*ddbtypes.AttributeValueMemberS)
		_, hasError := in.Item["error"]
		return *in.TableName == "landnft-audit" && ok && ok2 && id.Value == e.ID && op.Value == "transfer" && !hasError
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()

	err := NewDynamoDBSink(api, "landnft-audit").Record(context.Background(), e)

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestDynamoDBSinkError(t *testing.T) {
	api := new(MockDynamoDB)
	api.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

	err := NewDynamoDBSink(api, "landnft-audit").Record(context.Background(), outcomeEvent())

	assert.ErrorContains(t, err, "throttled")
}

func TestSNSSinkPublishesOutcomesOnly(t *testing.T) {
	api := new(MockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var body map[string]any
		if err := json.Unmarshal([]byte(*in.Message), &body); err != nil {
			return false
		}
		return *in.TopicArn == "arn:aws:sns:us-east-1:1:landnft" &&
			body["outcome"] == "Success" &&
			*in.MessageAttributes["operation"].StringValue == "transfer"
	})).Return(&sns.PublishOutput{}, nil).Once()
	sink := NewSNSSink(api, "arn:aws:sns:us-east-1:1:landnft")

	require.NoError(t, sink.Record(context.Background(), NewEvent("transfer", PhaseIntent)))
	require.NoError(t, sink.Record(context.Background(), outcomeEvent()))

	api.AssertExpectations(t)
	api.AssertNumberOfCalls(t, "Publish", 1)
}
