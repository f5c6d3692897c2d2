package activity

import (
	"context"
	"testing"

	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

const testSchema = `{
  "type": "record",
  "name": "Activity",
  "fields": [
    {"name": "activity_type", "type": "string"},
    {"name": "activity_time", "type": "string"},
    {"name": "item_id", "type": "string"},
    {"name": "item_type", "type": "string"},
    {"name": "item_name", "type": "string"},
    {"name": "item_parent_path", "type": "string"},
    {"name": "container_code", "type": "string"},
    {"name": "container_type", "type": "string"},
    {"name": "zone", "type": "int"},
    {"name": "user", "type": "string"},
    {"name": "imported_from", "type": "string", "default": ""},
    {"name": "changes", "type": {"type": "array", "items": "string"}, "default": []}
  ]
}`

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, len(rs))
	for i, r := range rs {
		results[i] = kgo.ProduceResult{Record: r, Err: f.err}
	}
	return results
}

func (f *fakeProducer) Close() {}

func TestPublishEncodesAndProduces(t *testing.T) {
	schema, err := avro.Parse(testSchema)
	require.NoError(t, err)

	fake := &fakeProducer{}
	p := &Publisher{client: fake, schema: schema, topic: "activity"}

	msg := UploadMessage(Source{
		ID: "item-1", Type: "file", Name: "a.txt", ParentPath: "admin",
		ContainerCode: "demo", ContainerType: "project", Zone: 1,
	}, "alice", "2026-07-29T00:00:00Z")
	require.NoError(t, p.Publish(t.Context(), msg))

	require.Len(t, fake.records, 1)
	assert.Equal(t, "activity", fake.records[0].Topic)

	var decoded Message
	require.NoError(t, avro.Unmarshal(schema, fake.records[0].Value, &decoded))
	assert.Equal(t, "upload", decoded.ActivityType)
	assert.Equal(t, "item-1", decoded.ItemID)
}

func TestPublishPropagatesProducerError(t *testing.T) {
	schema, err := avro.Parse(testSchema)
	require.NoError(t, err)

	fake := &fakeProducer{err: assertError{}}
	p := &Publisher{client: fake, schema: schema, topic: "activity"}

	err = p.Publish(t.Context(), UploadMessage(Source{ID: "item-1", Type: "file", Name: "a.txt"}, "alice", "now"))
	assert.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "kafka: boom" }
