package relay

import (
	"errors"
	"iter"
	"testing"

	"chat-relay/internal/shared"
	"chat-relay/internal/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events(data ...string) iter.Seq2[sse.Event, error] {
	return func(yield func(sse.Event, error) bool) {
		for _, d := range data {
			if !yield(sse.Event{Data: d}, nil) {
				return
			}
		}
	}
}

func drain(seq iter.Seq2[string, error]) ([]string, error) {
	var chunks []string
	for chunk, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestTranscodeSingleEvent(t *testing.T) {
	chunks, err := drain(NewTranscoder().Transcode(events(`{"response":"Hello"}`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, chunks)
}

func TestTranscodeDoneEmitsNothing(t *testing.T) {
	chunks, err := drain(NewTranscoder().Transcode(events("[DONE]")))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTranscodeStopsAtDone(t *testing.T) {
	chunks, err := drain(NewTranscoder().Transcode(events(
		`{"response":"Ok"}`, `{"response":"!"}`, "[DONE]", `{"response":"late"}`,
	)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ok", "!"}, chunks)
}

func TestTranscodeWithoutDone(t *testing.T) {
	chunks, err := drain(NewTranscoder().Transcode(events(`{"response":"a"}`, `{"response":"b"}`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunks)
}

func TestTranscodeOneChunkPerEvent(t *testing.T) {
	chunks, err := drain(NewTranscoder().Transcode(events(
		`{"response":"a"}`, `{"response":""}`, `{"response":"b","usage":{"prompt_tokens":3}}`,
	)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "b"}, chunks)
}

func TestTranscodeMalformedEvent(t *testing.T) {
	chunks, err := drain(NewTranscoder().Transcode(events(`{"response":"a"}`, `{"response":`)))

	assert.Equal(t, []string{"a"}, chunks)
	var merr *shared.MalformedEventError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, `{"response":`, merr.Data)
}

func TestTranscodeSchemaErrors(t *testing.T) {
	for name, data := range map[string]string{
		"missing":    `{"text":"a"}`,
		"null":       `{"response":null}`,
		"not string": `{"response":42}`,
		"not object": `"a"`,
	} {
		t.Run(name, func(t *testing.T) {
			chunks, err := drain(NewTranscoder().Transcode(events(data, `{"response":"after"}`)))

			assert.Empty(t, chunks)
			var serr *shared.SchemaError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, "response", serr.Field)
		})
	}
}

func TestTranscodeSkipSchemaErrors(t *testing.T) {
	var skipped []error
	tr := NewTranscoder(WithSkipSchemaErrors(func(err error) { skipped = append(skipped, err) }))

	chunks, err := drain(tr.Transcode(events(`{"response":"a"}`, `{"text":"x"}`, `{"response":"b"}`, "[DONE]")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunks)
	assert.Len(t, skipped, 1)

	_, err = drain(tr.Transcode(events(`not json`)))
	var merr *shared.MalformedEventError
	assert.ErrorAs(t, err, &merr)
}

func TestTranscodePropagatesDecodeError(t *testing.T) {
	boom := errors.New("connection reset")
	src := func(yield func(sse.Event, error) bool) {
		if !yield(sse.Event{Data: `{"response":"a"}`}, nil) {
			return
		}
		yield(sse.Event{}, boom)
	}

	chunks, err := drain(NewTranscoder().Transcode(src))
	assert.Equal(t, []string{"a"}, chunks)
	assert.ErrorIs(t, err, boom)
}

func TestTranscodeIsIdempotent(t *testing.T) {
	src := events(`{"response":"x"}`, `{"response":"y"}`, "[DONE]")
	tr := NewTranscoder()

	first, err := drain(tr.Transcode(src))
	require.NoError(t, err)
	second, err := drain(tr.Transcode(src))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
