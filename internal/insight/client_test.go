package insight

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendsight/internal/domain"
)

// fakeExtractor scripts a sequence of responses/errors and records every
// chunk it was given.
type fakeExtractor struct {
	responses []fakeResult
	calls     int
	chunks    [][]domain.Screenshot
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, shots []domain.Screenshot) (*RawResponse, error) {
	idx := f.calls
	f.calls++
	f.chunks = append(f.chunks, shots)
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &RawResponse{Text: r.text, Model: "fake-model", ReceivedAt: time.Now()}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeShots(n int) []domain.Screenshot {
	shots := make([]domain.Screenshot, n)
	for i := range shots {
		shots[i] = domain.Screenshot{Path: fmt.Sprintf("s%02d.png", i), MIMEType: "image/png", Index: i}
	}
	return shots
}

func TestClientRetriesTransientThenSucceeds(t *testing.T) {
	fake := &fakeExtractor{responses: []fakeResult{
		{err: fmt.Errorf("%w: connection reset", ErrTransient)},
		{err: fmt.Errorf("%w: connection reset", ErrTransient)},
		{text: "Trend: ok"},
	}}
	client := NewClient(fake, ClientConfig{MaxAttempts: 3, Backoff: time.Millisecond}, testLogger())

	resp, err := client.Extract(context.Background(), "prompt", makeShots(2))
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, "Trend: ok", resp.Text)
}

func TestClientExhaustsRetries(t *testing.T) {
	fake := &fakeExtractor{responses: []fakeResult{
		{err: fmt.Errorf("%w: still down", ErrTransient)},
	}}
	client := NewClient(fake, ClientConfig{MaxAttempts: 3, Backoff: time.Millisecond}, testLogger())

	_, err := client.Extract(context.Background(), "prompt", makeShots(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, fake.calls)
}

func TestClientAuthErrorNotRetried(t *testing.T) {
	fake := &fakeExtractor{responses: []fakeResult{
		{err: fmt.Errorf("%w: bad key", ErrAuth)},
	}}
	client := NewClient(fake, ClientConfig{MaxAttempts: 3, Backoff: time.Millisecond}, testLogger())

	_, err := client.Extract(context.Background(), "prompt", makeShots(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, fake.calls)
}

func TestClientQuotaErrorNotRetried(t *testing.T) {
	fake := &fakeExtractor{responses: []fakeResult{
		{err: fmt.Errorf("%w: out of tokens", ErrQuotaExceeded)},
	}}
	client := NewClient(fake, ClientConfig{MaxAttempts: 3, Backoff: time.Millisecond}, testLogger())

	_, err := client.Extract(context.Background(), "prompt", makeShots(1))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 1, fake.calls)
}

func TestClientChunksWithoutDropping(t *testing.T) {
	fake := &fakeExtractor{responses: []fakeResult{
		{text: "part one"},
		{text: "part two"},
		{text: "part three"},
	}}
	client := NewClient(fake, ClientConfig{ChunkSize: 3, Backoff: time.Millisecond}, testLogger())

	shots := makeShots(7)
	resp, err := client.Extract(context.Background(), "prompt", shots)
	require.NoError(t, err)

	require.Equal(t, 3, fake.calls)
	assert.Len(t, fake.chunks[0], 3)
	assert.Len(t, fake.chunks[1], 3)
	assert.Len(t, fake.chunks[2], 1)

	// Every screenshot sent exactly once, in order.
	var sent []string
	for _, chunk := range fake.chunks {
		for _, s := range chunk {
			sent = append(sent, s.Path)
		}
	}
	var want []string
	for _, s := range shots {
		want = append(want, s.Path)
	}
	assert.Equal(t, want, sent)

	assert.Equal(t, "part one\n\npart two\n\npart three", resp.Text)
}

func TestClientEmptyBatchRejected(t *testing.T) {
	client := NewClient(&fakeExtractor{responses: []fakeResult{{text: "x"}}}, ClientConfig{}, testLogger())
	_, err := client.Extract(context.Background(), "prompt", nil)
	assert.Error(t, err)
}

func TestClientCancelledBetweenRetries(t *testing.T) {
	fake := &fakeExtractor{responses: []fakeResult{
		{err: fmt.Errorf("%w: down", ErrTransient)},
	}}
	client := NewClient(fake, ClientConfig{MaxAttempts: 5, Backoff: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Extract(ctx, "prompt", makeShots(1))
		done <- err
	}()

	// Let the first attempt fail, then cancel during backoff.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, fake.calls)
	case <-time.After(5 * time.Second):
		t.Fatal("extract did not return after cancellation")
	}
}
