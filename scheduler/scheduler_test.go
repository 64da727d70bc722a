package scheduler

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlbunn/musicbox/config"
)

type scriptedReader struct {
	mu   sync.Mutex
	tags []string
}

func (r *scriptedReader) ReadTag() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tags) == 0 {
		return "", nil
	}
	tag := r.tags[0]
	r.tags = r.tags[1:]
	return tag, nil
}

func (r *scriptedReader) Close() error { return nil }

func schedConfig() *config.Config {
	return &config.Config{
		PollSlowInterval: 20 * time.Millisecond,
		PollFastInterval: 5 * time.Millisecond,
		ActivityTimeout:  100 * time.Millisecond,
	}
}

func TestSchedulerDeliversTags(t *testing.T) {
	reader := &scriptedReader{tags: []string{"TAG_ONE", "TAG_TWO"}}
	s := New(reader, schedConfig())
	s.Start()
	defer s.Stop()

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case tag := <-s.Events():
			got = append(got, tag)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []string{"TAG_ONE", "TAG_TWO"}, got)
}

func TestSchedulerQueuesTagsWhileConsumerStalls(t *testing.T) {
	tags := make([]string, 30)
	for i := range tags {
		tags[i] = fmt.Sprintf("TAG_%02d", i)
	}
	reader := &scriptedReader{tags: append([]string(nil), tags...)}
	cfg := schedConfig()
	cfg.PollSlowInterval = time.Millisecond
	cfg.PollFastInterval = time.Millisecond

	s := New(reader, cfg)
	s.Start()
	defer s.Stop()

	// Do not read a single event until every tag has been sensed, the
	// way a dispatcher stuck inside a long playback operation would.
	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.tags) == 0
	}, 2*time.Second, 5*time.Millisecond)

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < len(tags) {
		select {
		case tag := <-s.Events():
			got = append(got, tag)
		case <-timeout:
			t.Fatalf("lost events, got %d of %d", len(got), len(tags))
		}
	}
	assert.Equal(t, tags, got)
}

func TestSchedulerAdaptsInterval(t *testing.T) {
	s := New(&scriptedReader{}, schedConfig())

	now := time.Now()
	assert.Equal(t, s.slow, s.intervalAt(now), "no activity yet polls slow")

	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
	assert.Equal(t, s.fast, s.intervalAt(now.Add(50*time.Millisecond)),
		"inside the activity window polls fast")
	assert.Equal(t, s.slow, s.intervalAt(now.Add(200*time.Millisecond)),
		"after the window polls slow again")
}

func TestSchedulerStopClosesEvents(t *testing.T) {
	s := New(&scriptedReader{}, schedConfig())
	s.Start()
	s.Stop()

	select {
	case _, ok := <-s.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1", "MOCK_TAG_1"},
		{"9", "MOCK_TAG_9"},
		{"q", EventQuit},
		{"quit", EventQuit},
		{"l", EventLearn},
		{"n", EventNext},
		{"p", EventPrev},
		{"", ""},
		{"  ", ""},
		{"04a1b2c3", "TAG_04A1B2C3"},
		{"TAG_ABC", "TAG_ABC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, translateKey(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeTagID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"04:a1:b2:c3", "TAG_04A1B2C3"},
		{"  abc123  ", "TAG_ABC123"},
		{"TAG_ABC", "TAG_ABC"},
		{"tag_abc", "TAG_ABC"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTagID(tt.input), "input %q", tt.input)
	}
}

func TestDeviceReaderNormalizesUids(t *testing.T) {
	// A fifo-less stand-in: a regular file pre-seeded with uids.
	dir := t.TempDir()
	path := dir + "/reader"
	require.NoError(t, os.WriteFile(path, []byte("04:a1:b2:c3\n\nTAG_EXISTING\n"), 0644))

	r, err := NewDeviceReader(path)
	require.NoError(t, err)
	defer r.Close()

	var got []string
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 2 && time.Now().Before(deadline) {
		tag, err := r.ReadTag()
		require.NoError(t, err)
		if tag != "" {
			got = append(got, tag)
		} else {
			time.Sleep(5 * time.Millisecond)
		}
	}
	assert.Equal(t, []string{"TAG_04A1B2C3", "TAG_EXISTING"}, got)
}
