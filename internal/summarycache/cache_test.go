package summarycache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrGenerate_CoalescesConcurrentCallers(t *testing.T) {
	c := New(16, time.Hour)
	var calls int32

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			summary, err := c.GetOrGenerate("https://example.com/a", func() (string, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return "generated summary", nil
			})
			require.NoError(t, err)
			results[idx] = summary
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "generated summary", r)
	}
}

func TestGetOrGenerate_ReusesCompletedEntry(t *testing.T) {
	c := New(16, time.Hour)
	var calls int32
	gen := func() (string, error) {
		atomic.AddInt32(&calls, 1)
		return "summary", nil
	}

	_, err := c.GetOrGenerate("https://example.com/b", gen)
	require.NoError(t, err)
	_, err = c.GetOrGenerate("https://example.com/b", gen)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrGenerate_FailTransitionAllowsRetry(t *testing.T) {
	c := New(16, time.Hour)
	_, err := c.GetOrGenerate("https://example.com/c", func() (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)

	entry := c.Get("https://example.com/c")
	require.NotNil(t, entry)
	assert.Equal(t, StatusFailed, entry.Status)

	summary, err := c.GetOrGenerate("https://example.com/c", func() (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", summary)
}
