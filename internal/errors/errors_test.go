package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureReporter struct {
	mu   sync.Mutex
	seen []*EnhancedError
}

func (c *captureReporter) Report(err *EnhancedError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, err)
}

func TestBuilder_CarriesMetadata(t *testing.T) {
	base := NewStd("connection refused")
	err := New(base).
		Component("metricsource").
		Category(CategoryDataUnavailable).
		Context("metric", "ctr").
		Build()

	require.Error(t, err)
	assert.Equal(t, "connection refused", err.Error())
	assert.ErrorIs(t, err, base)

	var ee *EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "metricsource", ee.GetComponent())
	assert.Equal(t, CategoryDataUnavailable, ee.GetCategory())
	assert.Equal(t, "ctr", ee.GetContext()["metric"])
	assert.False(t, ee.GetTimestamp().IsZero())
}

func TestCategoryOf_Wrapped(t *testing.T) {
	inner := Newf("bad operator %q", "~").Category(CategoryConfig).Build()
	wrapped := fmt.Errorf("compile alert 7: %w", inner)

	assert.Equal(t, CategoryConfig, CategoryOf(wrapped))
	assert.True(t, IsCategory(wrapped, CategoryConfig))
	assert.False(t, IsCategory(nil, CategoryConfig))
	assert.Equal(t, CategoryGeneric, CategoryOf(NewStd("plain")))
}

func TestReporter_ReceivesBuiltErrors(t *testing.T) {
	rep := &captureReporter{}
	SetReporter(rep)
	t.Cleanup(func() { SetReporter(nil) })

	_ = Newf("model failed").Category(CategoryModel).Build()
	_ = Newf("model failed again").Category(CategoryModel).Build()

	rep.mu.Lock()
	defer rep.mu.Unlock()
	require.Len(t, rep.seen, 2)
	assert.Equal(t, CategoryModel, rep.seen[0].GetCategory())
}
