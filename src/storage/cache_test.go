package storage

import (
	"RetailInsight/src/datasource"
	"RetailInsight/src/datasource/file"
	"RetailInsight/src/processor"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retailCSV = `Transaction ID,Date,Customer ID,Gender,Age,Product Category,Quantity,Price per Unit,Total Amount
1,2023-01-05,CUST001,Male,24,Clothing,2,50,100
2,2023-02-10,CUST002,Female,30,Electronics,1,200,200
`

func loadDerived(path string) (processor.RecordSet, error) {
	return file.LoadDerived(path, file.Options{})
}

func TestDatasetCacheLoadsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(retailCSV), 0644))

	cache := NewDatasetCache(loadDerived)
	first, err := cache.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Len())
	assert.True(t, first.Derived())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := cache.Get(path)
			assert.NoError(t, err)
			assert.Equal(t, 2, rs.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Loads())
}

func TestDatasetCacheReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(retailCSV), 0644))

	cache := NewDatasetCache(loadDerived)
	_, err := cache.Get(path)
	require.NoError(t, err)

	updated := retailCSV + "3,2023-03-01,CUST003,Male,41,Beauty,1,10,10\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	rs, err := cache.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Len())
	assert.Equal(t, 2, cache.Loads())
}

func TestDatasetCacheInvalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(retailCSV), 0644))

	cache := NewDatasetCache(loadDerived)
	_, err := cache.Get(path)
	require.NoError(t, err)

	cache.Invalidate(path)
	_, err = cache.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Loads())
}

func TestDatasetCacheErrors(t *testing.T) {
	cache := NewDatasetCache(loadDerived)
	_, err := cache.Get(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, datasource.IsSourceError(err))

	// 加载失败不缓存
	path := filepath.Join(t.TempDir(), "retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(retailCSV), 0644))
	boom := errors.New("boom")
	calls := 0
	failing := NewDatasetCache(func(string) (processor.RecordSet, error) {
		calls++
		return processor.RecordSet{}, boom
	})
	_, err = failing.Get(path)
	assert.ErrorIs(t, err, boom)
	_, err = failing.Get(path)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, failing.Loads())
}

func TestSourceIdentity(t *testing.T) {
	ts := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	a := SourceIdentity{Path: "/data/retail.csv", Size: 10, ModTime: ts}
	b := a
	assert.Equal(t, a.ID(), b.ID())
	assert.Len(t, a.ID(), 32)

	b.Size = 11
	assert.NotEqual(t, a.ID(), b.ID())
	b = a
	b.ModTime = ts.Add(time.Second)
	assert.NotEqual(t, a.ID(), b.ID())
}
