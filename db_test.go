package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_Blobs(t *testing.T) {
	db := openTestDB(t)

	value, err := db.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, db.Put("k", []byte("one")))
	require.NoError(t, db.Put("k", []byte("two")))
	value, err = db.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), value)

	require.NoError(t, db.Delete("k"))
	require.NoError(t, db.Delete("k"))
	value, err = db.Get("k")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestDB_Session(t *testing.T) {
	db := openTestDB(t)

	session, err := db.LoadSession()
	require.NoError(t, err)
	assert.Nil(t, session)

	want := Session{Date: "2024-06-01", Timezone: "Asia/Tokyo", UseRaw: true, ColorMode: "activity"}
	require.NoError(t, db.SaveSession(want))
	session, err = db.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, &want, session)

	require.NoError(t, db.Put(keySession, []byte("{not json")))
	_, err = db.LoadSession()
	assert.Error(t, err)
}

func TestDB_DaySummaries(t *testing.T) {
	db := openTestDB(t)

	key := SummaryKey{DocHash: "aaa", Timezone: "UTC", Date: "2024-06-01"}
	got, err := db.GetDaySummary(key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.PutDaySummary(key, &DaySummary{Date: "2024-06-01", PointCount: 3}))
	rawKey := key
	rawKey.UseRaw = true
	require.NoError(t, db.PutDaySummary(rawKey, &DaySummary{Date: "2024-06-01", PointCount: 40}))
	other := SummaryKey{DocHash: "bbb", Timezone: "UTC", Date: "2024-06-01"}
	require.NoError(t, db.PutDaySummary(other, &DaySummary{PointCount: 1}))

	got, err = db.GetDaySummary(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.PointCount)

	got, err = db.GetDaySummary(rawKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 40, got.PointCount)

	n, err := db.PruneDaySummaries("aaa")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err = db.GetDaySummary(other)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = db.GetDaySummary(key)
	require.NoError(t, err)
	assert.NotNil(t, got)
}
