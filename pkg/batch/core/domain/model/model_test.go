package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

func TestNewRecipientID_IsStableAndCaseInsensitive(t *testing.T) {
	a := model.NewRecipientID("Alice@Example.com")
	b := model.NewRecipientID("  alice@example.com ")

	assert.Equal(t, a, b)
	assert.Len(t, a, 36)
	assert.NotContains(t, a, "alice")
	assert.NotEqual(t, a, model.NewRecipientID("bob@example.com"))
}

func TestParseSourceLocator(t *testing.T) {
	loc, err := model.ParseSourceLocator("gs://uploads/u-1/list-9.csv")
	require.NoError(t, err)
	assert.Equal(t, model.SourceLocator{Bucket: "uploads", Key: "u-1/list-9.csv"}, loc)
	assert.Equal(t, "uploads/u-1/list-9.csv", loc.String())
	assert.Equal(t, "csv", loc.Extension())

	loc, err = model.ParseSourceLocator("/u-1/list-9.CSV")
	require.NoError(t, err)
	assert.Equal(t, "", loc.Bucket)
	assert.Equal(t, "csv", loc.Extension())

	_, err = model.ParseSourceLocator("gs://bucket-only")
	assert.Error(t, err)
	_, err = model.ParseSourceLocator("  ")
	assert.Error(t, err)
}

func TestSourceLocator_Identity(t *testing.T) {
	userID, listID, err := model.SourceLocator{Key: "incoming/user-7/list-3.csv"}.Identity()
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)
	assert.Equal(t, "list-3", listID)

	_, _, err = model.SourceLocator{Key: "list-3.csv"}.Identity()
	assert.Error(t, err)
	_, _, err = model.SourceLocator{Key: "user-7/"}.Identity()
	assert.Error(t, err)
}

func TestCheckpoint_PayloadRoundTrip(t *testing.T) {
	cp := model.Checkpoint{SourceLocator: model.SourceLocator{Bucket: "b", Key: "u/l.csv"}, Offset: 25}

	payload, err := model.MarshalCheckpoint(cp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sourceLocator":{"bucket":"b","key":"u/l.csv"},"offset":25}`, string(payload))

	decoded, err := model.UnmarshalCheckpoint(payload)
	require.NoError(t, err)
	assert.Equal(t, cp, decoded)
}

func TestUnmarshalCheckpoint_Rejects(t *testing.T) {
	_, err := model.UnmarshalCheckpoint([]byte(`{"sourceLocator":{"key":"u/l.csv"},"offset":-1}`))
	assert.Error(t, err)
	_, err = model.UnmarshalCheckpoint([]byte(`{"offset":3}`))
	assert.Error(t, err)
	_, err = model.UnmarshalCheckpoint([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewImportJob(t *testing.T) {
	cp := model.Checkpoint{SourceLocator: model.SourceLocator{Bucket: "b", Key: "u1/l1.csv"}, Offset: 50}

	job, err := model.NewImportJob(cp)
	require.NoError(t, err)
	assert.Equal(t, "u1", job.UserID)
	assert.Equal(t, "l1", job.ListID)
	assert.Equal(t, 50, job.Offset)
	assert.Equal(t, model.Checkpoint{SourceLocator: cp.SourceLocator, Offset: 75}, job.Checkpoint(75))

	_, err = model.NewImportJob(model.Checkpoint{SourceLocator: model.SourceLocator{Key: "flat.csv"}})
	assert.Error(t, err)
}
