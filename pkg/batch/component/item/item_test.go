package item_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	item "github.com/tigerroll/recipient-import/pkg/batch/component/item"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

var createdAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newJob(mapping map[string]string) model.ImportJob {
	return model.ImportJob{
		UserID:        "user-1",
		ListID:        "list-1",
		Source:        model.SourceLocator{Bucket: "uploads", Key: "user-1/list-1.csv"},
		ColumnMapping: mapping,
	}
}

func TestRecordNormalizer_Normalize(t *testing.T) {
	n := item.NewRecordNormalizer(config.ImportConfig{EmailColumn: "email"})

	t.Run("mapped columns use destination names", func(t *testing.T) {
		job := newJob(map[string]string{"E-Mail": "email", "First": "first_name"})
		raw := map[string]string{"E-Mail": "  Ann@Example.com ", "First": "Ann", "City": "Lyon"}

		e := n.Normalize(job, raw, createdAt)

		assert.Equal(t, "Ann@Example.com", e.Email)
		assert.Equal(t, map[string]string{"first_name": "Ann", "City": "Lyon"}, e.Metadata)
		assert.Equal(t, "user-1", e.UserID)
		assert.Equal(t, "list-1", e.ListID)
		assert.Equal(t, model.RecipientStatusActive, e.Status)
		assert.False(t, e.IsConfirmed)
		assert.Equal(t, createdAt, e.CreatedAt)
		assert.Equal(t, model.NewRecipientID("ann@example.com"), e.ID)
	})

	t.Run("same record yields same identity", func(t *testing.T) {
		job := newJob(map[string]string{})
		raw := map[string]string{"email": "a@b.com", "name": "A"}

		first := n.Normalize(job, raw, createdAt)
		second := n.Normalize(job, raw, createdAt)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first, second)
	})

	t.Run("fallback column matches case-insensitively", func(t *testing.T) {
		raw := map[string]string{"EMAIL": "x@y.io", "Name": "X"}

		e := n.Normalize(newJob(nil), raw, createdAt)

		assert.Equal(t, "x@y.io", e.Email)
		assert.Equal(t, map[string]string{"Name": "X"}, e.Metadata)
	})

	t.Run("missing email column yields empty email", func(t *testing.T) {
		raw := map[string]string{"name": "nobody"}

		e := n.Normalize(newJob(nil), raw, createdAt)

		assert.Empty(t, e.Email)
		assert.Equal(t, map[string]string{"name": "nobody"}, e.Metadata)
	})

	t.Run("mapped destination wins over unmapped column of the same name", func(t *testing.T) {
		job := newJob(map[string]string{"First": "name"})
		raw := map[string]string{"email": "a@b.com", "First": "A", "name": "B"}

		for i := 0; i < 200; i++ {
			e := n.Normalize(job, raw, createdAt)
			require.Equal(t, map[string]string{"name": "A"}, e.Metadata)
		}
	})

	t.Run("columns sharing a destination resolve in source order", func(t *testing.T) {
		job := newJob(map[string]string{"Given": "first_name", "First": "first_name"})
		raw := map[string]string{"email": "a@b.com", "First": "A", "Given": "G"}

		for i := 0; i < 200; i++ {
			e := n.Normalize(job, raw, createdAt)
			require.Equal(t, map[string]string{"first_name": "G"}, e.Metadata)
		}
	})

	t.Run("empty configured column defaults to email", func(t *testing.T) {
		def := item.NewRecordNormalizer(config.ImportConfig{})
		e := def.Normalize(newJob(nil), map[string]string{"email": "d@e.fr"}, createdAt)
		assert.Equal(t, "d@e.fr", e.Email)
	})
}

func TestValidationFilter_Accept(t *testing.T) {
	f := item.NewValidationFilter()
	cases := map[string]bool{
		"a@b.com":        true,
		"first.last@x.y": true,
		"a@b.c.d":        true,
		"not-an-email":   false,
		"a b@c.com":      false,
		"@b.com":         false,
		"a@.com":         false,
		"a@b.":           false,
		"a@b":            false,
		"a@@b.com":       false,
		"":               false,
	}
	for email, want := range cases {
		assert.Equal(t, want, f.Accept(model.RecipientEntity{Email: email}), "email %q", email)
	}
}

func TestValidationFilter_Partition(t *testing.T) {
	n := item.NewRecordNormalizer(config.ImportConfig{EmailColumn: "email"})
	f := item.NewValidationFilter()
	job := newJob(nil)

	var candidates []model.RecipientEntity
	for _, email := range []string{"a@b.com", "not-an-email", "c@d.com"} {
		candidates = append(candidates, n.Normalize(job, map[string]string{"email": email}, createdAt))
	}

	res := f.Partition(candidates)

	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Valid, 2)
	assert.Equal(t, "a@b.com", res.Valid[0].Email)
	assert.Equal(t, "c@d.com", res.Valid[1].Email)
	assert.Equal(t, []string{"not-an-email"}, res.CorruptedEmails)
	assert.Equal(t, res.Total, res.ValidCount()+res.CorruptedCount())
}

func TestValidationFilter_PartitionEmpty(t *testing.T) {
	res := item.NewValidationFilter().Partition(nil)

	assert.Zero(t, res.Total)
	assert.Empty(t, res.Valid)
	assert.NotNil(t, res.CorruptedEmails)
	assert.Empty(t, res.CorruptedEmails)
}
