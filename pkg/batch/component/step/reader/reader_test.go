package reader_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reader "github.com/tigerroll/recipient-import/pkg/batch/component/step/reader"
	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

func drain(t *testing.T, s port.RecordStream) []map[string]string {
	t.Helper()
	var out []map[string]string
	for {
		rec, err := s.Next()
		if errors.Is(err, port.ErrNoMoreRecords) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestDecoderRegistry_CheckFormat(t *testing.T) {
	reg := reader.NewDecoderRegistry(reader.NewCSVDecoder())

	for _, key := range []string{"u/l.csv", "u/l.CSV", "u/l.txt"} {
		d, err := reg.CheckFormat(model.SourceLocator{Key: key})
		require.NoError(t, err, key)
		assert.Equal(t, reader.FormatCSV, d.Format())
	}

	for _, key := range []string{"u/l.xlsx", "u/l", "u/l.json"} {
		_, err := reg.CheckFormat(model.SourceLocator{Key: key})
		require.Error(t, err, key)
		assert.True(t, errors.Is(err, exception.ErrUnsupportedFormat), key)
	}

	assert.Equal(t, []string{"csv"}, reg.Formats())
}

func TestCSVDecoder_Decode(t *testing.T) {
	body := []byte("\xEF\xBB\xBFemail, name ,city\r\na@b.com,Ann,Lyon\n\nc@d.com,Cid\n")

	s, err := reader.NewCSVDecoder().Decode(body)
	require.NoError(t, err)

	assert.Equal(t, []string{"email", "name", "city"}, s.Header())
	records := drain(t, s)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]string{"email": "a@b.com", "name": "Ann", "city": "Lyon"}, records[0])
	assert.Equal(t, map[string]string{"email": "c@d.com", "name": "Cid", "city": ""}, records[1])

	_, err = s.Next()
	assert.ErrorIs(t, err, port.ErrNoMoreRecords, "stream must not restart")
}

func TestCSVDecoder_EmptyBody(t *testing.T) {
	s, err := reader.NewCSVDecoder().Decode(nil)
	require.NoError(t, err)

	assert.Empty(t, s.Header())
	assert.Empty(t, drain(t, s))
}

func TestCSVDecoder_HeaderOnly(t *testing.T) {
	s, err := reader.NewCSVDecoder().Decode([]byte("email\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"email"}, s.Header())
	assert.Empty(t, drain(t, s))
}

func TestCSVDecoder_QuotedFields(t *testing.T) {
	s, err := reader.NewCSVDecoder().Decode([]byte("email,note\n\"x@y.io\",\"hello, world\"\n"))
	require.NoError(t, err)

	records := drain(t, s)
	require.Len(t, records, 1)
	assert.Equal(t, "hello, world", records[0]["note"])
}
