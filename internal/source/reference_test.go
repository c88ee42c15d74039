package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReference(t *testing.T) {
	payload := []byte(`{
		"faculties": [{"id": 3, "title": "Факультет інформаційних технологій"}],
		"chairs": [{"id": 12, "title": "Кафедра програмної інженерії"}],
		"groups": [{"id": 1021, "faculty_id": 3, "course": 2, "title": " КН-21 "}],
		"teachers": [
			{"id": 305, "chair_id": 12, "full_name": "Коваленко Іван Петрович"},
			{"id": 306, "chair_id": 12, "full_name": "Шевченко Олена Василівна", "short_name": "Шевченко О.В."}
		]
	}`)

	ref, err := DecodeReference(payload)
	require.NoError(t, err)

	require.Len(t, ref.Faculties, 1)
	assert.Equal(t, int64(3), ref.Faculties[0].ID)

	require.Len(t, ref.Groups, 1)
	assert.Equal(t, "КН-21", ref.Groups[0].Title, "titles are trimmed")
	assert.Equal(t, int64(3), ref.Groups[0].FacultyID)
	assert.Equal(t, 2, ref.Groups[0].Course)

	require.Len(t, ref.Teachers, 2)
	assert.Equal(t, "Коваленко І.П.", ref.Teachers[0].ShortName, "missing short name is derived")
	assert.Equal(t, "Шевченко О.В.", ref.Teachers[1].ShortName, "explicit short name kept")

	assert.Equal(t, "faculties=1 chairs=1 groups=1 teachers=2", ref.Counts())
}

func TestDecodeReferencePartialDocument(t *testing.T) {
	ref, err := DecodeReference([]byte(`{"groups": [{"id": 7, "title": "АБ-11"}]}`))
	require.NoError(t, err)
	assert.Empty(t, ref.Faculties)
	require.Len(t, ref.Groups, 1)
}

func TestDecodeReferenceRejectsMissingIDs(t *testing.T) {
	_, err := DecodeReference([]byte(`{"groups": [{"title": "КН-21"}]}`))
	require.Error(t, err)

	_, err = DecodeReference([]byte(`{"teachers": [{"full_name": "Коваленко Іван Петрович"}]}`))
	require.Error(t, err)
}

func TestDecodeReferenceRejectsNonJSON(t *testing.T) {
	_, err := DecodeReference([]byte(`<html></html>`))
	require.Error(t, err)
}
