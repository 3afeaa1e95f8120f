package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

type testUser struct {
	ID      int64     `json:"id" validate:"required"`
	Name    string    `json:"name"`
	Created Date      `json:"datetime_create" validate:"required"`
	Roles   []string  `json:"role" validate:"required,dive,notblank"`
	Reg     Timestamp `json:"reg_date"`
}

type testUserList struct {
	Users []testUser `json:"users" validate:"dive"`
	Total int        `json:"total" validate:"gte=0"`
}

func TestDecode(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		body := []byte(`{"status":true,"message":"ok","total":2,"users":[
			{"id":1,"name":"Ann","datetime_create":"05.03.2024","role":["admin"],"reg_date":"2024-03-05T10:00:00Z"},
			{"id":2,"datetime_create":"5.3.2024","role":["user"]}]}`)
		out, err := Decode[testUserList](body)
		require.NoError(t, err)
		require.Len(t, out.Users, 2)
		assert.Equal(t, NewDate(2024, time.March, 5), out.Users[0].Created)
		assert.Equal(t, out.Users[0].Created, out.Users[1].Created)
		assert.Equal(t, 10, out.Users[0].Reg.Hour())
		assert.True(t, out.Users[1].Reg.IsZero())
	})

	t.Run("business failure", func(t *testing.T) {
		_, err := Decode[testUserList]([]byte(`{"status":false,"message":"wrong login or password"}`))
		require.Error(t, err)
		assert.True(t, apperrors.IsBusiness(err))
		assert.Equal(t, "wrong login or password", err.Error())
		assert.Equal(t, "wrong login or password", apperrors.UserMessage(err))
	})

	t.Run("missing required field", func(t *testing.T) {
		out, err := Decode[testUserList]([]byte(`{"users":[{"id":1,"role":["admin"]}],"total":1}`))
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "invalid data", apperrors.UserMessage(err))
		assert.Nil(t, out.Users)

		var ves apperrors.ValidationErrors
		require.ErrorAs(t, err, &ves)
		assert.Equal(t, "users[0].datetime_create", ves[0].Field)
	})

	t.Run("blank role", func(t *testing.T) {
		_, err := Decode[testUserList]([]byte(`{"users":[{"id":1,"datetime_create":"01.01.2024","role":[" "]}]}`))
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("wrong primitive type", func(t *testing.T) {
		_, err := Decode[testUserList]([]byte(`{"users":[{"id":"one","datetime_create":"01.01.2024","role":["admin"]}]}`))
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := Decode[testUserList]([]byte(`{"users":[{"id":1,"datetime_create":"31.02.2024","role":["admin"]}]}`))
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Decode[testUserList]([]byte(`<html>`))
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestDateRoundTrip(t *testing.T) {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() < 2025; d = d.AddDate(0, 0, 1) {
		wire := d.Format(DateLayout)
		parsed, err := ParseDate(wire)
		require.NoError(t, err)
		require.Equal(t, wire, parsed.Wire())
	}

	for _, s := range []string{"29.02.2024", "01.12.1999", "31.12.2030"} {
		d, err := ParseDate(s)
		require.NoError(t, err)
		b, err := d.MarshalJSON()
		require.NoError(t, err)
		var back Date
		require.NoError(t, back.UnmarshalJSON(b))
		assert.Equal(t, s, back.Wire())
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"05.03.2024", "05.03.2024", true},
		{"5.3.2024", "05.03.2024", true},
		{"2024-03-05", "05.03.2024", true},
		{"2024-03-05T23:30:00+03:00", "05.03.2024", true},
		{"29.02.2023", "", false},
		{"yesterday", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Wire())
		})
	}
	assert.Equal(t, "", Date{}.Wire())
}

func TestEpochMillis(t *testing.T) {
	var e EpochMillis
	require.NoError(t, e.UnmarshalJSON([]byte("1700000000123")))
	assert.Equal(t, int64(1700000000123), e.Millis())
	assert.Equal(t, 2023, e.Year())

	b, err := e.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "1700000000123", string(b))

	require.NoError(t, e.UnmarshalJSON([]byte("null")))
	assert.True(t, e.IsZero())
	assert.Error(t, e.UnmarshalJSON([]byte(`"soon"`)))
}

const servicesSchema = `{
  "type": "object",
  "required": ["services"],
  "properties": {
    "services": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "services"],
        "properties": {
          "id": {"type": "integer"},
          "title": {"type": "string"},
          "services": {"type": "array"}
        }
      }
    }
  }
}`

type testCatalogue struct {
	Services []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	} `json:"services"`
}

func TestDecodeWithSchema(t *testing.T) {
	s := MustCompileSchema("mem://services.json", servicesSchema)

	out, err := DecodeWithSchema[testCatalogue]([]byte(`{"services":[{"id":1,"title":"Wash","services":[]}]}`), s)
	require.NoError(t, err)
	assert.Equal(t, "Wash", out.Services[0].Title)

	_, err = DecodeWithSchema[testCatalogue]([]byte(`{"services":[{"id":"1","title":"Wash","services":[]}]}`), s)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	var ves apperrors.ValidationErrors
	require.ErrorAs(t, err, &ves)
	assert.Equal(t, "/services/0/id", ves[0].Field)

	_, err = DecodeWithSchema[testCatalogue]([]byte(`{"services":[{"id":2,"services":[]}]}`), s)
	assert.True(t, apperrors.IsValidation(err))

	_, err = DecodeWithSchema[testCatalogue]([]byte(`{"status":false,"message":"no access"}`), s)
	assert.True(t, apperrors.IsBusiness(err))
	assert.EqualError(t, err, "no access")

	assert.Panics(t, func() { MustCompileSchema("mem://broken.json", `{"type": 12}`) })
}
