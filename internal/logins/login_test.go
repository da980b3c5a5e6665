package logins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLogin() Login {
	return Login{
		ID:                  "A",
		Hostname:            "https://example.com",
		HTTPRealm:           "realm",
		Username:            "user",
		Password:            "pw",
		TimeCreated:         1,
		TimePasswordChanged: 1,
	}
}

func TestCheckValid(t *testing.T) {
	t.Run("valid login passes", func(t *testing.T) {
		require.NoError(t, validLogin().CheckValid())
	})

	t.Run("empty hostname", func(t *testing.T) {
		l := validLogin()
		l.Hostname = ""
		err := l.CheckValid()
		require.Error(t, err)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindInvalidLogin, e.Kind)
	})

	t.Run("empty password", func(t *testing.T) {
		l := validLogin()
		l.Password = ""
		require.Error(t, l.CheckValid())
	})

	t.Run("both form_submit_url and http_realm", func(t *testing.T) {
		l := validLogin()
		l.FormSubmitURL = "https://example.com/login"
		require.Error(t, l.CheckValid())
	})

	t.Run("neither form_submit_url nor http_realm", func(t *testing.T) {
		l := validLogin()
		l.HTTPRealm = ""
		require.Error(t, l.CheckValid())
	})
}

func TestSyncStatusFromByte(t *testing.T) {
	for _, v := range []uint8{0, 1, 2} {
		s, err := SyncStatusFromByte(v)
		require.NoError(t, err)
		assert.Equal(t, SyncStatus(v), s)
	}

	_, err := SyncStatusFromByte(3)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindBadSyncStatus, e.Kind)
}

func TestNewLocalLoginDefaults(t *testing.T) {
	l := validLogin()
	ll := NewLocalLogin(l)
	assert.Equal(t, StatusNew, ll.SyncStatus)
	assert.False(t, ll.IsDeleted)
	assert.Equal(t, int64(0), ll.LocalModifiedMillis())
}

func TestNewMirrorLoginDefaults(t *testing.T) {
	l := validLogin()
	ml := NewMirrorLogin(l)
	assert.False(t, ml.IsOverridden)
	assert.Equal(t, ServerTimestamp(0), ml.ServerModified)
}

func TestNewGUIDUnique(t *testing.T) {
	a := NewGUID()
	b := NewGUID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
