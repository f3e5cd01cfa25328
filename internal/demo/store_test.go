package demo

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/restkit/internal/core/domain"
)

func TestStore(t *testing.T) {
	s := NewStore(User{Name: "a", Email: "a@example.com"}, User{Name: "b", Email: "b@example.com"})

	users := s.List()
	require.Len(t, users, 2)
	assert.Equal(t, 1, users[0].ID)
	assert.Equal(t, 2, users[1].ID)

	u, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b", u.Name)

	created, err := s.Create("c", "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, created.ID)

	assert.True(t, s.Delete(1))
	assert.False(t, s.Delete(1))
	_, ok = s.Get(1)
	assert.False(t, ok)
}

func TestStore_DuplicateEmail(t *testing.T) {
	s := NewStore(User{Name: "a", Email: "a@example.com"})

	_, err := s.Create("other", "A@Example.com")
	require.Error(t, err)

	var appErr *domain.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "error.user.exists", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatusCode())
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "email", appErr.Fields[0].Field)
}
