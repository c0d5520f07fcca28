package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	sub string
	err error
}

func (f fakeResolver) ValidateToken(tokenString string) (string, error) { return f.sub, f.err }

func TestRegistryAuth_HeaderOnly(t *testing.T) {
	auth := NewRegistryAuth(fakeResolver{})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Agent-Id", "agent-1")

	id, ok := auth.Authenticate(r)
	assert.True(t, ok)
	assert.Equal(t, "agent-1", id)
}

func TestRegistryAuth_BearerTokenResolvesSubject(t *testing.T) {
	auth := NewRegistryAuth(fakeResolver{sub: "agent-2"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer sometoken")

	id, ok := auth.Authenticate(r)
	assert.True(t, ok)
	assert.Equal(t, "agent-2", id)
}

func TestRegistryAuth_NoCredentials_ReturnsAnonymous(t *testing.T) {
	auth := NewRegistryAuth(fakeResolver{})
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := auth.Authenticate(r)
	assert.False(t, ok)
}

func TestAnonymousAuth_AlwaysAnonymous(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	id, ok := AnonymousAuth{}.Authenticate(r)
	assert.False(t, ok)
	assert.Empty(t, id)
}
