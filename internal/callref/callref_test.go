package callref

import (
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner(securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32), time.Hour)
	tok, err := s.Encode(Ref{Kind: "scheduled", ID: "c-1"})
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	got, err := s.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: "scheduled", ID: "c-1"}, got)
}

func TestSignerRejectsForeignToken(t *testing.T) {
	a := NewSigner(securecookie.GenerateRandomKey(32), nil, time.Hour)
	b := NewSigner(securecookie.GenerateRandomKey(32), nil, time.Hour)
	tok, err := a.Encode(Ref{Kind: "wakeup", ID: "w-1"})
	require.NoError(t, err)

	_, err = b.Decode(tok)
	assert.Error(t, err)
}

func TestNilSigner(t *testing.T) {
	s := NewSigner(nil, nil, time.Hour)
	assert.Nil(t, s)
	tok, err := s.Encode(Ref{ID: "x"})
	assert.NoError(t, err)
	assert.Empty(t, tok)
}
