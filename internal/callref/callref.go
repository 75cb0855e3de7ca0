// Package callref signs the correlation reference placed in the metadata
// bag of every outbound call, so webhook receivers can verify it came from
// this service.
package callref

import (
	"errors"
	"time"

	"github.com/gorilla/securecookie"
)

const name = "callref"

// Ref identifies the record an outbound call belongs to.
type Ref struct {
	Kind string `json:"k"` // "scheduled" or "wakeup"
	ID   string `json:"id"`
}

type Signer struct {
	sc *securecookie.SecureCookie
}

// NewSigner returns nil when hashKey is empty; a nil Signer encodes to "".
func NewSigner(hashKey, blockKey []byte, maxAge time.Duration) *Signer {
	if len(hashKey) == 0 {
		return nil
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &Signer{sc: sc}
}

func (s *Signer) Encode(r Ref) (string, error) {
	if s == nil {
		return "", nil
	}
	return s.sc.Encode(name, r)
}

func (s *Signer) Decode(token string) (Ref, error) {
	if s == nil {
		return Ref{}, errors.New("callref: signing disabled")
	}
	var r Ref
	err := s.sc.Decode(name, token, &r)
	return r, err
}
