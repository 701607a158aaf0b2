package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/token/models"
	"rollcall/pkg/domain"
)

type CodecSuite struct {
	suite.Suite
	codec *Codec
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func (s *CodecSuite) SetupTest() {
	c, err := New([]byte(strings.Repeat("k", 32)))
	s.Require().NoError(err)
	s.codec = c
}

func (s *CodecSuite) newToken(sid domain.SessionID) *models.Token {
	tok, err := models.New(sid, time.Now(), 30*time.Second)
	s.Require().NoError(err)
	return tok
}

func (s *CodecSuite) TestRoundTrip() {
	sid := domain.NewSessionID()
	tok := s.newToken(sid)

	payload, err := s.codec.Encode(tok)
	s.Require().NoError(err)

	out, err := s.codec.Decode(payload, sid)
	s.Require().NoError(err)
	s.Equal(tok.Value, out.Value)
	s.Equal(tok.Nonce, out.Nonce)
	s.Equal(tok.IssuedAt.Unix(), out.IssuedAt.Unix())
}

func (s *CodecSuite) TestDecodeRejects() {
	sid := domain.NewSessionID()
	payload, err := s.codec.Encode(s.newToken(sid))
	s.Require().NoError(err)

	s.Run("payload presented to another session", func() {
		_, err := s.codec.Decode(payload, domain.NewSessionID())
		s.ErrorIs(err, ErrSessionMismatch)
	})

	s.Run("payload signed with another master key", func() {
		other, err := New([]byte(strings.Repeat("z", 32)))
		s.Require().NoError(err)
		forged, err := other.Encode(s.newToken(sid))
		s.Require().NoError(err)

		_, err = s.codec.Decode(forged, sid)
		s.ErrorIs(err, ErrMalformed)
	})

	s.Run("garbage", func() {
		_, err := s.codec.Decode("not-a-payload", sid)
		s.ErrorIs(err, ErrMalformed)
	})

	s.Run("tampered signature", func() {
		b := []byte(payload)
		i := len(b) - 10
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		_, err := s.codec.Decode(string(b), sid)
		s.ErrorIs(err, ErrMalformed)
	})
}

func (s *CodecSuite) TestShortMasterKeyRejected() {
	_, err := New([]byte("short"))
	s.Error(err)
}
