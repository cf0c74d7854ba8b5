package rtctoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuilder_RequiresCredentials(t *testing.T) {
	_, err := NewBuilder("", "cert")
	assert.ErrorIs(t, err, ErrMissingAppCredentials)

	_, err = NewBuilder("app", "")
	assert.ErrorIs(t, err, ErrMissingAppCredentials)
}

func TestBuilder_IssueAndVerify(t *testing.T) {
	b, err := NewBuilder("app", "cert")
	require.NoError(t, err)

	token, err := b.IssueToken(context.Background(), Grant{
		RoomID:  "call_a_b_1",
		Channel: "ch_1_abcd",
		Account: "a",
	}, time.Hour)
	require.NoError(t, err)

	claims, err := b.parse(token)
	require.NoError(t, err)
	assert.Equal(t, "app", claims.AppID)
	assert.Equal(t, "call_a_b_1", claims.RoomID)
	assert.Equal(t, "ch_1_abcd", claims.Channel)
	assert.Equal(t, "a", claims.Account)
	assert.Equal(t, RolePublisher, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 2*time.Second)
}

func TestBuilder_ExpiredToken(t *testing.T) {
	b, err := NewBuilder("app", "cert")
	require.NoError(t, err)

	issuedAt := time.Now().Add(-2 * time.Hour)
	b.now = func() time.Time { return issuedAt }

	token, err := b.IssueToken(context.Background(), Grant{RoomID: "r", Channel: "c", Account: "a"}, time.Hour)
	require.NoError(t, err)

	b.now = time.Now
	_, err = b.parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBuilder_IssueToken_Invalid(t *testing.T) {
	b, err := NewBuilder("app", "cert")
	require.NoError(t, err)

	_, err = b.IssueToken(context.Background(), Grant{Channel: "c", Account: "a"}, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = b.IssueToken(context.Background(), Grant{RoomID: "r", Channel: "c", Account: "a"}, 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.IssueToken(ctx, Grant{RoomID: "r", Channel: "c", Account: "a"}, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_RejectsForeignCertificate(t *testing.T) {
	issuer, err := NewBuilder("app", "cert")
	require.NoError(t, err)
	verifier, err := NewBuilder("app", "other")
	require.NoError(t, err)

	token, err := issuer.IssueToken(context.Background(), Grant{RoomID: "r", Channel: "c", Account: "a"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
