package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDocumentFileSizeHuman(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{512, "512.0 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tc := range cases {
		d := &Document{FileSize: tc.size}
		assert.Equal(t, tc.want, d.FileSizeHuman())
	}
}

func TestDocumentOwnedBy(t *testing.T) {
	owner := uuid.New()
	d := &Document{UserId: owner}
	assert.True(t, d.OwnedBy(owner))
	assert.False(t, d.OwnedBy(uuid.New()))
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name  string
		token UserRefreshToken
		want  bool
	}{
		{"fresh", UserRefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", UserRefreshToken{ExpiresAt: now.Add(-time.Second)}, false},
		{"revoked", UserRefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.token.Usable(now))
		})
	}
}
