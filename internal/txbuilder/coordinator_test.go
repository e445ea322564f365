package txbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordinator_Order(t *testing.T) {
	c, err := NewCoordinator(2, RoleUser, RoleBackup, RolePlatform)
	require.NoError(t, err)
	require.Equal(t, Unsigned, c.State())

	require.NoError(t, c.Add(Signature{Signer: RoleBackup, Bytes: []byte{0x02}}))
	require.Equal(t, PartiallySigned, c.State())

	require.NoError(t, c.Add(Signature{Signer: RoleUser, Bytes: []byte{0x01}}))
	require.Equal(t, FullySigned, c.State())

	sigs := c.Signatures()
	require.Len(t, sigs, 2)
	require.Equal(t, RoleUser, sigs[0].Signer)
	require.Equal(t, RoleBackup, sigs[1].Signer)
}

func TestCoordinator_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(c *Coordinator)
		sig     Signature
		errMsg  string
	}{
		{
			name:   "unknown signer",
			sig:    Signature{Signer: "mallory", Bytes: []byte{1}},
			errMsg: "unknown signer",
		},
		{
			name: "duplicate",
			prepare: func(c *Coordinator) {
				require.NoError(t, c.Add(Signature{Signer: RoleUser, Bytes: []byte{1}}))
			},
			sig:    Signature{Signer: RoleUser, Bytes: []byte{2}},
			errMsg: "already signed",
		},
		{
			name: "threshold reached",
			prepare: func(c *Coordinator) {
				require.NoError(t, c.Add(Signature{Signer: RoleUser, Bytes: []byte{1}}))
				require.NoError(t, c.Add(Signature{Signer: RoleBackup, Bytes: []byte{1}}))
			},
			sig:    Signature{Signer: RolePlatform, Bytes: []byte{1}},
			errMsg: "threshold",
		},
		{
			name:   "empty signature",
			sig:    Signature{Signer: RoleUser},
			errMsg: "empty signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCoordinator(2, RoleUser, RoleBackup, RolePlatform)
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(c)
			}
			before := c.Count()

			err = c.Add(tt.sig)
			require.Error(t, err)
			require.True(t, IsSigningError(err))
			require.Contains(t, err.Error(), tt.errMsg)
			require.Equal(t, before, c.Count())
		})
	}
}

func TestCoordinator_Seal(t *testing.T) {
	c, err := NewCoordinator(1, RoleBackup)
	require.NoError(t, err)

	require.Error(t, c.Seal())

	require.NoError(t, c.Add(Signature{Signer: RoleBackup, Bytes: []byte{1}}))
	require.NoError(t, c.Seal())
	require.NoError(t, c.Seal())
	require.Equal(t, Broadcastable, c.State())

	err = c.Add(Signature{Signer: RoleBackup, Bytes: []byte{1}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sealed")
}

func TestNewCoordinator_Invalid(t *testing.T) {
	_, err := NewCoordinator(3, RoleUser, RoleBackup)
	require.Error(t, err)

	_, err = NewCoordinator(1, RoleUser, RoleUser)
	require.Error(t, err)
}
