package visibility

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

type viewerFunc func(uuid.UUID) bool

func (f viewerFunc) CanSeeUnpublished(ownerID uuid.UUID) bool { return f(ownerID) }

func TestEnsureVisible(t *testing.T) {
	owner := uuid.New()
	ownerView := viewerFunc(func(id uuid.UUID) bool { return id == owner })
	stranger := viewerFunc(func(uuid.UUID) bool { return false })

	tests := []struct {
		name    string
		status  enums.ModerationStatus
		viewer  Viewer
		visible bool
	}{
		{"approved to stranger", enums.ModerationApproved, stranger, true},
		{"approved to anonymous", enums.ModerationApproved, nil, true},
		{"pending to stranger", enums.ModerationPending, stranger, false},
		{"rejected to anonymous", enums.ModerationRejected, nil, false},
		{"pending to owner", enums.ModerationPending, ownerView, true},
		{"rejected to owner", enums.ModerationRejected, ownerView, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureVisible(ModeratedItem{Kind: "listing", OwnerID: owner, Status: tt.status}, tt.viewer)
			if tt.visible {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
			assert.Contains(t, err.Error(), "listing not found")
		})
	}
}

func TestEnsurePublishedIgnoresOwnership(t *testing.T) {
	require.NoError(t, EnsurePublished(ModeratedItem{Status: enums.ModerationApproved}))
	err := EnsurePublished(ModeratedItem{Status: enums.ModerationPending})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
