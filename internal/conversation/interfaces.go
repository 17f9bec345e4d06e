package conversation

import (
	"context"

	"github.com/tOgg1/threadview/internal/models"
)

// Store is the read side of the backing dataset. Key queries return keys in
// ascending sort order.
type Store interface {
	Thread(ctx context.Context, threadID string) (*models.Thread, error)
	Bounds(ctx context.Context, threadID string) (models.ThreadBounds, error)
	KeysBefore(ctx context.Context, threadID string, beforeSortID int64, limit int) ([]models.InteractionKey, error)
	KeysFrom(ctx context.Context, threadID string, fromSortID int64, limit int) ([]models.InteractionKey, error)
	KeysBetween(ctx context.Context, threadID string, fromSortID, toSortID int64) ([]models.InteractionKey, error)
	KeysByID(ctx context.Context, threadID string, ids []string) ([]models.InteractionKey, error)
	InteractionsByID(ctx context.Context, ids []string) ([]models.Interaction, error)
	OldestUnread(ctx context.Context, threadID string) (*models.InteractionKey, error)
	ProfilesByAddress(ctx context.Context, addresses []string) (map[string]models.Profile, error)
}

// ViewState is the read-only query surface the landing predicate and the
// paging logic poll. Implementations must be safe to call from any goroutine.
type ViewState interface {
	IsLayoutApplyingUpdate() bool
	AreCellsAnimating() bool
	IsKeyboardAnimating() bool
	IsMultiSelectAnimating() bool
	IsScrolledToBottom() bool
	IsScrolledNearTop() bool
	IsScrolledNearBottom() bool
}

// Consumer applies landed render states.
//
// WillUpdateWithNewRenderState is called right before an update is handed
// over and must not mutate the presented list. UpdateWithNewRenderState is
// called once per landed load; the consumer must eventually call
// Coordinator.LoadDidLand exactly once for it.
type Consumer interface {
	ViewState
	WillUpdateWithNewRenderState(state *RenderState) UpdateToken
	UpdateWithNewRenderState(update *Update, scroll ScrollInstruction, token UpdateToken)
}

// ItemRenderer turns an interaction into its display payload.
type ItemRenderer interface {
	Render(interaction *models.Interaction, author models.Profile, view ViewStateSnapshot) *DisplayPayload
}
