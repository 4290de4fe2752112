// package tracker holds client-side watch-status state: a shared revalidating store
// and one controller per mounted content item
package tracker

import (
	"context"
	"fmt"

	"github.com/desertthunder/watchx/internal/models"
)

// Backend is the watch-status REST collaborator. [services.WatchStatusService] implements it.
type Backend interface {
	Identity(ctx context.Context) (string, error)
	Get(ctx context.Context, userID string, t models.ContentType, id string) (models.StatusEntry, error)
	Put(ctx context.Context, userID string, t models.ContentType, id string, entry models.StatusEntry) error
	All(ctx context.Context, userID string) (models.ContentByStatus, error)
	Batch(ctx context.Context, userID string, t models.ContentType, ids []string) (map[string]models.WatchStatus, error)
}

const dashboardID = "dashboard"

// Key identifies one cached watch-status entry.
type Key struct {
	UserID      string
	ContentType models.ContentType
	ContentID   string
}

// DashboardKey is the aggregate key for userID's dashboard.
func DashboardKey(userID string) Key {
	return Key{UserID: userID, ContentID: dashboardID}
}

func (k Key) IsDashboard() bool {
	return k.ContentType == "" && k.ContentID == dashboardID
}

func (k Key) String() string {
	if k.IsDashboard() {
		return fmt.Sprintf("%s:%s", k.UserID, dashboardID)
	}
	return fmt.Sprintf("%s:%s:%s", k.UserID, k.ContentType, k.ContentID)
}
