// Package notify sends desktop notifications about available updates.
// Notification delivery is best-effort: a missing notification daemon or
// an unsupported desktop must never fail a check run.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
	log "github.com/sirupsen/logrus"

	"appwatch/internal/track"
)

// Send shows one desktop notification. Failures are logged at debug level
// and swallowed; headless hosts hit this path constantly.
func Send(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		log.WithError(err).Debug("desktop notification failed")
	}
}

// Updates notifies about apps with a pending update. No-op for an empty
// slice.
func Updates(apps []*track.App) {
	switch len(apps) {
	case 0:
	case 1:
		app := apps[0]
		Send("Update available",
			fmt.Sprintf("%s %s -> %s", app.Name, app.InstalledVersion, app.LatestVersion))
	default:
		Send("Updates available",
			fmt.Sprintf("%d apps have updates pending", len(apps)))
	}
}
