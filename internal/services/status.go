package services

import (
	"fmt"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
)

// ParseStatus validates a client supplied status.
func ParseStatus(s string) (models.Status, error) {
	st := models.Status(s)
	if !st.Valid() {
		return "", validationError(fmt.Sprintf("invalid status %q", s))
	}
	return st, nil
}

// checkTransition reports whether moving from -> to changes anything under
// the configured transition mode.
func checkTransition(mode string, from, to models.Status) (bool, error) {
	if from == to {
		return false, nil
	}
	if mode == config.TransitionsForward && to.Rank() < from.Rank() {
		return false, validationError(fmt.Sprintf("cannot move status back from %s to %s", from, to))
	}
	return true, nil
}
