package realtime

import apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"

var (
	errInvalidTopic   = apperrors.InvalidInput("unknown topic")
	errForbiddenTopic = apperrors.Forbidden("not allowed to subscribe to this topic")
)
