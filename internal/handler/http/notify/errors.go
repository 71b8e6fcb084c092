package notify

import (
	"errors"
	"net/http"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/handler/http/respond"
	"notify-dispatch/internal/usecase/channel"
	notifyUC "notify-dispatch/internal/usecase/notify"
)

// writeError maps use case errors onto the error envelope. Anything not
// recognised is treated as internal and sanitized.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *entity.ValidationError
	switch {
	case errors.Is(err, notifyUC.ErrInvalidMessage):
		respond.Error(w, http.StatusBadRequest, respond.KindInvalidRequest, validationText(err))
	case errors.Is(err, channel.ErrInvalidConfig), errors.As(err, &ve):
		respond.Error(w, http.StatusBadRequest, respond.KindInvalidConfig, validationText(err))
	case errors.Is(err, channel.ErrDuplicateConfig):
		respond.Error(w, http.StatusConflict, respond.KindDuplicateConfig, err)
	case errors.Is(err, channel.ErrConfigNotFound):
		respond.Error(w, http.StatusNotFound, respond.KindNotFound, err)
	default:
		respond.Internal(w, r, err)
	}
}

// validationText prefers the field-specific message over the wrapping chain.
func validationText(err error) error {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return err
}

func badRequest(w http.ResponseWriter, err error) {
	respond.Error(w, http.StatusBadRequest, respond.KindInvalidRequest, err)
}
