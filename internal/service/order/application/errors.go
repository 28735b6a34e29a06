package application

import (
	"github.com/pkg/errors"

	"ordercore/internal/service/order/domain"
)

// UserMessage 给出可以直接展示给用户的错误描述。
// NotFound 和 Conflict 使用固定文案，InvalidTransition、Forbidden 和校验错误带上具体原因。
func UserMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound.Error()
	case errors.Is(err, domain.ErrConflict):
		return domain.ErrConflict.Error()
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrValidation):
		return err.Error()
	}
	return "internal error"
}
