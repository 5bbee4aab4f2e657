package providers

import (
	"errors"

	"github.com/goliatone/go-banking/core"
)

func asCoreError(err error, target **core.Error) bool {
	return errors.As(err, target) && *target != nil
}
