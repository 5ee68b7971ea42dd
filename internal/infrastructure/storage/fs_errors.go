package storage

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/jhoicas/mercado-bff/internal/domain"
)

// classifyFSError traduce "disco lleno" a domain.ErrQuotaExceeded.
func classifyFSError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
	}
	return err
}
