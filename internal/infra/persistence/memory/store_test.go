package memory

import (
	"testing"

	"jaspynotes/internal/infra/persistence/storetest"
	"jaspynotes/pkg/domain"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return NewStore()
	})
}
