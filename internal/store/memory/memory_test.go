package memory

import (
	"testing"

	"dialoguecraft/internal/store"
	"dialoguecraft/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}
