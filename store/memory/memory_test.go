package memory_test

import (
	"testing"

	"github.com/user/blog-go/store"
	"github.com/user/blog-go/store/memory"
	"github.com/user/blog-go/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}
