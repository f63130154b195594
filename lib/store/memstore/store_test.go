package memstore

import (
	"testing"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
	storetesting "github.com/MatiasNAmendola/Nxdb/lib/store/testing"
)

func Test(t *testing.T) {
	storetesting.RunEngineTests(t, "MemStore", func() store.Engine {
		return NewEngine(nil)
	})
}

func TestPersistentEngine(t *testing.T) {
	storetesting.RunEngineTests(t, "MemStorePersistent", func() store.Engine {
		return NewEngine(&EngineOptions{BaseDir: t.TempDir()})
	})
}
