package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("QUILLPOST_TEST_MODE") == "" {
			_ = os.Setenv("QUILLPOST_TEST_MODE", "1")
		}
	})
}
