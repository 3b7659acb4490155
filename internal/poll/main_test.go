package poll_test

import (
	"os"
	"testing"

	"codeberg.org/halvor/sunmon/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}
