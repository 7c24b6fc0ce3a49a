package engine

import (
	"os"

	"github.com/google/uuid"
)

func newPlanID() string {
	return uuid.NewString()
}

func currentPID() int {
	return os.Getpid()
}
