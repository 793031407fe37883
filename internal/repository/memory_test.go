package repository

import "testing"

func TestMemoryRepository(t *testing.T) {
	runContract(t, NewMemoryRepository())
}
