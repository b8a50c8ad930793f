package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{DatabaseURL: "postgres://%zz"})
	assert.ErrorContains(t, err, "failed to parse database URL")
}
