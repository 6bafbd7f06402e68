package models_test

import (
	"testing"

	"github.com/ha1tch/minired/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	t.Run("Order independent", func(t *testing.T) {
		assert.Equal(t, models.Canonical("Ana", "Beto"), models.Canonical("Beto", "Ana"))
		assert.Equal(t, models.Friendship{Left: "Ana", Right: "Beto"}, models.Canonical("Beto", "Ana"))
	})

	t.Run("Case sensitive ordering", func(t *testing.T) {
		// Uppercase sorts before lowercase in byte order
		f := models.Canonical("ana", "Zoe")
		assert.Equal(t, "Zoe", f.Left)
		assert.Equal(t, "ana", f.Right)
	})
}

func TestNewStats(t *testing.T) {
	s := models.NewStats(3, 2)
	assert.Equal(t, 3, s.TotalPeople)
	assert.Equal(t, 2, s.TotalFriendships)
	assert.InDelta(t, 0.6666, s.AverageFriendsPerPerson, 0.001)

	empty := models.NewStats(0, 0)
	assert.Equal(t, 0.0, empty.AverageFriendsPerPerson)
}
