package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_Creates_Anonymous_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id := NewID()

	// When a connection is registered
	s, err := registry.Register(id)

	// Then the session exists without identity
	req.NoError(err)
	req.Equal(id, s.ID)
	req.False(s.HasIdentity())
	req.False(s.IsTyping)
	req.Equal(1, registry.Len())
}

func TestRegistry_Register_Duplicate_Fails(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id := NewID()

	// Given a registered connection
	_, err := registry.Register(id)
	req.NoError(err)

	// When the same id is registered again
	_, err = registry.Register(id)

	// Then the invariant violation is reported
	req.True(errors.Is(err, ErrDuplicateSession))
	req.Equal(1, registry.Len())
}

func TestRegistry_SetIdentity_Overwrites_Silently(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id := NewID()
	_, err := registry.Register(id)
	req.NoError(err)

	// When the identity is declared twice
	first, err := registry.SetIdentity(id, "Alice")
	req.NoError(err)
	req.True(first)
	first, err = registry.SetIdentity(id, "Alicia")
	req.NoError(err)

	// Then only the first call is reported as first
	// And the latest name wins
	req.False(first)
	s, ok := registry.Get(id)
	req.True(ok)
	req.Equal("Alicia", s.DisplayName)
}

func TestRegistry_SetIdentity_Unknown_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.SetIdentity(NewID(), "Alice")

	req.True(errors.Is(err, ErrSessionNotFound))
}

func TestRegistry_Remove_Returns_Final_State(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id := NewID()
	_, err := registry.Register(id)
	req.NoError(err)
	_, err = registry.SetIdentity(id, "Bob")
	req.NoError(err)

	// When the session is removed
	s, ok := registry.Remove(id)

	// Then the display name is still readable
	req.True(ok)
	req.Equal("Bob", s.DisplayName)

	// And the session is gone
	_, ok = registry.Get(id)
	req.False(ok)
	_, ok = registry.Remove(id)
	req.False(ok)
	req.Empty(registry.IDs())
}

func TestRegistry_SetTyping(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	id := NewID()
	_, err := registry.Register(id)
	req.NoError(err)

	s, ok := registry.SetTyping(id, true)
	req.True(ok)
	req.True(s.IsTyping)

	_, ok = registry.SetTyping(NewID(), true)
	req.False(ok)
}

// TestRegistry_Concurrent_Access registers, names and removes sessions from
// many goroutines and checks that no entry is lost or duplicated.
func TestRegistry_Concurrent_Access(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	const n = 100

	ids := make([]ID, n)
	for i := range ids {
		ids[i] = NewID()
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := registry.Register(ids[i])
			assert.NoError(t, err)
			_, err = registry.SetIdentity(ids[i], fmt.Sprintf("user-%d", i))
			assert.NoError(t, err)
			registry.SetTyping(ids[i], true)
		}(i)
	}
	wg.Wait()

	req.Equal(n, registry.Len())
	req.ElementsMatch(ids, registry.IDs())

	wg.Add(n / 2)
	for i := 0; i < n/2; i++ {
		go func(i int) {
			defer wg.Done()
			_, ok := registry.Remove(ids[i])
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	req.Equal(n-n/2, registry.Len())
	req.ElementsMatch(ids[n/2:], registry.IDs())
}
