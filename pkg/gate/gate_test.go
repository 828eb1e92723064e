package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/keyclimate/pkg/config"
)

func feed(g *Gate, keys string) Event {
	var ev Event
	for _, k := range keys {
		ev = g.Feed(k)
	}
	return ev
}

func TestGate_BootsLocked(t *testing.T) {
	g := New(Plain("1234#"), DefaultOptions())
	assert.Equal(t, Locked, g.State())
	assert.Equal(t, 0, g.Len())
}

func TestGate_Submit(t *testing.T) {
	tests := []struct {
		name   string
		keys   string
		state  State
		action Action
	}{
		{name: "correct pin unlocks", keys: "1234#", state: Unlocked, action: Granted},
		{name: "wrong pin stays locked", keys: "129#", state: Locked, action: Denied},
		{name: "empty submit denied", keys: "#", state: Locked, action: Denied},
		{name: "extra digits discarded then denied", keys: "123456#", state: Locked, action: Denied},
		{name: "backspace correction", keys: "125*34#", state: Unlocked, action: Granted},
		{name: "letters are ordinary input", keys: "12A4#", state: Locked, action: Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Plain("1234#"), DefaultOptions())
			ev := feed(g, tt.keys)

			assert.Equal(t, tt.action, ev.Action)
			assert.Equal(t, tt.state, g.State())
			assert.Equal(t, 0, g.Len(), "buffer must be cleared after submit")
		})
	}
}

func TestGate_WrongPinRelocksUnlockedGate(t *testing.T) {
	g := New(Plain("1234#"), DefaultOptions())
	feed(g, "1234#")
	require.Equal(t, Unlocked, g.State())

	feed(g, "0000#")
	assert.Equal(t, Locked, g.State())
}

func TestGate_DeleteOnEmptyLocks(t *testing.T) {
	g := New(Plain("1234#"), DefaultOptions())

	ev := g.Feed('*')
	assert.Equal(t, Relocked, ev.Action)
	ev = g.Feed('*')
	assert.Equal(t, Relocked, ev.Action)
	assert.Equal(t, Locked, g.State())
	assert.Equal(t, 0, g.Len())

	feed(g, "1234#")
	require.Equal(t, Unlocked, g.State())
	g.Feed('*')
	assert.Equal(t, Locked, g.State(), "delete on empty buffer is a manual lock")
}

func TestGate_DeleteRemovesLastCharacter(t *testing.T) {
	g := New(Plain("1234#"), DefaultOptions())
	feed(g, "1234#")

	feed(g, "12")
	ev := g.Feed('*')
	assert.Equal(t, Deleted, ev.Action)
	assert.Equal(t, 1, ev.Len)
	assert.Equal(t, Unlocked, g.State())
}

func TestGate_FullBufferDiscards(t *testing.T) {
	g := New(Plain("1234#"), DefaultOptions())
	ev := feed(g, "123456")

	assert.Equal(t, Discarded, ev.Action)
	assert.Equal(t, 5, g.Len())
	assert.Equal(t, "*****", g.Masked())
}

func TestGate_IgnoresKeysOutsideKeypad(t *testing.T) {
	g := New(Plain("1A#"), DefaultOptions())

	for _, k := range []rune{'x', 'E', 'a', ' ', '\n', 'é'} {
		ev := g.Feed(k)
		assert.Equal(t, Discarded, ev.Action, "%q", k)
		assert.Equal(t, 0, ev.Len, "%q", k)
	}

	ev := feed(g, "1xA#")
	assert.Equal(t, Granted, ev.Action)
	assert.Equal(t, Unlocked, g.State())
}

func TestGate_FullBufferSubmitComparesWithoutSubmitKey(t *testing.T) {
	g := New(Plain("12345"), DefaultOptions())
	ev := feed(g, "12345#")
	assert.Equal(t, Granted, ev.Action)
}

func TestGate_NoKey(t *testing.T) {
	g := New(Plain("1234#"), DefaultOptions())
	g.Feed('1')

	ev := g.Feed(NoKey)
	assert.Equal(t, None, ev.Action)
	assert.Equal(t, 1, ev.Len)
}

func TestGate_ClearPolicyWithoutSubmitKey(t *testing.T) {
	g := New(Plain("1234"), Options{
		Capacity:     8,
		DeletePolicy: ClearAndLock,
	})

	feed(g, "1234#")
	require.Equal(t, Unlocked, g.State())

	feed(g, "12")
	ev := g.Feed('*')
	assert.Equal(t, Relocked, ev.Action)
	assert.Equal(t, Locked, g.State())
	assert.Equal(t, 0, g.Len())
}

func TestGate_MaskCappedForDisplay(t *testing.T) {
	g := New(Plain("1234"), Options{Capacity: 12})
	feed(g, "1234567890")
	assert.Equal(t, MaxMask, len(g.Masked()))
	assert.Equal(t, 10, g.Len())
}

func TestGate_OnEvent(t *testing.T) {
	g := New(Plain("1234#"), DefaultOptions())

	var events []Event
	g.OnEvent(func(ev Event) {
		events = append(events, ev)
	})
	g.OnEvent(func(Event) {
		panic("must not break the gate")
	})

	feed(g, "1234#")
	g.Feed(NoKey)

	require.Len(t, events, 5)
	assert.Equal(t, Appended, events[0].Action)
	assert.Equal(t, Granted, events[4].Action)
	assert.Equal(t, Unlocked, events[4].State)
}

func TestFromConfig(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		g, err := FromConfig(config.Default().Gate)
		require.NoError(t, err)
		feed(g, "1234#")
		assert.Equal(t, Unlocked, g.State())
	})

	t.Run("hashed", func(t *testing.T) {
		hash, err := HashPIN("2580#")
		require.NoError(t, err)

		cfg := config.Default().Gate
		cfg.Credential = "1234#"
		cfg.CredentialHash = hash

		g, err := FromConfig(cfg)
		require.NoError(t, err)

		feed(g, "1234#")
		assert.Equal(t, Locked, g.State(), "hash takes precedence")
		feed(g, "2580#")
		assert.Equal(t, Unlocked, g.State())
	})

	t.Run("bad hash", func(t *testing.T) {
		cfg := config.Default().Gate
		cfg.CredentialHash = "not-a-hash"
		_, err := FromConfig(cfg)
		assert.Error(t, err)
	})

	t.Run("bad policy", func(t *testing.T) {
		cfg := config.Default().Gate
		cfg.DeletePolicy = "explode"
		_, err := FromConfig(cfg)
		assert.Error(t, err)
	})
}

func TestPlain_Match(t *testing.T) {
	assert.True(t, Plain("1234#").Match("1234#"))
	assert.False(t, Plain("1234#").Match("1234"))
	assert.False(t, Plain("1234#").Match(""))
}
