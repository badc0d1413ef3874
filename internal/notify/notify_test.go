package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDesktop_Notify(t *testing.T) {
	var got []string
	d := NewDesktop(true, nil)
	d.send = func(title, message string, _ any) error {
		got = append(got, title+"|"+message)
		return nil
	}

	assert.NoError(t, d.Notify("Credit reset (FIRST)", "1 ok"))
	assert.Equal(t, []string{"Credit reset (FIRST)|1 ok"}, got)

	d.SetEnabled(false)
	assert.False(t, d.Enabled())
	assert.NoError(t, d.Notify("muted", "x"))
	assert.Len(t, got, 1)
}

func TestDesktop_NotifyError(t *testing.T) {
	d := NewDesktop(true, nil)
	d.send = func(string, string, any) error { return errors.New("no dbus") }

	assert.EqualError(t, d.Notify("t", "m"), "no dbus")
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.Notify("t", "m"))
}
