package banner_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/propvault/pkg/client/banner"
	"github.com/yeisme/propvault/pkg/client/errs"
)

func TestBannerAutoClears(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := banner.New(clock, 5*time.Second)

	b.Show(&errs.RemoteError{Op: "list", Status: 500, Message: "database unavailable"})
	assert.Equal(t, "database unavailable", b.Current())

	clock.Advance(4 * time.Second)
	assert.Equal(t, "database unavailable", b.Current())

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return b.Current() == "" }, time.Second, 5*time.Millisecond)
}

func TestBannerNewerMessageRestartsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := banner.New(clock, 5*time.Second)

	b.Show(errors.New("first"))
	clock.Advance(3 * time.Second)
	b.Show(errors.New("second"))
	clock.Advance(3 * time.Second)

	// 第一条的计时已到期，但不能清除第二条
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "second", b.Current())

	clock.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return b.Current() == "" }, time.Second, 5*time.Millisecond)
}

func TestBannerDismiss(t *testing.T) {
	b := banner.New(clockwork.NewFakeClock(), time.Second)

	var changes []string

	b.OnChange(func(msg string) { changes = append(changes, msg) })
	b.Show(nil)
	b.ShowMessage("oops")
	b.Dismiss()
	b.Dismiss()

	assert.Empty(t, b.Current())
	assert.Equal(t, []string{"oops", ""}, changes)
}
