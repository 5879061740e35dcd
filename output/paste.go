package output

import (
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var keyBonding = sync.OnceValues(func() (*keybd_event.KeyBonding, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	if runtime.GOOS == "linux" {
		// uinput needs a moment before the virtual device accepts events.
		time.Sleep(2 * time.Second)
	}
	return &kb, nil
})

// sendPaste presses the platform paste shortcut.
func sendPaste() error {
	kb, err := keyBonding()
	if err != nil {
		return err
	}
	kb.Clear()
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching()
}
