//go:build nohwtoken

package configs

import (
	"context"
	"fmt"

	kerrors "github.com/PolarWolf314/git-credential-keepassxc/internal/errors"
)

// YubiKey is unavailable in builds tagged nohwtoken.
type YubiKey struct {
	OnWait func()
	OnDone func()
}

func NewYubiKey() *YubiKey {
	return &YubiKey{}
}

func (y *YubiKey) Serial(context.Context) (uint32, error) {
	return 0, fmt.Errorf("%w: built without hardware token support", kerrors.ErrUnsupported)
}

func (y *YubiKey) ChallengeResponse(context.Context, uint8, []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: built without hardware token support", kerrors.ErrUnsupported)
}
