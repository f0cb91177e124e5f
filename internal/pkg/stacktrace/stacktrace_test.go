package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 1 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/otpgate/internal/otplogin/usecase.(*Usecase).OTPVerify(...)
	/app/internal/otplogin/usecase/otp_verify.go:42 +0x1a
main.main()
	/app/main.go:10 +0x25
`)

	assert.Equal(t, []string{"internal/otplogin/usecase/otp_verify.go:42"}, InternalPaths(stack))
	assert.Empty(t, InternalPaths(nil))
}
