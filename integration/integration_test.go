//go:build integration

package integration

import (
	"errors"
	"testing"

	kernelhost "github.com/wagiedev/kernelhost-go"
)

// skipIfKernelNotInstalled skips the test if the error indicates the kernel is not found.
func skipIfKernelNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*kernelhost.KernelNotFoundError](err); ok {
		t.Skip("dotnet-interactive not installed")
	}
}
