package vkrt

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// VkError wraps a failing Vulkan API return code with the name of the call
// that produced it. It is returned to the caller: nothing in this package
// logs it, retries the call, or aborts the process on it.
type VkError struct {
	Op  string
	Ret vk.Result
	Err error
}

func (e *VkError) Error() string {
	return fmt.Sprintf("vulkan: %s failed: %v (%d)", e.Op, e.Err, e.Ret)
}

func (e *VkError) Unwrap() error { return e.Err }

// checkResult converts a raw vk.Result into a *VkError, or nil on success.
// Every vk* call in this package is routed through here so failures carry
// the name of the call that produced them.
func checkResult(op string, ret vk.Result) error {
	if err := vk.Error(ret); err != nil {
		return &VkError{Op: op, Ret: ret, Err: err}
	}
	return nil
}

// fatalf logs a contract violation (spec.md §7: non-null stream handle,
// cross-device copy, unknown kernel name, oversized push-constants, ...) and
// panics. There is no recovery path: the runtime is meant to run against
// trusted, compiler-generated input and to surface misuse loudly rather than
// attempt to continue in an inconsistent state.
func fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log().Error(msg)
	panic(msg)
}

// mustSucceed panics if err is non-nil, after logging it. Nothing in this
// package calls it; initialization failures (no suitable memory type, ...)
// are returned as errors from InitDeviceAPI.
func mustSucceed(err error) {
	if err != nil {
		log().Errorw("fatal vulkan error", "error", err)
		panic(err)
	}
}
