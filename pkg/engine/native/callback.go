//go:build cuda

package native

/*
#include "va2f.h"
*/
import "C"

import (
	"runtime/cgo"

	"github.com/visagekit/visage/pkg/engine"
)

//export visageResultsBridge
func visageResultsBridge(userdata C.uintptr_t, track C.int, weights *C.float,
	weightCount, tsCurrent, tsNext C.int64_t) C.int {
	ex, ok := cgo.Handle(userdata).Value().(*executor)
	if !ok {
		return 0
	}
	fn := ex.callback()
	if fn == nil {
		return 0
	}
	r := engine.DeviceResults{
		Track:     int(track),
		Weights:   &deviceView{ptr: weights, n: int(weightCount)},
		Stream:    ex.stream,
		TsCurrent: int64(tsCurrent),
		TsNext:    int64(tsNext),
	}
	if fn(r) {
		return 1
	}
	return 0
}
