// Package main builds the robot model binding as a C shared library:
//
//	go build -buildmode=c-shared -o librobotmodel.so ./cmd/librobotmodel
//
// Handles are plain integers; 0 is the null handle. Every string returned by the
// library is a malloc'd copy that the caller releases with RobotModel_free.
package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"go.viam.com/rdk/logging"
	robotmodel "robotmodel"
)

var surface = robotmodel.AcquireDefaultSurface(logging.NewLogger("librobotmodel"))

//export RobotModel_new
func RobotModel_new() C.uint64_t {
	return C.uint64_t(surface.New())
}

//export RobotModel_delete
func RobotModel_delete(h C.uint64_t) {
	surface.Delete(robotmodel.Handle(h))
}

//export RobotModel_release
func RobotModel_release(h C.uint64_t) {
	_ = surface.Release(robotmodel.Handle(h))
}

// RobotModel_load populates the handle from a kinematics file; an empty path loads the embedded model.
//
//export RobotModel_load
func RobotModel_load(h C.uint64_t, path, name *C.char) C.bool {
	cfg := &robotmodel.Config{ModelFile: goString(path), ModelName: goString(name)}
	if _, _, err := cfg.Validate("path"); err != nil {
		return C.bool(false)
	}
	model, err := cfg.LoadModel(nil)
	if err != nil {
		return C.bool(false)
	}
	return C.bool(surface.Assign(robotmodel.Handle(h), model) == nil)
}

//export RobotModel_share
func RobotModel_share(dst, src C.uint64_t) C.bool {
	return C.bool(surface.Share(robotmodel.Handle(dst), robotmodel.Handle(src)) == nil)
}

//export RobotModel_getName
func RobotModel_getName(h C.uint64_t) *C.char {
	return cString(surface.Name(robotmodel.Handle(h)))
}

//export RobotModel_getModelFrame
func RobotModel_getModelFrame(h C.uint64_t) *C.char {
	return cString(surface.ModelFrame(robotmodel.Handle(h)))
}

//export RobotModel_isEmpty
func RobotModel_isEmpty(h C.uint64_t) C.bool {
	empty, err := surface.IsEmpty(robotmodel.Handle(h))
	return C.bool(err == nil && empty)
}

//export RobotModel_printModelInfo
func RobotModel_printModelInfo(h C.uint64_t) *C.char {
	return cString(surface.PrintModelInfo(robotmodel.Handle(h)))
}

//export RobotModel_getRootJointName
func RobotModel_getRootJointName(h C.uint64_t) *C.char {
	return cString(surface.RootJointName(robotmodel.Handle(h)))
}

//export RobotModel_free
func RobotModel_free(s *C.char) {
	C.free(unsafe.Pointer(s))
}

// cString returns NULL on error.
func cString(s string, err error) *C.char {
	if err != nil {
		return nil
	}
	return C.CString(s)
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func main() {}
