package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import "unsafe"

// Go-typed entry points that go through the exported C functions exactly as a
// foreign caller would. Returned strings are copied out and freed with
// RobotModel_free; ok is false when the library returned NULL.

func callNew() uint64 {
	return uint64(RobotModel_new())
}

func callDelete(h uint64) {
	RobotModel_delete(C.uint64_t(h))
}

func callRelease(h uint64) {
	RobotModel_release(C.uint64_t(h))
}

func callLoad(h uint64, path, name string) bool {
	cPath, cName := optionalCString(path), optionalCString(name)
	defer C.free(unsafe.Pointer(cPath))
	defer C.free(unsafe.Pointer(cName))
	return bool(RobotModel_load(C.uint64_t(h), cPath, cName))
}

func callShare(dst, src uint64) bool {
	return bool(RobotModel_share(C.uint64_t(dst), C.uint64_t(src)))
}

func callIsEmpty(h uint64) bool {
	return bool(RobotModel_isEmpty(C.uint64_t(h)))
}

func callGetName(h uint64) (string, bool) {
	return takeString(RobotModel_getName(C.uint64_t(h)))
}

func callGetModelFrame(h uint64) (string, bool) {
	return takeString(RobotModel_getModelFrame(C.uint64_t(h)))
}

func callGetRootJointName(h uint64) (string, bool) {
	return takeString(RobotModel_getRootJointName(C.uint64_t(h)))
}

func callPrintModelInfo(h uint64) (string, bool) {
	return takeString(RobotModel_printModelInfo(C.uint64_t(h)))
}

func callFreeNull() {
	RobotModel_free(nil)
}

func takeString(s *C.char) (string, bool) {
	if s == nil {
		return "", false
	}
	defer RobotModel_free(s)
	return C.GoString(s), true
}

// optionalCString maps "" to NULL.
func optionalCString(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}
