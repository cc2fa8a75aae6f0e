package errors

import (
	"path"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

const (
	pathSeparator = "/"
	pathVendor    = "vendor"
	pathMod       = "mod"
	pathPkg       = "pkg"
)

var (
	defaultPattern = "[Error #%d] %s"
	filterPkg      = path.Clean(convPathFromLocal(reflect.TypeOf(UnknownError).PkgPath()))
	currPkg        = path.Base(filterPkg)
)

func convPathFromLocal(str string) string {
	return strings.Replace(str, string(filepath.Separator), pathSeparator, -1)
}

func getFrame() runtime.Frame {
	pc := make([]uintptr, 20)
	n := runtime.Callers(2, pc)
	if n <= 0 {
		return getNilFrame()
	}

	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, currPkg) {
			if !more {
				break
			}
			continue
		}
		return runtime.Frame{Function: frame.Function, File: frame.File, Line: frame.Line}
	}

	return getNilFrame()
}

func getNilFrame() runtime.Frame { return runtime.Frame{} }

func filterPath(pathname string) string {
	filterMod := pathSeparator + pathPkg + pathSeparator + pathMod + pathSeparator
	filterVendor := pathSeparator + pathVendor + pathSeparator

	pathname = convPathFromLocal(pathname)

	if i := strings.LastIndex(pathname, filterMod); i != -1 {
		pathname = pathname[i+len(filterMod):]
	}
	if i := strings.LastIndex(pathname, filterPkg); i != -1 {
		pathname = pathname[i+len(filterPkg):]
	}
	if i := strings.LastIndex(pathname, filterVendor); i != -1 {
		pathname = pathname[i+len(filterVendor):]
	}

	return strings.Trim(path.Clean(pathname), pathSeparator)
}

func unicCodeSlice(slice []CodeError) []CodeError {
	res := make([]CodeError, 0, len(slice))
	seen := make(map[CodeError]bool, len(slice))
	for _, c := range slice {
		if !seen[c] {
			seen[c] = true
			res = append(res, c)
		}
	}
	return res
}
