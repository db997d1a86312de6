//go:build memviz

package cpu

import (
	"io"
	"reflect"
	"runtime"

	"github.com/bradleyjkemp/memviz"
)

// reflectFuncPC extracts the entry address of a func value so
// runtime.FuncForPC can resolve its name; reflect is the only portable way
// to get there from an armOp/thumbOp value.
func reflectFuncPC(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// handlerName resolves a table entry's underlying function to its source
// name via runtime reflection, since memviz.Map can't see past a bare func
// value — the thing worth graphing is which handler each index resolves
// to, not the unexported func pointer itself.
func handlerName(pc uintptr) string {
	if fn := runtime.FuncForPC(pc); fn != nil {
		return fn.Name()
	}
	return "?"
}

// decodeRun groups a contiguous span of table indices that classify to the
// same handler, so the graph has one node per decode region instead of one
// per index — 4096 leaves would make for an unreadable .dot file.
type decodeRun struct {
	FirstIndex int
	LastIndex  int
	Handler    string
}

type decodeDump struct {
	ARM   []decodeRun
	Thumb []decodeRun
}

func buildDecodeDump() decodeDump {
	var d decodeDump
	d.ARM = summarizeARM()
	d.Thumb = summarizeThumb()
	return d
}

func summarizeARM() []decodeRun {
	var runs []decodeRun
	for i := 0; i < len(armTable); i++ {
		name := handlerName(reflectFuncPC(armTable[i]))
		if n := len(runs); n > 0 && runs[n-1].Handler == name {
			runs[n-1].LastIndex = i
			continue
		}
		runs = append(runs, decodeRun{FirstIndex: i, LastIndex: i, Handler: name})
	}
	return runs
}

func summarizeThumb() []decodeRun {
	var runs []decodeRun
	for i := 0; i < len(thumbTable); i++ {
		name := handlerName(reflectFuncPC(thumbTable[i]))
		if n := len(runs); n > 0 && runs[n-1].Handler == name {
			runs[n-1].LastIndex = i
			continue
		}
		runs = append(runs, decodeRun{FirstIndex: i, LastIndex: i, Handler: name})
	}
	return runs
}

// DumpDecodeTables writes the ARM and THUMB decode-table classification, run
// -length encoded by handler, to w as a Graphviz .dot graph. Built behind
// the memviz tag and driven by cmd/decodedump's go:generate invocation; not
// part of the hot path.
func DumpDecodeTables(w io.Writer) {
	d := buildDecodeDump()
	memviz.Map(w, &d)
}
