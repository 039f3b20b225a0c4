// Package integrity decides whether a file is a valid event log.
//
// Validate is the boolean check used by the backup manager and the monitor.
// Check returns the same verdict with a human-readable reason; when a file is
// well-formed JSON but has the wrong shape, the reason comes from a CUE schema
// so it names the offending path (for example "events.3").
package integrity

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/sharedlog/internal/eventlog"
)

//go:embed schema.cue
var schemaSrc string

// Report is the outcome of Check.
type Report struct {
	Path   string `json:"path" yaml:"path"`
	Valid  bool   `json:"valid" yaml:"valid"`
	Exists bool   `json:"exists" yaml:"exists"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Events int    `json:"events" yaml:"events"`
	Size   int64  `json:"size" yaml:"size"`

	// Readable is false when the file exists but could not be read: an I/O
	// problem, not corruption.
	Readable bool `json:"readable" yaml:"readable"`
}

// Validate reports whether path holds a parseable event log document.
// It never fails: missing, unreadable and malformed files are all false.
func Validate(path string) bool {
	return Check(path).Valid
}

// Check validates path and explains the verdict.
func Check(path string) Report {
	r := Report{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.Reason = "file does not exist"
			return r
		}
		r.Exists = true
		r.Reason = fmt.Sprintf("read: %v", err)
		return r
	}
	r.Exists = true
	r.Readable = true
	r.Size = int64(len(data))

	log, err := eventlog.DecodeLog(data)
	if err != nil {
		r.Reason = err.Error()
		if detail := schemaReason(path, data); detail != "" {
			r.Reason = detail
		}
		return r
	}

	r.Valid = true
	r.Events = len(log.Events)
	return r
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSrc, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#EventLog"))
	})
	return schemaCtx, schemaDef, schemaErr
}

// schemaReason explains a shape mismatch for syntactically valid JSON.
// It returns "" when the input is not JSON or the schema has nothing to add.
func schemaReason(path string, data []byte) string {
	expr, err := cuejson.Extract(path, data)
	if err != nil {
		return ""
	}

	ctx, def, err := loadSchema()
	if err != nil {
		return ""
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return ""
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		errs := cueerrors.Errors(err)
		if len(errs) == 0 {
			return "schema: " + err.Error()
		}
		return "schema: " + errs[0].Error()
	}
	return ""
}
