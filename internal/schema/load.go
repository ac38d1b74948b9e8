package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Error code constants for loading policies.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeMissingKind = "E101" // container or item missing
	ErrCodeSameKind    = "E102" // container and item kinds identical
	ErrCodeCapacity    = "E103" // capacity not a non-negative int
	ErrCodeFrozen      = "E104" // frozen not a bool
	ErrCodeNoRelations = "E105" // no relation blocks found
)

// LoadError represents an error that occurred during policy loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Set is the collection of relations loaded from one directory.
type Set struct {
	Relations []Relation
	FileCount int
}

// Lookup returns the relation with the given name.
func (s *Set) Lookup(name string) (*Relation, bool) {
	for i := range s.Relations {
		if s.Relations[i].Name == name {
			return &s.Relations[i], true
		}
	}
	return nil, false
}

// Names returns the relation names in load order (sorted).
func (s *Set) Names() []string {
	names := make([]string, len(s.Relations))
	for i, r := range s.Relations {
		names[i] = r.Name
	}
	return names
}

// LoadDir loads every relation policy from the CUE package in dir.
// All compile errors are collected; the returned Set holds the relations
// that compiled.
func LoadDir(dir string) (*Set, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	set, errs := Compile(value)
	if set != nil {
		set.FileCount = len(files)
	}
	return set, errs
}

// Compile extracts every relation from an already built CUE value.
func Compile(value cue.Value) (*Set, []error) {
	var errs []error
	set := &Set{}

	relVal := value.LookupPath(cue.ParsePath("relation"))
	if !relVal.Exists() {
		return set, []error{&LoadError{Code: ErrCodeNoRelations, Message: "no relations found in specs"}}
	}

	iter, err := relVal.Fields()
	if err != nil {
		return set, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating relations: %v", err)}}
	}
	for iter.Next() {
		rel, err := CompileRelation(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "relation."+iter.Label()))
			continue
		}
		set.Relations = append(set.Relations, *rel)
	}

	sort.Slice(set.Relations, func(i, j int) bool {
		return set.Relations[i].Name < set.Relations[j].Name
	})
	return set, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, context string) *LoadError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return &LoadError{
			Code:    mapFieldToErrorCode(ce.Field),
			Message: fmt.Sprintf("%s: %s", context, ce.Message),
			Pos:     ce.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

func mapFieldToErrorCode(field string) string {
	switch field {
	case "container", "item":
		return ErrCodeMissingKind
	case "kinds":
		return ErrCodeSameKind
	case "capacity":
		return ErrCodeCapacity
	case "frozen":
		return ErrCodeFrozen
	default:
		return ErrCodeGeneric
	}
}
